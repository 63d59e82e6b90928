package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	// Test default version
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	version := GetVersion()
	if version != "dev" && version != "unknown" {
		// This is fine, version could be set at build time
		t.Logf("Version: %s", version)
	}
}

func TestParseBoundingBox(t *testing.T) {
	box, err := ParseBoundingBox("-90,-180,90,180")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if box[0] != -90 || box[1] != -180 || box[2] != 90 || box[3] != 180 {
		t.Errorf("Unexpected box: %v", box)
	}

	box, err = ParseBoundingBox(" 54.1, 10.2 , 56.5, 12.9 ")
	if err != nil {
		t.Fatalf("Expected no error with whitespace, got: %v", err)
	}
	if box[0] != 54.1 || box[3] != 12.9 {
		t.Errorf("Unexpected box: %v", box)
	}
}

func TestParseBoundingBoxInvalid(t *testing.T) {
	cases := []string{
		"",
		"1,2,3",
		"1,2,3,4,5",
		"a,b,c,d",
		"-91,0,90,0",
		"0,-181,0,0",
		"0,0,120,0",
		"0,0,0,200",
	}

	for _, input := range cases {
		if _, err := ParseBoundingBox(input); err == nil {
			t.Errorf("Expected error for %q, got none", input)
		}
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		DBHost:        "localhost",
		DBPort:        "5432",
		DBUser:        "test_user",
		DBPassword:    "test_password",
		DBName:        "test_db",
		DBPoolMax:     20,
		AISAPIKey:     "test-ais-key",
		AISEndpoint:   "wss://stream.aisstream.io/v0/stream",
		BoundingBox:   "-90,-180,90,180",
		QueueCapacity: 1000,
		WriterCount:   4,
		Port:          "8080",
		APIAccessKey:  "test-key",
		Environment:   "test",
		Debug:         true,
		Version:       "test-version",
	}

	if cfg.DBPoolMax != 20 {
		t.Errorf("Expected pool max 20, got %d", cfg.DBPoolMax)
	}
	if cfg.AISAPIKey != "test-ais-key" {
		t.Errorf("Expected AIS key 'test-ais-key', got '%s'", cfg.AISAPIKey)
	}
	if cfg.QueueCapacity != 1000 {
		t.Errorf("Expected queue capacity 1000, got %d", cfg.QueueCapacity)
	}
	if cfg.WriterCount != 4 {
		t.Errorf("Expected writer count 4, got %d", cfg.WriterCount)
	}
	if cfg.DropOldest {
		t.Error("Expected drop-oldest to default to disabled")
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(""); got != nil {
		t.Errorf("Expected nil for empty input, got %v", got)
	}
	if got := splitList("  "); got != nil {
		t.Errorf("Expected nil for blank input, got %v", got)
	}

	got := splitList("244660000, 211331640 ,367719770")
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d: %v", len(got), got)
	}
	if got[0] != "244660000" || got[1] != "211331640" || got[2] != "367719770" {
		t.Errorf("Unexpected entries: %v", got)
	}
}
