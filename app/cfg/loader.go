package cfg

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"vesselwatch" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"vesselwatch" description:"Database name"`
	DBPoolMax  int    `long:"db-pool-max" env:"DB_POOL_MAX" default:"20" description:"Maximum number of open database connections"`

	// AIS feed configuration
	AISAPIKey   string `long:"ais-api-key" env:"AIS_API_KEY" description:"aisstream.io API key (required)" required:"true"`
	AISEndpoint string `long:"ais-endpoint" env:"AIS_ENDPOINT" default:"wss://stream.aisstream.io/v0/stream" description:"AIS stream WebSocket endpoint"`
	BoundingBox string `long:"bounding-box" env:"BOUNDING_BOX" default:"-90,-180,90,180" description:"Geographic filter as minLat,minLon,maxLat,maxLon"`
	FilterMMSI  string `long:"filter-mmsi" env:"FILTER_MMSI" description:"Comma-separated MMSI list to subscribe to (optional)"`

	// Ingestion configuration
	QueueCapacity int  `long:"queue-capacity" env:"QUEUE_CAPACITY" default:"1000" description:"Bounded queue capacity between normalizer and writer"`
	WriterCount   int  `long:"writer-count" env:"WRITER_COUNT" default:"4" description:"Number of concurrent storage writer workers"`
	DropOldest    bool `long:"drop-oldest" env:"DROP_OLDEST" description:"Drop oldest queued records when queue is full instead of blocking"`

	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	Environment string `long:"environment" env:"ENVIRONMENT" default:"development" description:"Environment name (development, staging, production)"`
	Debug       bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if _, err := ParseBoundingBox(raw.BoundingBox); err != nil {
		return nil, fmt.Errorf("invalid bounding box %q: %w", raw.BoundingBox, err)
	}

	cfg := &Cfg{
		DBHost:        raw.DBHost,
		DBPort:        raw.DBPort,
		DBUser:        raw.DBUser,
		DBPassword:    raw.DBPassword,
		DBName:        raw.DBName,
		DBPoolMax:     raw.DBPoolMax,
		AISAPIKey:     raw.AISAPIKey,
		AISEndpoint:   raw.AISEndpoint,
		BoundingBox:   raw.BoundingBox,
		FilterMMSI:    splitList(raw.FilterMMSI),
		QueueCapacity: raw.QueueCapacity,
		WriterCount:   raw.WriterCount,
		DropOldest:    raw.DropOldest,
		Port:          raw.Port,
		APIAccessKey:  raw.APIAccessKey,
		Environment:   raw.Environment,
		Debug:         raw.Debug,
		Version:       GetVersion(),
	}

	return cfg, nil
}

// ParseBoundingBox parses a "minLat,minLon,maxLat,maxLon" string into its
// four coordinates, validating the latitude and longitude ranges.
func ParseBoundingBox(s string) ([4]float64, error) {
	var box [4]float64

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return box, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return box, fmt.Errorf("coordinate %d: %w", i+1, err)
		}
		box[i] = v
	}

	if box[0] < -90 || box[0] > 90 || box[2] < -90 || box[2] > 90 {
		return box, fmt.Errorf("latitude out of range [-90, 90]")
	}
	if box[1] < -180 || box[1] > 180 || box[3] < -180 || box[3] > 180 {
		return box, fmt.Errorf("longitude out of range [-180, 180]")
	}

	return box, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
