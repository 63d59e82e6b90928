package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPoolMax  int

	// AIS feed configuration
	AISAPIKey   string
	AISEndpoint string
	BoundingBox string
	FilterMMSI  []string

	// Ingestion configuration
	QueueCapacity int
	WriterCount   int
	DropOldest    bool

	// Application configuration
	Port         string
	APIAccessKey string

	// Application metadata
	Environment string
	Debug       bool
	Version     string
}
