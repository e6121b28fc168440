// Package config holds the daemon's configuration and its flag-based
// population.
package config

import (
	"flag"
)

// Config holds node configuration.
type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBDisabled bool

	// Warden network
	WardenEnabled    bool
	WardenListenAddr string

	// Verifier
	VKeyPath                string
	CommitmentQueueCapacity int
	TestMode                bool

	// Data
	DataDir string
}

// ParseFlags populates a Config from the command line.
func ParseFlags() *Config {
	cfg := &Config{}

	// Database flags
	flag.StringVar(&cfg.DBHost, "db-host", "localhost", "PostgreSQL host")
	flag.IntVar(&cfg.DBPort, "db-port", 5432, "PostgreSQL port")
	flag.StringVar(&cfg.DBUser, "db-user", "elusiv", "PostgreSQL user")
	flag.StringVar(&cfg.DBPassword, "db-password", "", "PostgreSQL password")
	flag.StringVar(&cfg.DBName, "db-name", "elusiv", "PostgreSQL database name")
	flag.BoolVar(&cfg.DBDisabled, "no-db", false, "Run without durable storage (in-memory only)")

	// Warden network flags
	flag.BoolVar(&cfg.WardenEnabled, "warden", false, "Broadcast finalized verifications to the warden network")
	flag.StringVar(&cfg.WardenListenAddr, "warden-listen", "/ip4/0.0.0.0/tcp/9500", "Warden network listen address")

	// Verifier flags
	flag.StringVar(&cfg.VKeyPath, "vkey", "", "Path to the send verifying-key artifact")
	flag.IntVar(&cfg.CommitmentQueueCapacity, "queue-capacity", 240, "Commitment queue capacity")
	flag.BoolVar(&cfg.TestMode, "test-mode", false, "Disable Send timestamp-freshness enforcement")

	// Data flags
	flag.StringVar(&cfg.DataDir, "data-dir", "./data", "Data directory")

	flag.Parse()

	return cfg
}
