package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete coordinator configuration.
type Configuration struct {
	Nodes      NodesConfig      `yaml:"nodes"`
	Crypto     CryptoConfig     `yaml:"crypto"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Chunk      ChunkConfig      `yaml:"chunk"`
	Server     ServerConfig     `yaml:"server"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// NodesConfig maps each storage node's name to the local directory the
// coordinator process writes its chunks under.
type NodesConfig struct {
	Directories map[string]string `yaml:"directories"`
}

// CryptoConfig locates the persisted key material and PBKDF2 parameters used
// to derive the chunk encryption key (§4.1).
type CryptoConfig struct {
	KeyFile        string `yaml:"key_file"`
	SaltFile       string `yaml:"salt_file"`
	PBKDF2Iterations int  `yaml:"pbkdf2_iterations"`
	CompressionLevel int  `yaml:"compression_level"`
}

// CatalogConfig configures the SQLite metadata catalog's connection and
// busy-retry behavior (§4.6).
type CatalogConfig struct {
	DatabasePath string        `yaml:"database_path"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// ChunkConfig sets the chunk size and per-node capacity used by the
// placement algorithm (§4.3/§4.4).
type ChunkConfig struct {
	ChunkSizeBytes    int64 `yaml:"chunk_size_bytes"`
	NodeCapacityBytes int64 `yaml:"node_capacity_bytes"`
}

// ServerConfig configures the coordinator's HTTP listener (§6).
type ServerConfig struct {
	ListenAddress  string   `yaml:"listen_address"`
	AdminKey       string   `yaml:"admin_key"`
	CORSOrigins    []string `yaml:"cors_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// LifecycleConfig sets the periods and thresholds for the coordinator's
// background loops (§4.9/§4.10): heartbeat monitoring, tier migration,
// deduplication, and retention enforcement.
type LifecycleConfig struct {
	HeartbeatInterval      time.Duration `yaml:"heartbeat_interval"`
	NodeDeadThreshold      time.Duration `yaml:"node_dead_threshold"`
	TierMigrationInterval  time.Duration `yaml:"tier_migration_interval"`
	DedupInterval          time.Duration `yaml:"dedup_interval"`
	RetentionInterval      time.Duration `yaml:"retention_interval"`
	DefaultRetentionDays   int           `yaml:"default_retention_days"`
	DefaultArchiveDays     int           `yaml:"default_archive_days"`
	DefaultMinVersionsKept int           `yaml:"default_min_versions_kept"`
	DefaultMaxVersionsKept int           `yaml:"default_max_versions_kept"`
}

// MonitoringConfig configures the separate metrics listener and the log
// level used by pkg/logging.
type MonitoringConfig struct {
	MetricsListenAddress string `yaml:"metrics_listen_address"`
	LogLevel             string `yaml:"log_level"`
	LogFile              string `yaml:"log_file"`
}

// NewDefault returns a configuration with sensible defaults for a
// single-process coordinator running three local nodes.
func NewDefault() *Configuration {
	return &Configuration{
		Nodes: NodesConfig{
			Directories: map[string]string{
				"node1": "/var/lib/coordinator/node1",
				"node2": "/var/lib/coordinator/node2",
				"node3": "/var/lib/coordinator/node3",
			},
		},
		Crypto: CryptoConfig{
			KeyFile:          "/var/lib/coordinator/crypto.key",
			SaltFile:         "/var/lib/coordinator/crypto.salt",
			PBKDF2Iterations: 100000,
			CompressionLevel: 6,
		},
		Catalog: CatalogConfig{
			DatabasePath: "/var/lib/coordinator/catalog.db",
			BusyTimeout:  20 * time.Second,
			MaxRetries:   3,
			RetryBackoff: 1 * time.Second,
		},
		Chunk: ChunkConfig{
			ChunkSizeBytes:    4 * 1024 * 1024,
			NodeCapacityBytes: 500 * 1024 * 1024,
		},
		Server: ServerConfig{
			ListenAddress: ":8443",
			AdminKey:      "",
			CORSOrigins:   []string{"*"},
			ReadTimeout:   60 * time.Second,
			WriteTimeout:  300 * time.Second,
		},
		Lifecycle: LifecycleConfig{
			HeartbeatInterval:      10 * time.Second,
			NodeDeadThreshold:      40 * time.Second,
			TierMigrationInterval:  1 * time.Hour,
			DedupInterval:          6 * time.Hour,
			RetentionInterval:      24 * time.Hour,
			DefaultRetentionDays:   365,
			DefaultArchiveDays:     180,
			DefaultMinVersionsKept: 1,
			DefaultMaxVersionsKept: 10,
		},
		Monitoring: MonitoringConfig{
			MetricsListenAddress: ":9110",
			LogLevel:             "INFO",
			LogFile:              "",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv overlays environment variables onto an already-loaded
// configuration, matching the reference's OBJECTFS_* naming under a
// COORDINATOR_* prefix.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("COORDINATOR_LOG_LEVEL"); val != "" {
		c.Monitoring.LogLevel = val
	}
	if val := os.Getenv("COORDINATOR_LOG_FILE"); val != "" {
		c.Monitoring.LogFile = val
	}
	if val := os.Getenv("COORDINATOR_METRICS_LISTEN_ADDRESS"); val != "" {
		c.Monitoring.MetricsListenAddress = val
	}
	if val := os.Getenv("COORDINATOR_LISTEN_ADDRESS"); val != "" {
		c.Server.ListenAddress = val
	}
	if val := os.Getenv("COORDINATOR_ADMIN_KEY"); val != "" {
		c.Server.AdminKey = val
	}
	if val := os.Getenv("COORDINATOR_CATALOG_PATH"); val != "" {
		c.Catalog.DatabasePath = val
	}
	if val := os.Getenv("COORDINATOR_CATALOG_MAX_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Catalog.MaxRetries = n
		}
	}
	if val := os.Getenv("COORDINATOR_CHUNK_SIZE_BYTES"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Chunk.ChunkSizeBytes = n
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if len(c.Nodes.Directories) == 0 {
		return fmt.Errorf("nodes.directories must list at least one storage node")
	}

	if c.Chunk.ChunkSizeBytes <= 0 {
		return fmt.Errorf("chunk.chunk_size_bytes must be greater than 0")
	}

	if c.Chunk.NodeCapacityBytes <= 0 {
		return fmt.Errorf("chunk.node_capacity_bytes must be greater than 0")
	}

	if c.Catalog.MaxRetries <= 0 {
		return fmt.Errorf("catalog.max_retries must be greater than 0")
	}

	if c.Catalog.DatabasePath == "" {
		return fmt.Errorf("catalog.database_path is required")
	}

	if c.Crypto.PBKDF2Iterations < 1000 {
		return fmt.Errorf("crypto.pbkdf2_iterations must be at least 1000")
	}

	if c.Crypto.CompressionLevel < 0 || c.Crypto.CompressionLevel > 9 {
		return fmt.Errorf("crypto.compression_level must be between 0 and 9")
	}

	if c.Server.ListenAddress == c.Monitoring.MetricsListenAddress {
		return fmt.Errorf("server.listen_address and monitoring.metrics_listen_address cannot be the same")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Monitoring.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid monitoring.log_level: %s (must be one of: %s)",
			c.Monitoring.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Lifecycle.DefaultMinVersionsKept > c.Lifecycle.DefaultMaxVersionsKept {
		return fmt.Errorf("lifecycle.default_min_versions_kept cannot exceed default_max_versions_kept")
	}

	return nil
}
