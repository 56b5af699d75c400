package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/vulngate/internal/domain/gate"
	"github.com/bryanwahyu/vulngate/internal/domain/scans"
)

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		LogLevel       string   `yaml:"logLevel"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Gate struct {
		FailOn           string   `yaml:"failOn"`
		Scanners         []string `yaml:"scanners"`
		OutputDir        string   `yaml:"outputDir"`
		Mode             string   `yaml:"mode"` // local | docker
		ProceedIfMissing bool     `yaml:"proceedIfMissing"`
		Concurrency      int      `yaml:"concurrency"`
	} `yaml:"gate"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Auth struct {
		APIKeys map[string]string `yaml:"apiKeys"` // tenant -> key
	} `yaml:"auth"`

	RateLimit struct {
		PerSecond float64 `yaml:"perSecond"`
		Burst     int     `yaml:"burst"`
	} `yaml:"rateLimit"`
}

// Load baca file config.yaml, isi default, lalu validasi
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Defaults fills values the file left empty.
func (c *Config) Defaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Gate.FailOn == "" {
		c.Gate.FailOn = string(gate.PolicyHigh)
	}
	if len(c.Gate.Scanners) == 0 {
		c.Gate.Scanners = []string{string(scans.ScannerGrype)}
	}
	if c.Gate.OutputDir == "" {
		c.Gate.OutputDir = "scan-results"
	}
	if c.Gate.Mode == "" {
		c.Gate.Mode = "local"
	}
	if c.Gate.Concurrency <= 0 {
		c.Gate.Concurrency = 2
	}
	if c.RateLimit.PerSecond <= 0 {
		c.RateLimit.PerSecond = 5
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 20
	}
}

// Validate rejects values that must never be silently defaulted.
func (c *Config) Validate() error {
	if _, err := gate.ParsePolicy(c.Gate.FailOn); err != nil {
		return fmt.Errorf("gate.failOn: %w", err)
	}
	for _, s := range c.Gate.Scanners {
		if _, err := scans.ParseScanner(s); err != nil {
			return fmt.Errorf("gate.scanners: %w", err)
		}
	}
	switch c.Gate.Mode {
	case "local", "docker":
	default:
		return fmt.Errorf("gate.mode: must be local or docker, got %q", c.Gate.Mode)
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("database.driver: must be mysql or postgres, got %q", c.Database.Driver)
	}
	return nil
}

// Policy returns the parsed gate threshold. Validate has already checked it.
func (c *Config) Policy() gate.Policy {
	p, _ := gate.ParsePolicy(c.Gate.FailOn)
	return p
}

// Scanners returns the configured default scanners. Validate has already checked them.
func (c *Config) Scanners() []scans.Scanner {
	out := make([]scans.Scanner, 0, len(c.Gate.Scanners))
	for _, s := range c.Gate.Scanners {
		sc, _ := scans.ParseScanner(s)
		out = append(out, sc)
	}
	return out
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// DatabaseEnabled is false when no database host is configured; evaluations are then not persisted.
func (c *Config) DatabaseEnabled() bool { return c.Database.Host != "" }

// ArchiveEnabled is false when no MinIO endpoint is configured.
func (c *Config) ArchiveEnabled() bool { return c.Minio.Endpoint != "" }
