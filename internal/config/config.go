package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int               `yaml:"port"`
		CORSOrigins    []string          `yaml:"corsOrigins"`
		APIKeys        map[string]string `yaml:"apiKeys"` // client name -> key; empty disables auth
		RateCapacity   int               `yaml:"rateCapacity"`
		RateRefill     int               `yaml:"rateRefill"` // tokens per second
		MaxUploadBytes int64             `yaml:"maxUploadBytes"`
	} `yaml:"server"`

	Session struct {
		IdleTTL          time.Duration `yaml:"idleTTL"`
		SweepInterval    time.Duration `yaml:"sweepInterval"`
		NotificationsCap int           `yaml:"notificationsCap"`
	} `yaml:"session"`

	Analysis struct {
		Backend      string        `yaml:"backend"` // mock | openai | gemini
		MockDelay    time.Duration `yaml:"mockDelay"`
		Timeout      time.Duration `yaml:"timeout"`
		OpenAIAPIKey string        `yaml:"openaiApiKey"`
		OpenAIModel  string        `yaml:"openaiModel"`
		OpenAIURL    string        `yaml:"openaiBaseUrl"`
		GeminiAPIKey string        `yaml:"geminiApiKey"`
		GeminiModel  string        `yaml:"geminiModel"`
	} `yaml:"analysis"`

	Storage struct {
		Driver string `yaml:"driver"` // memory | minio
		Minio  struct {
			Endpoint   string `yaml:"endpoint"`
			AccessKey  string `yaml:"accessKey"`
			SecretKey  string `yaml:"secretKey"`
			BucketName string `yaml:"bucketName"`
			Region     string `yaml:"region"`
			UseSSL     bool   `yaml:"useSSL"`
		} `yaml:"minio"`
	} `yaml:"storage"`

	Audit struct {
		Driver   string `yaml:"driver"` // none | mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"audit"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// Default returns a config that runs fully in memory with the mock analyzer.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.CORSOrigins = []string{"*"}
	c.Server.RateCapacity = 60
	c.Server.RateRefill = 10
	c.Server.MaxUploadBytes = 64 << 20

	c.Session.IdleTTL = 2 * time.Hour
	c.Session.SweepInterval = 5 * time.Minute
	c.Session.NotificationsCap = 20

	c.Analysis.Backend = "mock"
	c.Analysis.MockDelay = 3 * time.Second
	c.Analysis.Timeout = 60 * time.Second
	c.Analysis.OpenAIModel = "gpt-4o-mini"
	c.Analysis.GeminiModel = "gemini-2.5-flash"

	c.Storage.Driver = "memory"
	c.Storage.Minio.BucketName = "agroscan"

	c.Audit.Driver = "none"
	c.Audit.SSLMode = "disable"

	c.Log.Level = "info"
	return &c
}

// Load baca file config.yaml on top of Default, then applies env overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AGROSCAN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("AGROSCAN_ANALYZER"); v != "" {
		c.Analysis.Backend = v
	}
	if v := os.Getenv("AGROSCAN_MOCK_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Analysis.MockDelay = d
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Analysis.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.Analysis.OpenAIModel = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Analysis.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Analysis.GeminiModel = v
	}
	if v := os.Getenv("AGROSCAN_STORAGE"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Storage.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Storage.Minio.SecretKey = v
	}
	if v := os.Getenv("AGROSCAN_AUDIT_DRIVER"); v != "" {
		c.Audit.Driver = v
	}
	if v := os.Getenv("AGROSCAN_AUDIT_PASSWORD"); v != "" {
		c.Audit.Password = v
	}
	if v := os.Getenv("AGROSCAN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks enum fields and required credentials.
func (c *Config) Validate() error {
	c.Analysis.Backend = strings.ToLower(strings.TrimSpace(c.Analysis.Backend))
	switch c.Analysis.Backend {
	case "mock":
	case "openai":
		if c.Analysis.OpenAIAPIKey == "" {
			return errors.New("analysis.backend=openai requires OPENAI_API_KEY")
		}
	case "gemini":
		if c.Analysis.GeminiAPIKey == "" {
			return errors.New("analysis.backend=gemini requires GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("invalid analysis.backend %q (allowed: mock, openai, gemini)", c.Analysis.Backend)
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "memory":
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.BucketName == "" {
			return errors.New("storage.driver=minio requires endpoint and bucketName")
		}
	default:
		return fmt.Errorf("invalid storage.driver %q (allowed: memory, minio)", c.Storage.Driver)
	}

	c.Audit.Driver = strings.ToLower(strings.TrimSpace(c.Audit.Driver))
	switch c.Audit.Driver {
	case "", "none":
		c.Audit.Driver = "none"
	case "mysql", "postgres":
		if c.Audit.Host == "" || c.Audit.Name == "" {
			return fmt.Errorf("audit.driver=%s requires host and name", c.Audit.Driver)
		}
	default:
		return fmt.Errorf("invalid audit.driver %q (allowed: none, mysql, postgres)", c.Audit.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	port := c.Audit.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Audit.User,
		c.Audit.Password,
		c.Audit.Host,
		port,
		c.Audit.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	port := c.Audit.Port
	if port == 0 {
		port = 5432
	}
	ssl := c.Audit.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Audit.Host, port, c.Audit.User, c.Audit.Password, c.Audit.Name, ssl)
}
