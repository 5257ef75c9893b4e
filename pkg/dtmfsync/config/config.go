package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

type Config struct {
	LogLevel     string        `yaml:"log_level"`
	ToneDuration time.Duration `yaml:"tone_duration"`
	Seed         int64         `yaml:"seed"`
	Scanner      Scanner       `yaml:"scanner"`
	APIServer    struct {
		Port int `yaml:"port"`
	} `yaml:"api_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Token        string `yaml:"token"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type Scanner struct {
	Source    string    `yaml:"source"`
	ChunkSize int       `yaml:"chunk_size"`
	NotBefore time.Time `yaml:"not_before"`
	NotAfter  time.Time `yaml:"not_after"`
}

func Defaults() Config {
	var c Config
	c.LogLevel = "info"
	c.ToneDuration = 100 * time.Millisecond
	c.Scanner.Source = "stdin"
	c.Scanner.ChunkSize = 4096
	c.APIServer.Port = 8080
	c.InfluxDB.Bucket = "dtmfsync"
	return c
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	c := Defaults()

	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	} else if err != nil {
		return c, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(contents, &c); err != nil {
		return c, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.ToneDuration <= 0 {
		return fmt.Errorf("tone_duration must be positive, got %s", c.ToneDuration)
	}
	if c.Scanner.ChunkSize <= 0 {
		return fmt.Errorf("scanner.chunk_size must be positive, got %d", c.Scanner.ChunkSize)
	}
	if !c.Scanner.NotBefore.IsZero() && !c.Scanner.NotAfter.IsZero() && c.Scanner.NotAfter.Before(c.Scanner.NotBefore) {
		return fmt.Errorf("scanner.not_after %s is before not_before %s", c.Scanner.NotAfter, c.Scanner.NotBefore)
	}
	if c.APIServer.Port < 0 || c.APIServer.Port > 65535 {
		return fmt.Errorf("api_server.port out of range: %d", c.APIServer.Port)
	}
	if c.InfluxDB.Host != "" && (c.InfluxDB.Organization == "" || c.InfluxDB.Bucket == "") {
		return fmt.Errorf("influxdb.organization and influxdb.bucket are required when influxdb.host is set")
	}
	return nil
}

func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
