package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Primary struct {
		Token          string        `yaml:"token"`
		RestURL        string        `yaml:"rest_url"`
		WebsocketURL   string        `yaml:"websocket_url"`
		Currency       string        `yaml:"currency"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"primary"`
	Secondary struct {
		KeyID        string          `yaml:"key_id"`
		SecretKey    string          `yaml:"secret_key"`
		RestURL      string          `yaml:"rest_url"`
		WebsocketURL string          `yaml:"websocket_url"`
		MaxChannels  int             `yaml:"max_channels"`
		PollInterval time.Duration   `yaml:"poll_interval"`
		PingInterval time.Duration   `yaml:"ping_interval"`
		TapeCodes    map[int64]string `yaml:"tape_codes"`
	} `yaml:"secondary"`
	Signals struct {
		CapPercent     float64       `yaml:"cap_percent"`
		StepPercent    float64       `yaml:"step_percent"`
		MinPrice       float64       `yaml:"min_price"`
		Cooldown       time.Duration `yaml:"cooldown"`
		GlobalInterval time.Duration `yaml:"global_interval"`
		BufferSize     int           `yaml:"buffer_size"`
	} `yaml:"signals"`
	Notifier struct {
		Backend      string `yaml:"backend"` // telegram or kafka
		RelayEnabled bool   `yaml:"relay_enabled"`
	} `yaml:"notifier"`
	Telegram struct {
		APIURL string `yaml:"api_url"`
		Token  string `yaml:"token"`
	} `yaml:"telegram"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("PRIMARY_TOKEN"); v != "" {
		c.Primary.Token = v
	}
	if v := os.Getenv("SECONDARY_KEY_ID"); v != "" {
		c.Secondary.KeyID = v
	}
	if v := os.Getenv("SECONDARY_SECRET_KEY"); v != "" {
		c.Secondary.SecretKey = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("NOTIFIER_BACKEND"); v != "" {
		c.Notifier.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Primary.Token == "" {
		return fmt.Errorf("primary.token is required")
	}
	if c.Primary.RestURL == "" || c.Primary.WebsocketURL == "" {
		return fmt.Errorf("primary.rest_url and primary.websocket_url are required")
	}
	if c.Primary.Currency == "" {
		return fmt.Errorf("primary.currency is required")
	}
	if c.Secondary.KeyID == "" || c.Secondary.SecretKey == "" {
		return fmt.Errorf("secondary.key_id and secondary.secret_key are required")
	}
	if c.Secondary.RestURL == "" || c.Secondary.WebsocketURL == "" {
		return fmt.Errorf("secondary.rest_url and secondary.websocket_url are required")
	}
	if c.Notifier.Backend == "" {
		return fmt.Errorf("notifier.backend is required")
	}
	if c.Notifier.Backend != "telegram" && c.Notifier.Backend != "kafka" {
		return fmt.Errorf("notifier.backend must be 'telegram' or 'kafka', got '%s'", c.Notifier.Backend)
	}
	if c.Notifier.Backend == "kafka" {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty with kafka backend")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required with kafka backend")
		}
	}
	if c.Notifier.Backend == "telegram" || c.Notifier.RelayEnabled {
		if c.Telegram.Token == "" {
			return fmt.Errorf("telegram.token is required")
		}
	}
	if c.Notifier.RelayEnabled && c.Notifier.Backend != "kafka" {
		return fmt.Errorf("notifier.relay_enabled needs the kafka backend")
	}
	return nil
}
