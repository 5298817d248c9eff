package config

import (
	"fmt"
	"os"
	"time"

	"stockcast/pkg/util"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"dev"`
	Server      struct {
		Port                 int           `yaml:"port" default:"8080"`
		ReadTimeout          time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout         time.Duration `yaml:"write_timeout" default:"20s"`
		ShutdownTimeout      time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequestThreshold time.Duration `yaml:"slow_request_threshold" default:"1s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Backend struct {
		Type         string        `yaml:"type" default:"clickhouse"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"2s"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		Topic        string   `yaml:"topic" default:"stockcast.bars.daily"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"stockcast-bars"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"500ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"10s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"stockcast.bars.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"stockcast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Cache struct {
		Enabled       bool          `yaml:"enabled" default:"true"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"256"`
		RunTTL        time.Duration `yaml:"run_ttl" default:"6h"`
		MoversTTL     time.Duration `yaml:"movers_ttl" default:"10m"`
	} `yaml:"cache"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"1"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	} `yaml:"queue"`
	Massive struct {
		BaseURL     string        `yaml:"base_url" default:"https://api.massive.com"`
		APIKey      string        `yaml:"api_key"`
		Timeout     time.Duration `yaml:"timeout" default:"30s"`
		MaxAttempts int           `yaml:"max_attempts" default:"4"`
		RateLimit   float64       `yaml:"rate_limit" default:"5"`
		RateBurst   int           `yaml:"rate_burst" default:"5"`
	} `yaml:"massive"`
	Forecast struct {
		Watchlist      []string `yaml:"watchlist" default:"[\"NVDA\",\"AAPL\",\"MSFT\",\"GOOGL\",\"AMZN\",\"TSLA\"]"`
		LookbackDays   int      `yaml:"lookback_days" default:"60"`
		MinHistoryDays int      `yaml:"min_history_days" default:"25"`
		ProbThreshold  float64  `yaml:"prob_threshold" default:"0.5"`
		ArtifactsDir   string   `yaml:"artifacts_dir" default:"artifacts"`
	} `yaml:"forecast"`
	Logging struct {
		Level       string `yaml:"level" default:"info"`
		Format      string `yaml:"format" default:"json"`
		Output      string `yaml:"output" default:"stdout"`
		ErrorsTopic string `yaml:"errors_topic"`
	} `yaml:"logging"`
}

// Load reads the YAML file at path on top of struct defaults. A missing
// file is not an error: deployments that configure purely through the
// environment run without one.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case os.IsNotExist(err):
			// defaults + env only
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config and overrides with environment variables.
// A .env file in the working directory is honored when present.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PORT"); v != "" {
		c.ClickHouse.Port = util.ParseIntDefault(v, c.ClickHouse.Port)
	}
	if v := os.Getenv("CLICKHOUSE_DATABASE"); v != "" {
		c.ClickHouse.Database = v
	}
	if v := os.Getenv("CLICKHOUSE_USER"); v != "" {
		c.ClickHouse.User = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("MASSIVE_API_KEY"); v != "" {
		c.Massive.APIKey = v
	}
	if v := os.Getenv("MASSIVE_BASE_URL"); v != "" {
		c.Massive.BaseURL = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Forecast.Watchlist = util.SplitList(v)
	}
	if v := os.Getenv("LOOKBACK_DAYS"); v != "" {
		c.Forecast.LookbackDays = util.ParseIntDefault(v, c.Forecast.LookbackDays)
	}
	if v := os.Getenv("MIN_HISTORY_DAYS"); v != "" {
		c.Forecast.MinHistoryDays = util.ParseIntDefault(v, c.Forecast.MinHistoryDays)
	}
	if v := os.Getenv("PROB_THRESHOLD"); v != "" {
		c.Forecast.ProbThreshold = util.ParseFloatDefault(v, c.Forecast.ProbThreshold)
	}
	if v := os.Getenv("ARTIFACTS_DIR"); v != "" {
		c.Forecast.ArtifactsDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	// re-check after overrides
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if len(c.Forecast.Watchlist) == 0 {
		return fmt.Errorf("forecast.watchlist cannot be empty")
	}
	if c.Forecast.LookbackDays <= 0 {
		return fmt.Errorf("forecast.lookback_days must be positive")
	}
	if c.Forecast.MinHistoryDays <= 0 {
		return fmt.Errorf("forecast.min_history_days must be positive")
	}
	if c.Forecast.ProbThreshold <= 0 || c.Forecast.ProbThreshold >= 1 {
		return fmt.Errorf("forecast.prob_threshold must be in (0,1), got %v", c.Forecast.ProbThreshold)
	}
	if c.Massive.BaseURL == "" {
		return fmt.Errorf("massive.base_url is required")
	}
	return nil
}
