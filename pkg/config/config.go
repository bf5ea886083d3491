package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout" validate:"required"`

		// Collect ships deduplicated warn/error lines to kafka.log_topic.
		Collect         bool          `yaml:"collect"`
		CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
	} `yaml:"log"`
	Server struct {
		Enabled         bool          `yaml:"enabled" default:"false"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Simulation struct {
		Rounds           int                  `yaml:"rounds" default:"5" validate:"gte=0"`
		Mode             string               `yaml:"mode" default:"sequential" validate:"oneof=sequential parallel"`
		InterestRateGoal float64              `yaml:"interest_rate_goal" default:"0.02" validate:"gte=-1,lte=1"`
		SeedSource       string               `yaml:"seed_source" default:"config" validate:"oneof=config fred"`
		Seed             map[string][]float64 `yaml:"seed"`
	} `yaml:"simulation"`
	Orchestrator struct {
		OutOfRange      string        `yaml:"out_of_range" default:"retry" validate:"oneof=retry abort clamp"`
		DecisionTimeout time.Duration `yaml:"decision_timeout" default:"2m"`
		Retry           struct {
			// MaxAttempts of 0 retries forever.
			MaxAttempts int           `yaml:"max_attempts" default:"10" validate:"gte=0"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"250ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"10s"`
		} `yaml:"retry"`
	} `yaml:"orchestrator"`
	LLM struct {
		DryRun      bool              `yaml:"dry_run" default:"false"`
		BaseURL     string            `yaml:"base_url" default:"https://api.groq.com/openai/v1" validate:"required,url"`
		APIKey      string            `yaml:"api_key"`
		Model       string            `yaml:"model" default:"llama-3.1-70b-versatile" validate:"required"`
		RoleModels  map[string]string `yaml:"role_models"`
		Temperature float64           `yaml:"temperature" default:"0.2" validate:"gte=0,lte=2"`
		MaxTokens   int               `yaml:"max_tokens" default:"1024" validate:"gte=0"`
		Timeout     time.Duration     `yaml:"timeout" default:"60s"`

		// RequestsPerMinute caps calls per model; 0 disables the limiter.
		RequestsPerMinute float64 `yaml:"requests_per_minute" default:"30" validate:"gte=0"`
		Burst             int     `yaml:"burst" default:"3" validate:"gte=1"`
	} `yaml:"llm"`
	FRED struct {
		APIKey           string        `yaml:"api_key"`
		BaseURL          string        `yaml:"base_url" default:"https://api.stlouisfed.org/fred/series/observations" validate:"required,url"`
		Frequency        string        `yaml:"frequency" default:"q" validate:"oneof=d w bw m q sa a"`
		ObservationStart string        `yaml:"observation_start" default:"2015-01-01"`
		ObservationEnd   string        `yaml:"observation_end"`
		SeedQuarters     int           `yaml:"seed_quarters" default:"3" validate:"gte=1"`
		Timeout          time.Duration `yaml:"timeout" default:"30s"`
		Series           []FREDSeries  `yaml:"series" validate:"dive"`

		// Cache keeps downloaded series in Redis for CacheTTL.
		Cache    bool          `yaml:"cache"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"24h"`
	} `yaml:"fred"`
	Export struct {
		CSVPath    string `yaml:"csv_path"`
		ClickHouse bool   `yaml:"clickhouse"`
		Redis      bool   `yaml:"redis"`
		Kafka      bool   `yaml:"kafka"`
	} `yaml:"export"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"agentomics.rounds"`
		LogTopic     string   `yaml:"log_topic" default:"agentomics.logs"`
		WatchGroup   string   `yaml:"watch_group" default:"agentomics-watch"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"agentomics"`
		Table            string        `yaml:"table" default:"quarters"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		Compress         bool          `yaml:"compress" default:"true"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"agentomics"`
		TTL      time.Duration `yaml:"ttl" default:"168h"`
	} `yaml:"redis"`
}

// FREDSeries maps one FRED series onto a state field.
type FREDSeries struct {
	ID    string `yaml:"id" validate:"required"`
	Field string `yaml:"field" validate:"required"`
	// Scale multiplies raw observations, e.g. 0.01 to turn percent into a decimal.
	Scale float64 `yaml:"scale" default:"0.01"`
}

// SetDefaults is called by creasty/defaults for every slice element.
func (s *FREDSeries) SetDefaults() {
	if s.Scale == 0 {
		s.Scale = 0.01
	}
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for i := range c.FRED.Series {
		c.FRED.Series[i].SetDefaults()
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		c.FRED.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ORCHESTRATOR_MODE"); v != "" {
		c.Simulation.Mode = v
	}
	if v := os.Getenv("ROUNDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ROUNDS: %w", err)
		}
		c.Simulation.Rounds = n
	}
	return nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if (c.Export.Kafka || c.Log.Collect) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when export.kafka or log.collect is enabled")
	}
	if c.Simulation.SeedSource == "fred" {
		if c.FRED.APIKey == "" {
			return fmt.Errorf("fred.api_key is required when simulation.seed_source is 'fred'")
		}
		if len(c.FRED.Series) == 0 {
			return fmt.Errorf("fred.series cannot be empty when simulation.seed_source is 'fred'")
		}
	}
	if c.Orchestrator.Retry.BackoffMax < c.Orchestrator.Retry.BackoffMin {
		return fmt.Errorf("orchestrator.retry.backoff_max must be >= backoff_min")
	}
	return nil
}
