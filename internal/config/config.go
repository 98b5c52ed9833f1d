package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultOffsets are the timezone-offset partitions the scheduler drives.
// The gaps are offsets with no registered locations.
var defaultOffsets = []int{13, 11, 10, 9, 8, 7, 6, 5, 3, 2, 1, 0, -3, -4, -5, -6, -7, -8}

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort     string
	RequestTimeout time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	ProviderAPIKey    string
	ProviderAPIURL    string
	ProviderTimeout   time.Duration
	ProviderRateRPS   int
	ProviderRateBurst int
	RetryAttempts     int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	PushServerKey   string
	PushAPIURL      string
	PushPackageName string
	PushTimeout     time.Duration

	StoreBackend  string // "memory" or "redis"
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	LockBackend    string // "memory" or "memcached"
	MemcachedAddrs string
	LockTTL        time.Duration

	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSnapshotTopic string
	KafkaEventTopic    string

	PageSize        int
	SyncWorkers     int
	SyncInterval    time.Duration
	NotifyLocalHour int
	Offsets         []int

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port           string `yaml:"port"`
		RequestTimeout string `yaml:"request_timeout"`
		RateLimitRPS   int    `yaml:"rate_limit_rps"`
		RateLimitBurst int    `yaml:"rate_limit_burst"`
	} `yaml:"server"`

	Provider struct {
		URL       string `yaml:"url"`
		Timeout   string `yaml:"timeout"`
		RateRPS   int    `yaml:"rate_rps"`
		RateBurst int    `yaml:"rate_burst"`
	} `yaml:"provider"`

	Push struct {
		URL         string `yaml:"url"`
		PackageName string `yaml:"package_name"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"push"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		CircuitBreaker   struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Store struct {
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Username string `yaml:"username"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Lock struct {
		Backend string `yaml:"backend"`
		TTL     string `yaml:"ttl"`
		Memcached struct {
			Addrs string `yaml:"addrs"`
		} `yaml:"memcached"`
	} `yaml:"lock"`

	Kafka struct {
		Enabled       *bool    `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		SnapshotTopic string   `yaml:"snapshot_topic"`
		EventTopic    string   `yaml:"event_topic"`
	} `yaml:"kafka"`

	Pipeline struct {
		PageSize        int    `yaml:"page_size"`
		SyncWorkers     int    `yaml:"sync_workers"`
		SyncInterval    string `yaml:"sync_interval"`
		NotifyLocalHour *int   `yaml:"notify_local_hour"`
		Offsets         []int  `yaml:"offsets"`
	} `yaml:"pipeline"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	ProviderAPIKey string `yaml:"provider_api_key"`
	PushServerKey  string `yaml:"push_server_key"`
	RedisPassword  string `yaml:"redis_password"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. The provider API key and push server key come from
// PROVIDER_API_KEY / PUSH_SERVER_KEY env or the secrets file. Call from
// project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	var sec secretsFile
	secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
	secretsData, err := os.ReadFile(secretsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read secrets file: %w", err)
		}
	} else if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.RequestTimeout = parseDuration(fc.Server.RequestTimeout, 5*time.Second)
	cfg.RateLimitRPS = fc.Server.RateLimitRPS
	cfg.RateLimitBurst = fc.Server.RateLimitBurst

	cfg.ProviderAPIKey = os.Getenv("PROVIDER_API_KEY")
	if cfg.ProviderAPIKey == "" {
		cfg.ProviderAPIKey = sec.ProviderAPIKey
	}
	if cfg.ProviderAPIKey == "" {
		return nil, fmt.Errorf("PROVIDER_API_KEY required (set env or config/secrets.yaml provider_api_key)")
	}
	cfg.ProviderAPIURL = fc.Provider.URL
	if cfg.ProviderAPIURL == "" {
		cfg.ProviderAPIURL = "https://api.darksky.net/forecast"
	}
	cfg.ProviderTimeout = parseDurationOrZero(fc.Provider.Timeout, 10*time.Second)
	cfg.ProviderRateRPS = fc.Provider.RateRPS
	if cfg.ProviderRateRPS <= 0 {
		cfg.ProviderRateRPS = 20
	}
	cfg.ProviderRateBurst = fc.Provider.RateBurst
	if cfg.ProviderRateBurst <= 0 {
		cfg.ProviderRateBurst = 40
	}

	cfg.PushServerKey = os.Getenv("PUSH_SERVER_KEY")
	if cfg.PushServerKey == "" {
		cfg.PushServerKey = sec.PushServerKey
	}
	if cfg.PushServerKey == "" {
		return nil, fmt.Errorf("PUSH_SERVER_KEY required (set env or config/secrets.yaml push_server_key)")
	}
	cfg.PushAPIURL = fc.Push.URL
	if cfg.PushAPIURL == "" {
		cfg.PushAPIURL = "https://fcm.googleapis.com/fcm/send"
	}
	cfg.PushPackageName = fc.Push.PackageName
	cfg.PushTimeout = parseDuration(fc.Push.Timeout, 10*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)

	cfg.CircuitBreakerEnabled = true
	if fc.Reliability.CircuitBreaker.Enabled != nil {
		cfg.CircuitBreakerEnabled = *fc.Reliability.CircuitBreaker.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = fc.Reliability.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.Reliability.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.Reliability.CircuitBreaker.Timeout, 30*time.Second)

	cfg.StoreBackend = strings.TrimSpace(strings.ToLower(os.Getenv("STORE_BACKEND")))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = strings.TrimSpace(strings.ToLower(fc.Store.Backend))
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "memory"
	}
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = strings.TrimSpace(fc.Store.Redis.Addr)
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	cfg.RedisUsername = fc.Store.Redis.Username
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisPassword == "" {
		cfg.RedisPassword = sec.RedisPassword
	}
	cfg.RedisDB = fc.Store.Redis.DB

	cfg.LockBackend = strings.TrimSpace(strings.ToLower(os.Getenv("LOCK_BACKEND")))
	if cfg.LockBackend == "" {
		cfg.LockBackend = strings.TrimSpace(strings.ToLower(fc.Lock.Backend))
	}
	if cfg.LockBackend == "" {
		cfg.LockBackend = "memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Lock.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.LockTTL = parseDuration(fc.Lock.TTL, 10*time.Minute)

	cfg.KafkaEnabled = false
	if fc.Kafka.Enabled != nil {
		cfg.KafkaEnabled = *fc.Kafka.Enabled
	}
	cfg.KafkaBrokers = fc.Kafka.Brokers
	if len(cfg.KafkaBrokers) == 0 {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	cfg.KafkaSnapshotTopic = fc.Kafka.SnapshotTopic
	if cfg.KafkaSnapshotTopic == "" {
		cfg.KafkaSnapshotTopic = "forecast.candidates"
	}
	cfg.KafkaEventTopic = fc.Kafka.EventTopic
	if cfg.KafkaEventTopic == "" {
		cfg.KafkaEventTopic = "forecast.analytics"
	}

	cfg.PageSize = fc.Pipeline.PageSize
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	cfg.SyncWorkers = fc.Pipeline.SyncWorkers
	if cfg.SyncWorkers <= 0 {
		cfg.SyncWorkers = 8
	}
	cfg.SyncInterval = parseDuration(fc.Pipeline.SyncInterval, 15*time.Minute)
	cfg.NotifyLocalHour = 11
	if fc.Pipeline.NotifyLocalHour != nil {
		cfg.NotifyLocalHour = *fc.Pipeline.NotifyLocalHour
	}
	cfg.Offsets = fc.Pipeline.Offsets
	if len(cfg.Offsets) == 0 {
		cfg.Offsets = append([]int(nil), defaultOffsets...)
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on
// empty string or parse error. Zero or negative values pass through so
// validate() can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.ProviderTimeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	switch cfg.StoreBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("store.backend must be memory or redis, got %q", cfg.StoreBackend)
	}
	switch cfg.LockBackend {
	case "memory", "memcached":
	default:
		return fmt.Errorf("lock.backend must be memory or memcached, got %q", cfg.LockBackend)
	}
	if cfg.NotifyLocalHour < 0 || cfg.NotifyLocalHour > 23 {
		return fmt.Errorf("pipeline.notify_local_hour must be in [0,23], got %d", cfg.NotifyLocalHour)
	}
	for _, off := range cfg.Offsets {
		if off < -12 || off > 14 {
			return fmt.Errorf("pipeline.offsets entry %d outside [-12,14]", off)
		}
	}
	return nil
}
