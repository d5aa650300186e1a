package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Telemetry    TelemetryConfig
	Profiling    ProfilingConfig
	Swagger      SwaggerConfig
	LLM          LLMConfig
	Agent        AgentConfig
	Storage      StorageConfig
	Export       ExportConfig
	JWT          JWTConfig
	Integrations IntegrationsConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// IsProduction reports whether the app runs with production rules
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string // full connection string, takes precedence over the discrete fields
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	SlowQuery       time.Duration
	LogLevel        string // silent, error, warn, info
	ConnectAttempts int
	ConnectDelay    time.Duration
}

// RedisConfig holds Redis connection settings. An empty Host keeps conversations in memory.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Enabled reports whether a Redis server was configured
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	MaxUploadSize    int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	RatePerMinute    int // per client IP, 0 disables
	RateBurst        int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsEnabled    bool
	DBTraceEnabled    bool
}

// ProfilingConfig holds Pyroscope continuous profiling settings
type ProfilingConfig struct {
	Enabled              bool
	ServerAddress        string
	BasicAuthUser        string
	BasicAuthPassword    string
	MutexProfileFraction int // 0 leaves mutex profiling off
	BlockProfileRate     int // 0 leaves block profiling off
}

// SwaggerConfig holds the API documentation endpoint settings
type SwaggerConfig struct {
	Enabled     bool
	RequireAuth bool
	AllowedIPs  []string // addresses or CIDR ranges
}

// LLMConfig holds model provider settings
type LLMConfig struct {
	DefaultProvider  string // openai, anthropic
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	MaxTokens        int
	Temperature      float32
	Timeout          time.Duration
}

// AgentConfig holds the tool-calling loop settings
type AgentConfig struct {
	MaxSteps        int
	MaxHistory      int
	ConversationTTL time.Duration
	AllowMutations  bool
	RatePerMinute   int
	Burst           int
	SystemPrompt    string
}

// StorageConfig holds S3-compatible object storage settings for the drive
type StorageConfig struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	PathStyle         bool
	PresignExpiration time.Duration
}

// Enabled reports whether object storage credentials were configured
func (s StorageConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

// ExportConfig holds headless Chrome settings for dashboard PDF export
type ExportConfig struct {
	Enabled   bool
	RemoteURL string
	NoSandbox bool
	Timeout   time.Duration
}

// JWTConfig holds settings to verify externally issued bearer tokens
type JWTConfig struct {
	Secret string
	Issuer string
}

// IntegrationsConfig holds credentials of third-party services the front-end talks to
type IntegrationsConfig struct {
	ComposioAPIKey    string
	AgentMailAPIKey   string
	ElevenLabsAPIKey  string
	BigQueryProjectID string
}

// Load loads configuration from a .env file, config.toml and environment variables
// Priority (highest to lowest):
// 1. Environment variables with GESTAO_ prefix (e.g., GESTAO_DATABASE_PASSWORD)
// 2. Vendor environment variables (DATABASE_URL, OPENAI_API_KEY, ANTHROPIC_API_KEY, ...)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds the configuration from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("GESTAO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// API docs are served by default outside production
	v.SetDefault("swagger.enabled", v.GetString("app.env") != "production")

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			SlowQuery:       v.GetDuration("database.slow_query"),
			LogLevel:        v.GetString("database.log_level"),
			ConnectAttempts: v.GetInt("database.connect_attempts"),
			ConnectDelay:    v.GetDuration("database.connect_delay"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			MaxUploadSize:    v.GetInt64("http.max_upload_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			RatePerMinute:    v.GetInt("http.rate_per_minute"),
			RateBurst:        v.GetInt("http.rate_burst"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
		Profiling: ProfilingConfig{
			Enabled:              v.GetBool("profiling.enabled"),
			ServerAddress:        v.GetString("profiling.server_address"),
			BasicAuthUser:        v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword:    v.GetString("profiling.basic_auth_password"),
			MutexProfileFraction: v.GetInt("profiling.mutex_profile_fraction"),
			BlockProfileRate:     v.GetInt("profiling.block_profile_rate"),
		},
		Swagger: SwaggerConfig{
			Enabled:     v.GetBool("swagger.enabled"),
			RequireAuth: v.GetBool("swagger.require_auth"),
			AllowedIPs:  v.GetStringSlice("swagger.allowed_ips"),
		},
		LLM: LLMConfig{
			DefaultProvider:  v.GetString("llm.default_provider"),
			OpenAIAPIKey:     v.GetString("llm.openai_api_key"),
			OpenAIModel:      v.GetString("llm.openai_model"),
			OpenAIBaseURL:    v.GetString("llm.openai_base_url"),
			AnthropicAPIKey:  v.GetString("llm.anthropic_api_key"),
			AnthropicModel:   v.GetString("llm.anthropic_model"),
			AnthropicBaseURL: v.GetString("llm.anthropic_base_url"),
			MaxTokens:        v.GetInt("llm.max_tokens"),
			Temperature:      float32(v.GetFloat64("llm.temperature")),
			Timeout:          v.GetDuration("llm.timeout"),
		},
		Agent: AgentConfig{
			MaxSteps:        v.GetInt("agent.max_steps"),
			MaxHistory:      v.GetInt("agent.max_history"),
			ConversationTTL: v.GetDuration("agent.conversation_ttl"),
			AllowMutations:  v.GetBool("agent.allow_mutations"),
			RatePerMinute:   v.GetInt("agent.rate_per_minute"),
			Burst:           v.GetInt("agent.burst"),
			SystemPrompt:    v.GetString("agent.system_prompt"),
		},
		Storage: StorageConfig{
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			PathStyle:         v.GetBool("storage.path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Export: ExportConfig{
			Enabled:   v.GetBool("export.enabled"),
			RemoteURL: v.GetString("export.remote_url"),
			NoSandbox: v.GetBool("export.no_sandbox"),
			Timeout:   v.GetDuration("export.timeout"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Integrations: IntegrationsConfig{
			ComposioAPIKey:    v.GetString("integrations.composio_api_key"),
			AgentMailAPIKey:   v.GetString("integrations.agentmail_api_key"),
			ElevenLabsAPIKey:  v.GetString("integrations.elevenlabs_api_key"),
			BigQueryProjectID: v.GetString("integrations.bigquery_project_id"),
		},
	}

	applyVendorEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyVendorEnv fills empty settings from the conventional variable names used by the vendors
func applyVendorEnv(cfg *Config) {
	fallback := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fallback(&cfg.Database.URL, "DATABASE_URL")
	fallback(&cfg.LLM.OpenAIAPIKey, "OPENAI_API_KEY")
	fallback(&cfg.LLM.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	fallback(&cfg.Integrations.ComposioAPIKey, "COMPOSIO_API_KEY")
	fallback(&cfg.Integrations.AgentMailAPIKey, "AGENTMAIL_API_KEY")
	fallback(&cfg.Integrations.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")
	fallback(&cfg.Integrations.BigQueryProjectID, "GOOGLE_CLOUD_PROJECT")
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "gestao"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "gestao"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 10
	}
	if cfg.Database.SlowQuery == 0 {
		cfg.Database.SlowQuery = 200 * time.Millisecond
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.ConnectAttempts == 0 {
		cfg.Database.ConnectAttempts = 5
	}
	if cfg.Database.ConnectDelay == 0 {
		cfg.Database.ConnectDelay = 2 * time.Second
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.IsProduction() {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 30 * time.Second
	}
	// Chat turns run several model calls, so writes get a long deadline.
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 180 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 120 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20
	}
	if cfg.HTTP.MaxUploadSize == 0 {
		cfg.HTTP.MaxUploadSize = 50 << 20
	}
	if cfg.HTTP.RateBurst == 0 {
		cfg.HTTP.RateBurst = 20
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.LLM.DefaultProvider == "" {
		if cfg.LLM.AnthropicAPIKey != "" {
			cfg.LLM.DefaultProvider = "anthropic"
		} else {
			cfg.LLM.DefaultProvider = "openai"
		}
	}
	if cfg.LLM.OpenAIModel == "" {
		cfg.LLM.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.LLM.AnthropicModel == "" {
		cfg.LLM.AnthropicModel = "claude-3-5-sonnet-latest"
	}
	if cfg.LLM.AnthropicBaseURL == "" {
		cfg.LLM.AnthropicBaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.Agent.MaxSteps == 0 {
		cfg.Agent.MaxSteps = 8
	}
	if cfg.Agent.MaxHistory == 0 {
		cfg.Agent.MaxHistory = 40
	}
	if cfg.Agent.ConversationTTL == 0 {
		cfg.Agent.ConversationTTL = 24 * time.Hour
	}
	if cfg.Agent.RatePerMinute == 0 {
		cfg.Agent.RatePerMinute = 30
	}
	if cfg.Agent.Burst == 0 {
		cfg.Agent.Burst = 5
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Export.Timeout == 0 {
		cfg.Export.Timeout = 30 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Database.ConnectAttempts < 1 {
		return fmt.Errorf("database.connect_attempts must be at least 1")
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return fmt.Errorf("profiling.server_address is required when profiling is enabled")
	}
	if c.Swagger.RequireAuth && c.JWT.Secret == "" {
		return fmt.Errorf("swagger.require_auth needs jwt.secret to verify tokens")
	}
	if c.Agent.MaxSteps < 1 || c.Agent.MaxSteps > 32 {
		return fmt.Errorf("agent.max_steps must be between 1 and 32, got %d", c.Agent.MaxSteps)
	}
	switch c.LLM.DefaultProvider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.default_provider must be openai or anthropic, got %q", c.LLM.DefaultProvider)
	}

	if c.App.IsProduction() {
		if c.Database.URL == "" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.URL == "" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Swagger.Enabled && !c.Swagger.RequireAuth && len(c.Swagger.AllowedIPs) == 0 {
			return fmt.Errorf("swagger must be disabled, require authentication, or have allowed_ips in production")
		}
		if c.JWT.Secret != "" && len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port pair of the Redis server
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
