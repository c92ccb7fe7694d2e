package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	LLM      LLMConfig      `mapstructure:"llm"`
	OSS      OSSConfig      `mapstructure:"oss"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Output   OutputConfig   `mapstructure:"output"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql or sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Path         string `mapstructure:"path"` // sqlite file path
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type GitHubConfig struct {
	Token          string `mapstructure:"token"`
	APIBaseURL     string `mapstructure:"api_base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type LLMConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	ChatModel      string `mapstructure:"chat_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type QueueConfig struct {
	AnalysisQueue string `mapstructure:"analysis_queue"`
	MaxWorkers    int    `mapstructure:"max_workers"`
}

type WorkerConfig struct {
	FetchTimeoutSeconds      int   `mapstructure:"fetch_timeout_seconds"`
	SynthesizeTimeoutSeconds int   `mapstructure:"synthesize_timeout_seconds"`
	MaxFiles                 int   `mapstructure:"max_files"`
	MaxFileBytes             int64 `mapstructure:"max_file_bytes"`
}

type CacheConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
}

type OutputConfig struct {
	PackageDir string `mapstructure:"package_dir"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load(configPath string) (*Config, error) {
	// Prefer config.local.yaml when present (holds real keys, not committed).
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Environment variables override file values.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Queue.AnalysisQueue == "" {
		cfg.Queue.AnalysisQueue = "docgen:jobs"
	}
	if cfg.Queue.MaxWorkers <= 0 {
		cfg.Queue.MaxWorkers = 4
	}
	if cfg.Worker.FetchTimeoutSeconds <= 0 {
		cfg.Worker.FetchTimeoutSeconds = 120
	}
	if cfg.Worker.SynthesizeTimeoutSeconds <= 0 {
		cfg.Worker.SynthesizeTimeoutSeconds = 300
	}
	if cfg.Worker.MaxFiles <= 0 {
		cfg.Worker.MaxFiles = 25
	}
	if cfg.Worker.MaxFileBytes <= 0 {
		cfg.Worker.MaxFileBytes = 64 * 1024
	}
	if cfg.Cache.TTLHours <= 0 {
		cfg.Cache.TTLHours = 24
	}
	if cfg.GitHub.APIBaseURL == "" {
		cfg.GitHub.APIBaseURL = "https://api.github.com"
	}
	if cfg.GitHub.TimeoutSeconds <= 0 {
		cfg.GitHub.TimeoutSeconds = 30
	}
	if cfg.Output.PackageDir == "" {
		cfg.Output.PackageDir = filepath.Join(os.TempDir(), "docgen_packages")
	}
}
