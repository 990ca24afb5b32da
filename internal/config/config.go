package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/arlenko/mira/internal/platform"
)

type Config struct {
	Debug bool `mapstructure:"debug"`

	API struct {
		BaseURL   string `mapstructure:"base_url"`
		Token     string `mapstructure:"token"`
		RateLimit struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			BurstSize         int `mapstructure:"burst_size"`
		} `mapstructure:"rate_limit"`
		Timeout   int    `mapstructure:"timeout"`
		Retries   int    `mapstructure:"retries"`
		UserAgent string `mapstructure:"user_agent"`
	} `mapstructure:"api"`

	Storage struct {
		DatabasePath string `mapstructure:"database_path"`
		EnableWAL    bool   `mapstructure:"enable_wal"`
	} `mapstructure:"storage"`

	Audio struct {
		SampleRate      int     `mapstructure:"sample_rate"`
		BufferSize      int     `mapstructure:"buffer_size"`
		DefaultVolume   float64 `mapstructure:"default_volume"`
		LoadTimeout     int     `mapstructure:"load_timeout"`
		PlatformOptimal bool    `mapstructure:"platform_optimal"`
	} `mapstructure:"audio"`

	Search struct {
		CategoryLimit int `mapstructure:"category_limit"`
	} `mapstructure:"search"`

	User struct {
		ID       string `mapstructure:"id"`
		Username string `mapstructure:"username"`
		Email    string `mapstructure:"email"`
	} `mapstructure:"user"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		configDir, err := platform.GetConfigDir()
		if err != nil {
			return nil, err
		}
		viper.AddConfigPath(configDir)
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("MIRA")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, err
	}

	optimizeForPlatform(&cfg)

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("debug", false)

	viper.SetDefault("api.base_url", "https://api.mira.arlenko.dev/v1")
	viper.SetDefault("api.rate_limit.requests_per_second", 50)
	viper.SetDefault("api.rate_limit.burst_size", 10)
	viper.SetDefault("api.timeout", 30)
	viper.SetDefault("api.retries", 3)
	viper.SetDefault("api.user_agent", "Mira/1.0.0")

	dataDir, _ := platform.GetDataDir()

	viper.SetDefault("storage.database_path", filepath.Join(dataDir, "mira.db"))
	viper.SetDefault("storage.enable_wal", true)

	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.buffer_size", getDefaultBufferSize())
	viper.SetDefault("audio.default_volume", 0.7)
	viper.SetDefault("audio.load_timeout", 30)
	viper.SetDefault("audio.platform_optimal", true)

	viper.SetDefault("search.category_limit", 10)
}

func getDefaultBufferSize() int {
	switch runtime.GOOS {
	case "linux", "android":
		return 16384
	default:
		return 8192
	}
}

func optimizeForPlatform(cfg *Config) {
	if !cfg.Audio.PlatformOptimal {
		return
	}

	switch runtime.GOOS {
	case "linux":
		if cfg.Audio.BufferSize < 8192 {
			cfg.Audio.BufferSize = 16384
		}
	case "android":
		cfg.Audio.BufferSize = 16384
	}
}

func ensureDirectories(cfg *Config) error {
	return os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755)
}

func (c *Config) Save() error {
	configDir, err := platform.GetConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	configFile := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configFile)
}
