package config

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/xtrafetch/internal/xtra"
)

// Config holds the full application configuration.
type Config struct {
	XTRA   XTRAConfig   `yaml:"xtra" mapstructure:"xtra"`
	HTTP   HTTPConfig   `yaml:"http" mapstructure:"http"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Serve  ServeConfig  `yaml:"serve" mapstructure:"serve"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// XTRAConfig points at the GPS configuration holding the mirror list.
type XTRAConfig struct {
	GPSConf string `yaml:"gps_conf" mapstructure:"gps_conf"`
}

// HTTPConfig configures outgoing fetches.
type HTTPConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// Timeout returns TimeoutSecs as a duration.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSecs) * time.Second
}

// ServerConfig configures the local HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// ServeConfig configures how the serve command caches and refreshes data.
type ServeConfig struct {
	CacheTTLSecs     int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	RefreshPerMinute float64  `yaml:"refresh_per_minute" mapstructure:"refresh_per_minute"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("XTRAFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("xtra.gps_conf", "gps.conf")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("serve.cache_ttl_secs", 3600)
	v.SetDefault("serve.refresh_per_minute", 6)
	v.SetDefault("serve.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command depends on. mode is the command
// name: "download", "servers" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "download", "servers":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if c.Serve.CacheTTLSecs < 0 {
			problems = append(problems, "serve.cache_ttl_secs must be >= 0")
		}
		if c.Serve.RefreshPerMinute <= 0 {
			problems = append(problems, "serve.refresh_per_minute must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.HTTP.TimeoutSecs < 0 {
		problems = append(problems, "http.timeout_secs must be >= 0")
	}
	if strings.TrimSpace(c.XTRA.GPSConf) == "" {
		problems = append(problems, "xtra.gps_conf is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LoadServers reads the XTRA_SERVER_n entries from a gps.conf file
// (properties format: KEY=VALUE lines, # comments). Values are taken
// verbatim. Environment variables with the same names take precedence. A
// missing file yields whatever the environment provides.
func LoadServers(path string) (map[string]string, error) {
	v, err := newPropertiesViper()
	if err != nil {
		return nil, err
	}

	for _, key := range xtra.ServerKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, eris.Wrapf(err, "config: read %s", path)
			}
		case os.IsNotExist(err):
			zap.L().Debug("gps configuration not found", zap.String("path", path))
		default:
			return nil, eris.Wrapf(err, "config: stat %s", path)
		}
	}

	props := make(map[string]string, len(xtra.ServerKeys))
	for _, key := range xtra.ServerKeys {
		if val := strings.TrimSpace(v.GetString(key)); val != "" {
			props[key] = val
		}
	}
	return props, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
