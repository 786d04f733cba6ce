package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Models   ModelsConfig   `yaml:"models" mapstructure:"models"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	SMTP     SMTPConfig     `yaml:"smtp" mapstructure:"smtp"`
	Reminder ReminderConfig `yaml:"reminder" mapstructure:"reminder"`
	Train    TrainConfig    `yaml:"train" mapstructure:"train"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ModelsConfig configures where trained artifacts are persisted.
type ModelsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	BaseURL        string   `yaml:"base_url" mapstructure:"base_url"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AuthConfig configures sessions and signed email links.
type AuthConfig struct {
	Secret          string `yaml:"secret" mapstructure:"secret"`
	SessionTTLHours int    `yaml:"session_ttl_hours" mapstructure:"session_ttl_hours"`
}

// SMTPConfig configures reminder email delivery. With no username/password
// the mailer runs in disabled mode and logs messages instead of sending.
type SMTPConfig struct {
	Host       string `yaml:"host" mapstructure:"host"`
	Port       int    `yaml:"port" mapstructure:"port"`
	Username   string `yaml:"username" mapstructure:"username"`
	Password   string `yaml:"password" mapstructure:"password"`
	From       string `yaml:"from" mapstructure:"from"`
	OverrideTo string `yaml:"override_to" mapstructure:"override_to"`
}

// ReminderConfig configures the daily reminder job.
type ReminderConfig struct {
	Hour               int     `yaml:"hour" mapstructure:"hour"`
	Minute             int     `yaml:"minute" mapstructure:"minute"`
	TopN               int     `yaml:"top_n" mapstructure:"top_n"`
	MinNeedProbability float64 `yaml:"min_need_probability" mapstructure:"min_need_probability"`
}

// TrainConfig configures classifier fitting.
type TrainConfig struct {
	PersonalTrees      int     `yaml:"personal_trees" mapstructure:"personal_trees"`
	GlobalTrees        int     `yaml:"global_trees" mapstructure:"global_trees"`
	ForgetIterations   int     `yaml:"forget_iterations" mapstructure:"forget_iterations"`
	ForgetLearningRate float64 `yaml:"forget_learning_rate" mapstructure:"forget_learning_rate"`
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
	v.SetEnvPrefix("PACKMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "packmind.db")
	v.SetDefault("models.dir", "models_store")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("auth.secret", "dev-secret-change-me")
	v.SetDefault("auth.session_ttl_hours", 72)
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("reminder.hour", 8)
	v.SetDefault("reminder.minute", 0)
	v.SetDefault("reminder.top_n", 5)
	v.SetDefault("reminder.min_need_probability", 0.5)
	v.SetDefault("train.personal_trees", 100)
	v.SetDefault("train.global_trees", 120)
	v.SetDefault("train.forget_iterations", 1000)
	v.SetDefault("train.forget_learning_rate", 0.1)
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
