package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is prepended to every settings environment variable.
const EnvPrefix = "ESG"

// Settings holds process level configuration. The rulebook (Config) lives
// in the workspace database; Settings come from flags, env and esgtrack.yaml.
type Settings struct {
	Workspace    string             `yaml:"workspace" mapstructure:"workspace"`
	Actor        string             `yaml:"actor" mapstructure:"actor"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	QuestionBank QuestionBankConfig `yaml:"question_bank" mapstructure:"question_bank"`
	Regenerate   RegenerateConfig   `yaml:"regenerate" mapstructure:"regenerate"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr                   string    `yaml:"addr" mapstructure:"addr"`
	BasePath               string    `yaml:"base_path" mapstructure:"base_path"`
	AllowLegacyActorHeader bool      `yaml:"allow_legacy_actor_header" mapstructure:"allow_legacy_actor_header"`
	JWT                    JWTConfig `yaml:"jwt" mapstructure:"jwt"`
}

type JWTConfig struct {
	Secret   string `yaml:"secret" mapstructure:"secret"`
	Issuer   string `yaml:"issuer" mapstructure:"issuer"`
	Audience string `yaml:"audience" mapstructure:"audience"`
}

// QuestionBankConfig points at an optional question bank override file.
type QuestionBankConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RegenerateConfig bounds bulk regeneration.
type RegenerateConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LoadSettings reads settings from v (flags already bound by the caller),
// the ESG_* environment and an optional esgtrack.yaml in the working directory.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetConfigName("esgtrack")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("workspace", ".")
	v.SetDefault("actor", "local-user")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.base_path", "/v0")
	v.SetDefault("server.allow_legacy_actor_header", false)
	v.SetDefault("server.jwt.secret", "")
	v.SetDefault("server.jwt.issuer", "")
	v.SetDefault("server.jwt.audience", "")
	v.SetDefault("question_bank.path", "")
	v.SetDefault("regenerate.concurrency", 4)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "settings: read file")
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, eris.Wrap(err, "settings: unmarshal")
	}
	if s.Regenerate.Concurrency <= 0 {
		s.Regenerate.Concurrency = 1
	}
	return &s, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "settings: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "settings: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
