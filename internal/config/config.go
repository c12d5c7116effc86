// Package config loads the daemon configuration from the environment and an
// optional .env file.
package config

import (
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

// DefaultEnvFile is read when PAWGRAM_ENV_FILE is unset.
const DefaultEnvFile = ".env"

// Config holds every runtime setting of pawgramd.
type Config struct {
	HTTPPort      string        `env:"PAWGRAM_HTTP_PORT,default=5000"`
	DataDir       string        `env:"PAWGRAM_DATA_DIR,default=./data"`
	JWTSecret     string        `env:"PAWGRAM_JWT_SECRET,required"`
	TokenTTL      time.Duration `env:"PAWGRAM_TOKEN_TTL,default=24h"`
	TokenIssuer   string        `env:"PAWGRAM_TOKEN_ISSUER,default=pawgram"`
	SessionDB     string        `env:"PAWGRAM_SESSION_DB,default=./data/sessions.db"`
	DefaultAvatar string        `env:"PAWGRAM_DEFAULT_AVATAR"`
	PublicDir     string        `env:"PAWGRAM_PUBLIC_DIR"`
	PublicURL     string        `env:"PAWGRAM_PUBLIC_URL"`
	MaxBodyBytes  int64         `env:"PAWGRAM_MAX_BODY_BYTES,default=52428800"`
	LogLevel      string        `env:"PAWGRAM_LOG_LEVEL,default=info"`
	LogFormat     string        `env:"PAWGRAM_LOG_FORMAT,default=text"`
	TLSSelfSigned bool          `env:"PAWGRAM_TLS_SELF_SIGNED,default=false"`
	CORSOrigin    string        `env:"PAWGRAM_CORS_ORIGIN,default=*"`
}

// Load reads the env file named by PAWGRAM_ENV_FILE (or .env) if it exists,
// then decodes the process environment. Variables already set in the
// environment win over the file.
func Load() (*Config, error) {
	envFile := os.Getenv("PAWGRAM_ENV_FILE")
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, errors.Annotatef(err, "load env file %s", envFile)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, errors.Annotate(err, "decode environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &cfg, nil
}

// Validate checks values envdecode cannot express as tags.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.NotValidf("empty PAWGRAM_JWT_SECRET")
	}
	if c.TokenTTL <= 0 {
		return errors.NotValidf("PAWGRAM_TOKEN_TTL %s", c.TokenTTL)
	}
	if c.MaxBodyBytes <= 0 {
		return errors.NotValidf("PAWGRAM_MAX_BODY_BYTES %d", c.MaxBodyBytes)
	}
	if c.HTTPPort == "" {
		return errors.NotValidf("empty PAWGRAM_HTTP_PORT")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.NotValidf("PAWGRAM_LOG_LEVEL %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.NotValidf("PAWGRAM_LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// ConfigureLogging applies the log level and format to the standard logrus logger.
func (c *Config) ConfigureLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
