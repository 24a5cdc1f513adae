package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration, read from the environment after an
// optional .env file.
type Config struct {
	DBPath            string        `envconfig:"DB_PATH" default:"nhw_data.db"`
	ListenAddr        string        `envconfig:"LISTEN_ADDR" default:":8080"`
	JWTSecret         string        `envconfig:"JWT_SECRET" default:"change_me_in_production"`
	TokenTTL          time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	AllowRegistration bool          `envconfig:"ALLOW_REGISTRATION" default:"false"`
	AutoBackup        bool          `envconfig:"AUTO_BACKUP" default:"true"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
	CORSOrigins       []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Not an error: production installs configure the environment
		// directly.
		logrus.Debug("no .env file found")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds the shared JSON logger.
func NewLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}
