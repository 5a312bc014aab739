package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/emeka-o/billvault/internal/logger"
)

const (
	EnvDevelopment = "dev"
	EnvProduction  = "prod"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultProviderAddr    = "http://localhost:3000"
	defaultProviderTimeout = 15 * time.Second
	defaultEnvironment     = EnvProduction
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the billvault service will be run
	ListenAddr string

	// Bill payment provider address to connect to
	ProviderAddr string

	// Hard ceiling on a single provider call
	ProviderTimeout time.Duration

	// Database to connect to
	DatabaseDSN string

	// Redis address for wallet cache invalidation. Empty disables caching.
	RedisAddr string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		ProviderAddr:    defaultProviderAddr,
		ProviderTimeout: defaultProviderTimeout,
		Environment:     defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			if d, err := time.ParseDuration(value); err == nil {
				*o = d
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":      setString(&c.ListenAddr),
		"DATABASE_URI":     setString(&c.DatabaseDSN),
		"REDIS_ADDRESS":    setString(&c.RedisAddr),
		"SECRET_KEY":       setString(&c.SecretKey),
		"LOG_LEVEL":        setString(&c.LogLevel),
		"PROVIDER_ADDRESS": setString(&c.ProviderAddr),
		"PROVIDER_TIMEOUT": setDuration(&c.ProviderTimeout),
		"ENVIRONMENT":      setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("billvault", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.RedisAddr, "redis", "r", c.RedisAddr, "Redis address for cache invalidation")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.ProviderAddr, "provider", "p", c.ProviderAddr, "Bill payment provider address")
	fs.DurationVar(&c.ProviderTimeout, "provider-timeout", c.ProviderTimeout, "Provider call timeout")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("database connection string is required")
	}
	if c.SecretKey == "" {
		return errors.New("secret key is required")
	}
	return nil
}
