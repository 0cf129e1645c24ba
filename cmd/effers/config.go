package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// envConfig holds defaults read from the environment. Flags given on the
// command line take precedence.
type envConfig struct {
	DB           string `env:"EFFERS_DB"`
	Format       string `env:"EFFERS_FORMAT" envDefault:"json"`
	Suffix       string `env:"EFFERS_SUFFIX" envDefault:"_effers"`
	Strict       bool   `env:"EFFERS_STRICT"`
	NamingScript string `env:"EFFERS_NAMING_SCRIPT"`
	LogLevel     string `env:"EFFERS_LOG_LEVEL" envDefault:"warn"`
}

// loadEnv parses envConfig from the environment.
func loadEnv() (envConfig, error) {
	var c envConfig
	if err := env.Parse(&c); err != nil {
		return envConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

// applyEnv copies environment defaults into every flag of cmd the user did
// not set.
func applyEnv(cmd *cobra.Command, c envConfig) {
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if f := flags.Lookup(name); f != nil && !f.Changed {
			apply()
		}
	}
	set("db", func() {
		if c.DB != "" {
			flagDB = c.DB
		}
	})
	set("format", func() { flagFormat = c.Format })
	set("suffix", func() { flagSuffix = c.Suffix })
	set("strict", func() { flagStrict = c.Strict })
	set("naming-script", func() { flagNamingScript = c.NamingScript })
}

// newLogger builds the CLI logger. Verbose output uses zap's development
// config; otherwise a console production logger at level.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
