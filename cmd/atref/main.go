// Package main is the entry point for the atref command line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/atref/atref/cmd/atref/app"
	"github.com/atref/atref/internal/config"
)

// getLogLevel parses the ATREF_LOG_LEVEL environment variable.
// Defaults to info if unset or invalid.
func getLogLevel() (zapcore.Level, error) {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(levelStr)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid %s_LOG_LEVEL %q, using info", config.EnvPrefix, levelStr)
	}
	return level, nil
}

// newLogger logs to stderr to keep stdout clean for command output.
// Terminals get the console encoder, everything else JSON.
func newLogger(level zap.AtomicLevel) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return cfg.Build()
}

func main() {
	lvl, levelErr := getLogLevel()
	level := zap.NewAtomicLevelAt(lvl)

	zapLogger, err := newLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger := zapr.NewLogger(zapLogger)
	if levelErr != nil {
		logger.Info(levelErr.Error())
	}

	ctx := logr.NewContext(context.Background(), logger)
	err = app.NewRootCmd(level).ExecuteContext(ctx)
	_ = zapLogger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
