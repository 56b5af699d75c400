package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/bryanwahyu/vulngate/internal/config"
	"github.com/bryanwahyu/vulngate/internal/logging"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

// load reads the config file when one is given, otherwise the built-in defaults.
func (o *globalOptions) load() (*config.Config, error) {
	if o.configPath == "" {
		return config.Parse(nil)
	}
	return config.Load(o.configPath)
}

func (o *globalOptions) logger(a *app, cfg *config.Config) (*logrus.Logger, error) {
	level := cfg.Server.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	return logging.New(level, logging.Text, a.stderr)
}

// override copies a flag value over the config only when the user set it.
func override[T any](flags *pflag.FlagSet, name string, dst *T, v T) {
	if flags.Changed(name) {
		*dst = v
	}
}
