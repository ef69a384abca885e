package qglib

import (
	"github.com/pion/logging"
)

type IEngineConfig interface {
	GetLoggerFactory() logging.LoggerFactory
	WithLoggerFactory(loggerFactory logging.LoggerFactory) IEngineConfig
}

type engineConfig struct {
	loggerFactory logging.LoggerFactory
}

// NewConfig returns the default engine config. Logging goes through the pion
// default logger factory, which reads its levels from the PION_LOG_* env vars.
func NewConfig() IEngineConfig {
	return &engineConfig{}
}

func (c *engineConfig) GetLoggerFactory() logging.LoggerFactory {
	if c.loggerFactory == nil {
		return logging.NewDefaultLoggerFactory()
	}
	return c.loggerFactory
}

// WithLoggerFactory sets the factory the engine creates its logger from.
func (c *engineConfig) WithLoggerFactory(loggerFactory logging.LoggerFactory) IEngineConfig {
	c.loggerFactory = loggerFactory
	return c
}
