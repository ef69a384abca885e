package qglib

import (
	internal "github.com/jerbob92/go-qglib/internal"
)

type Engine interface {
	internal.IEngine
}

type IEngineConfig = internal.IEngineConfig

// CreateEngine returns a new engine with the fundamental types, their value
// vtables and transformations and the notify signal registered. Pass nil to
// use the default config.
func CreateEngine(config IEngineConfig) Engine {
	return internal.CreateEngine(config)
}

func NewConfig() IEngineConfig {
	return internal.NewConfig()
}
