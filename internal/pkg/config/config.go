// Package config reads the service settings. Missing keys yield zero values;
// callers apply their own defaults.
package config

import (
	"io"
	"time"
)

// Config is the read side of the settings file.
type Config interface {
	io.Closer

	GetBool(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetInt32(key string) int32
	GetUint16(key string) uint16
	GetFloat64(key string) float64

	// GetSecond reads an integer number of seconds.
	GetSecond(key string) time.Duration

	// GetBinary decodes a base64 value; invalid input yields nil.
	GetBinary(key string) []byte

	// GetArray reads a YAML list or a comma separated string. Blank
	// elements are dropped.
	GetArray(key string) []string

	// Unmarshal decodes the section under key into out, which must be a pointer.
	// Struct fields are matched by their `mapstructure` tag.
	Unmarshal(key string, out any) error
}
