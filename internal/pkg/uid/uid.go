// Package uid generates identifiers: UUIDs for correlation and snowflake
// numbers for mail messages.
package uid

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}

// NumberID generates numeric identifiers that sort by creation time.
type NumberID interface {
	Generate() int64
}
