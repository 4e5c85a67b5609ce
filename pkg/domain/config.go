// Package domain contains the core types shared by storage backends and
// ID-generation services: key configurations, formatted-ID parts, and
// persistent sequence state.
package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// IDType discriminates the three ID families.
type IDType string

const (
	// IDTypeIncrement issues monotonic auto-increment numbers.
	IDTypeIncrement IDType = "increment"
	// IDTypeSnowflake issues client-side packed 64-bit time-ordered numbers.
	IDTypeSnowflake IDType = "snowflake"
	// IDTypeFormatted issues templated strings with an embedded counter.
	IDTypeFormatted IDType = "formatted"
)

// Valid reports whether t is a known ID type.
func (t IDType) Valid() bool {
	switch t {
	case IDTypeIncrement, IDTypeSnowflake, IDTypeFormatted:
		return true
	}
	return false
}

// DerivedKeyPrefix marks counter keys derived from formatted configs.
// Keys with this prefix are reserved and rejected in client configs.
const DerivedKeyPrefix = "fmt:"

// MaxKeyLength is the maximum length of a user-chosen key.
const MaxKeyLength = 255

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateKey checks the key grammar: ASCII [A-Za-z0-9_-], at most 255
// characters, and not using the reserved derived-key prefix.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("key exceeds %d characters", MaxKeyLength)
	}
	if strings.HasPrefix(key, DerivedKeyPrefix) {
		return fmt.Errorf("key prefix %q is reserved", DerivedKeyPrefix)
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("key contains characters outside [A-Za-z0-9_-]")
	}
	return nil
}

// KeyConfig is the persisted configuration of one key. Exactly one of the
// per-type configs is set, matching Type. Keys share a single namespace
// across all three types.
type KeyConfig struct {
	Key       string           `json:"key"`
	Type      IDType           `json:"id_type"`
	Increment *IncrementConfig `json:"increment,omitempty"`
	Snowflake *SnowflakeConfig `json:"snowflake,omitempty"`
	Formatted *FormattedConfig `json:"formatted,omitempty"`
}

// Validate checks the key grammar and the type-specific configuration.
func (c *KeyConfig) Validate() error {
	if err := ValidateKey(c.Key); err != nil {
		return err
	}
	switch c.Type {
	case IDTypeIncrement:
		if c.Increment == nil {
			return fmt.Errorf("increment config missing for key %q", c.Key)
		}
		return c.Increment.Validate()
	case IDTypeSnowflake:
		if c.Snowflake == nil {
			return fmt.Errorf("snowflake config missing for key %q", c.Key)
		}
		return c.Snowflake.Validate()
	case IDTypeFormatted:
		if c.Formatted == nil {
			return fmt.Errorf("formatted config missing for key %q", c.Key)
		}
		return c.Formatted.Validate()
	default:
		return fmt.Errorf("unknown id_type %q", c.Type)
	}
}

// IncrementConfig configures an auto-increment key.
type IncrementConfig struct {
	// Base is the first value the key will issue.
	Base int64 `json:"base"`

	// Delta is the default step between consecutive values.
	Delta int64 `json:"delta"`

	// MaxRequestDelta caps the per-request delta override.
	MaxRequestDelta int64 `json:"max_request_delta"`

	// RandDelta enables randomized steps in [1, delta] per issued value.
	RandDelta bool `json:"rand_delta"`

	// MaxValue caps the counter; advancing past it is an exhaustion.
	// Zero means no cap.
	MaxValue int64 `json:"max_value,omitempty"`
}

// ApplyDefaults fills zero fields with their defaults.
func (c *IncrementConfig) ApplyDefaults() {
	if c.Base == 0 {
		c.Base = 1
	}
	if c.Delta == 0 {
		c.Delta = 1
	}
	if c.MaxRequestDelta == 0 {
		c.MaxRequestDelta = 100
	}
}

// EffectiveMax returns the counter cap, MaxInt64 when unset.
func (c *IncrementConfig) EffectiveMax() int64 {
	if c.MaxValue == 0 {
		return math.MaxInt64
	}
	return c.MaxValue
}

// Validate checks field ranges.
func (c *IncrementConfig) Validate() error {
	if c.Delta < 1 {
		return fmt.Errorf("delta must be >= 1, got %d", c.Delta)
	}
	if c.MaxRequestDelta < 1 {
		return fmt.Errorf("max_request_delta must be >= 1, got %d", c.MaxRequestDelta)
	}
	if c.MaxValue != 0 && c.MaxValue <= c.Base {
		return fmt.Errorf("max_value %d must exceed base %d", c.MaxValue, c.Base)
	}
	return nil
}

// DefaultSnowflakeEpoch is 2024-01-01 00:00:00 UTC in milliseconds.
const DefaultSnowflakeEpoch int64 = 1_704_067_200_000

// SnowflakeConfig describes the client-side bit layout of a snowflake key.
// The server never packs IDs itself; it hands the layout plus a leased
// worker id to clients.
type SnowflakeConfig struct {
	// SkipSize is the number of unused high bits (usually the sign bit).
	SkipSize uint8 `json:"skip_size"`

	// BaseTS is the custom epoch in milliseconds.
	BaseTS int64 `json:"base_ts"`

	// TSSize is the number of timestamp bits.
	TSSize uint8 `json:"ts_size"`

	// WorkerIDSize is the number of worker-id bits; the lease pool holds
	// 2^WorkerIDSize ids.
	WorkerIDSize uint8 `json:"worker_id_size"`

	// SeqSize is the number of per-millisecond sequence bits.
	SeqSize uint8 `json:"seq_size"`
}

// ApplyDefaults fills zero fields with the conventional 1+41+10+12 layout.
func (c *SnowflakeConfig) ApplyDefaults() {
	if c.SkipSize == 0 {
		c.SkipSize = 1
	}
	if c.BaseTS == 0 {
		c.BaseTS = DefaultSnowflakeEpoch
	}
	if c.TSSize == 0 {
		c.TSSize = 41
	}
	if c.WorkerIDSize == 0 {
		c.WorkerIDSize = 10
	}
	if c.SeqSize == 0 {
		c.SeqSize = 12
	}
}

// WorkerPoolSize returns the number of leasable worker ids.
func (c *SnowflakeConfig) WorkerPoolSize() int {
	return 1 << c.WorkerIDSize
}

// Validate checks that every field is at least one bit and the layout
// fits in 64 bits.
func (c *SnowflakeConfig) Validate() error {
	if c.SkipSize < 1 || c.TSSize < 1 || c.WorkerIDSize < 1 || c.SeqSize < 1 {
		return fmt.Errorf("all bit sizes must be >= 1")
	}
	total := int(c.SkipSize) + int(c.TSSize) + int(c.WorkerIDSize) + int(c.SeqSize)
	if total > 64 {
		return fmt.Errorf("bit layout exceeds 64 bits, got %d", total)
	}
	if c.BaseTS <= 0 {
		return fmt.Errorf("base_ts must be positive, got %d", c.BaseTS)
	}
	// Worker-id pools above 16 bits make lease scans unreasonably large.
	if c.WorkerIDSize > 16 {
		return fmt.Errorf("worker_id_size must be <= 16, got %d", c.WorkerIDSize)
	}
	return nil
}

// FormattedConfig configures a templated string key as an ordered list of
// parts. Exactly one part must be an auto_increment counter.
type FormattedConfig struct {
	Parts []Part `json:"parts"`
}

// Validate checks the part list and each part.
func (c *FormattedConfig) Validate() error {
	if len(c.Parts) == 0 {
		return fmt.Errorf("parts must not be empty")
	}
	counters := 0
	for i := range c.Parts {
		if err := c.Parts[i].Validate(); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		if c.Parts[i].Type == PartAutoIncrement {
			counters++
		}
	}
	if counters != 1 {
		return fmt.Errorf("exactly one auto_increment part required, got %d", counters)
	}
	return nil
}

// CounterPart returns the auto_increment part. Validate must have passed.
func (c *FormattedConfig) CounterPart() *Part {
	for i := range c.Parts {
		if c.Parts[i].Type == PartAutoIncrement {
			return &c.Parts[i]
		}
	}
	return nil
}
