package domain

import (
	"fmt"
	"time"
)

// PartType discriminates the formatted-ID template parts.
type PartType string

const (
	// PartFixedChars emits a literal string.
	PartFixedChars PartType = "fixed_chars"
	// PartFixedPollingChar emits chars[n mod len(chars)] for counter n.
	PartFixedPollingChar PartType = "fixed_polling_char"
	// PartFixedRandomChars emits Length characters drawn from Chars.
	PartFixedRandomChars PartType = "fixed_random_chars"
	// PartDateFormat emits wall-clock time under Pattern in TZ.
	PartDateFormat PartType = "date_format"
	// PartTimestamp emits milliseconds since BaseTS.
	PartTimestamp PartType = "timestamp"
	// PartUnixSeconds emits Unix seconds minus Base.
	PartUnixSeconds PartType = "unix_seconds"
	// PartAutoIncrement emits the drawn counter value.
	PartAutoIncrement PartType = "auto_increment"
)

// PaddingMode selects which end of the counter rendering is padded.
type PaddingMode string

const (
	// PaddingPrefix pads at the front (e.g. 0001).
	PaddingPrefix PaddingMode = "prefix"
	// PaddingSuffix pads at the back (e.g. 1000).
	PaddingSuffix PaddingMode = "suffix"
)

// ResetScope is the temporal granularity at which a formatted counter
// restarts at its base.
type ResetScope string

const (
	ResetNone  ResetScope = "none"
	ResetYear  ResetScope = "year"
	ResetMonth ResetScope = "month"
	ResetDate  ResetScope = "date"
)

// Witness returns the persisted reset marker for t, e.g. "2025-01-26"
// for the date scope. The empty string means no scoping.
func (s ResetScope) Witness(t time.Time) string {
	switch s {
	case ResetYear:
		return t.Format("2006")
	case ResetMonth:
		return t.Format("2006-01")
	case ResetDate:
		return t.Format("2006-01-02")
	default:
		return ""
	}
}

// Part is one element of a formatted-ID template. The Type tag selects
// which fields are meaningful; unrelated fields stay at their zero value.
type Part struct {
	Type PartType `json:"type"`

	// Value is the literal for fixed_chars.
	Value string `json:"value,omitempty"`

	// Chars is the alphabet for fixed_polling_char and fixed_random_chars.
	Chars string `json:"chars,omitempty"`

	// Length is the emitted width for fixed_random_chars and the target
	// width for auto_increment.
	Length int `json:"length,omitempty"`

	// Pattern and TZ configure date_format. TZ defaults to UTC.
	Pattern string `json:"pattern,omitempty"`
	TZ      string `json:"tz,omitempty"`

	// BaseTS is the epoch (ms) subtracted by timestamp parts.
	BaseTS int64 `json:"base_ts,omitempty"`

	// Base is the offset subtracted by unix_seconds parts.
	Base int64 `json:"base,omitempty"`

	// Auto-increment rendering controls.
	LengthFixed bool        `json:"length_fixed,omitempty"`
	PaddingMode PaddingMode `json:"padding_mode,omitempty"`
	PaddingChar string      `json:"padding_char,omitempty"`
	NumberBase  int         `json:"number_base,omitempty"`
	ResetScope  ResetScope  `json:"reset_scope,omitempty"`
}

// Validate checks the fields required by the part's type.
func (p *Part) Validate() error {
	switch p.Type {
	case PartFixedChars:
		if p.Value == "" {
			return fmt.Errorf("fixed_chars requires a value")
		}
	case PartFixedPollingChar:
		if len(p.Chars) == 0 {
			return fmt.Errorf("fixed_polling_char requires chars")
		}
	case PartFixedRandomChars:
		if len(p.Chars) == 0 {
			return fmt.Errorf("fixed_random_chars requires chars")
		}
		if p.Length < 1 {
			return fmt.Errorf("fixed_random_chars requires length >= 1")
		}
	case PartDateFormat:
		if p.Pattern == "" {
			return fmt.Errorf("date_format requires a pattern")
		}
		if p.TZ != "" {
			if _, err := time.LoadLocation(p.TZ); err != nil {
				return fmt.Errorf("unknown timezone %q", p.TZ)
			}
		}
	case PartTimestamp:
		if p.BaseTS < 0 {
			return fmt.Errorf("timestamp base_ts must not be negative")
		}
	case PartUnixSeconds:
		if p.Base < 0 {
			return fmt.Errorf("unix_seconds base must not be negative")
		}
	case PartAutoIncrement:
		if p.Length < 1 {
			return fmt.Errorf("auto_increment requires length >= 1")
		}
		if p.NumberBase != 0 && (p.NumberBase < 2 || p.NumberBase > 36) {
			return fmt.Errorf("number_base must be in [2,36], got %d", p.NumberBase)
		}
		switch p.PaddingMode {
		case "", PaddingPrefix, PaddingSuffix:
		default:
			return fmt.Errorf("unknown padding_mode %q", p.PaddingMode)
		}
		if len(p.PaddingChar) > 1 {
			return fmt.Errorf("padding_char must be a single character")
		}
		switch p.ResetScope {
		case "", ResetNone, ResetYear, ResetMonth, ResetDate:
		default:
			return fmt.Errorf("unknown reset_scope %q", p.ResetScope)
		}
	default:
		return fmt.Errorf("unknown part type %q", p.Type)
	}
	return nil
}

// EffectiveNumberBase returns the counter radix, 10 when unset.
func (p *Part) EffectiveNumberBase() int {
	if p.NumberBase == 0 {
		return 10
	}
	return p.NumberBase
}

// EffectivePaddingChar returns the padding character, '0' when unset.
func (p *Part) EffectivePaddingChar() byte {
	if p.PaddingChar == "" {
		return '0'
	}
	return p.PaddingChar[0]
}

// EffectiveResetScope returns the reset scope, none when unset.
func (p *Part) EffectiveResetScope() ResetScope {
	if p.ResetScope == "" {
		return ResetNone
	}
	return p.ResetScope
}

// Location resolves the part's timezone, UTC when unset. Validate
// guarantees the name loads.
func (p *Part) Location() *time.Location {
	if p.TZ == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
