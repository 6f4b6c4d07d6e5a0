package config

import (
	"time"

	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/shared"
)

const (
	MinSpeakers = 2
	MaxSpeakers = 6

	MinAlternatives = 1
	MaxAlternatives = 5

	MinSegmentTimeoutMs = 500
	MaxSegmentTimeoutMs = 2000

	MinSegmentLengthChars = 100
	MaxSegmentLengthChars = 300

	// DefaultSilenceWindowMs is the window the silence trigger historically
	// hardcoded, independent of SegmentTimeoutMs. Kept as the default but
	// overridable via SilenceWindowMs.
	DefaultSilenceWindowMs = 2000
)

// Config holds the immutable per-session transcription settings. It is
// constructed once from persisted settings and never mutated mid-session.
type Config struct {
	LanguageCode string

	EnableSpeakerDiarization bool
	MinSpeakerCount          int
	MaxSpeakerCount          int

	EnableAutomaticPunctuation bool
	MaxAlternatives            int

	SegmentTimeoutMs      int
	SegmentMaxLengthChars int
	SilenceWindowMs       int

	APIKey      string
	APIEndpoint string
}

func Default() Config {
	return Config{
		LanguageCode:               "en-US",
		MinSpeakerCount:            MinSpeakers,
		MaxSpeakerCount:            MaxSpeakers,
		EnableAutomaticPunctuation: true,
		MaxAlternatives:            1,
		SegmentTimeoutMs:           1000,
		SegmentMaxLengthChars:      200,
		SilenceWindowMs:            DefaultSilenceWindowMs,
	}
}

// Normalized returns a copy with every bounded field clamped into its range
// and zero values replaced with defaults.
func (c Config) Normalized() Config {
	if c.LanguageCode == "" {
		c.LanguageCode = "en-US"
	}
	c.MinSpeakerCount = clamp(c.MinSpeakerCount, MinSpeakers, MaxSpeakers)
	c.MaxSpeakerCount = clamp(c.MaxSpeakerCount, c.MinSpeakerCount, MaxSpeakers)
	c.MaxAlternatives = clamp(c.MaxAlternatives, MinAlternatives, MaxAlternatives)
	c.SegmentTimeoutMs = clamp(c.SegmentTimeoutMs, MinSegmentTimeoutMs, MaxSegmentTimeoutMs)
	c.SegmentMaxLengthChars = clamp(c.SegmentMaxLengthChars, MinSegmentLengthChars, MaxSegmentLengthChars)
	if c.SilenceWindowMs <= 0 {
		c.SilenceWindowMs = DefaultSilenceWindowMs
	}
	return c
}

// Validate enforces the invariants that cannot be fixed by clamping.
func (c Config) Validate() error {
	if c.EnableSpeakerDiarization && c.APIKey == "" {
		return shared.NewConfigurationError("speaker diarization requires an API key")
	}
	if c.APIKey != "" && c.APIEndpoint == "" {
		return shared.NewConfigurationError("API key set without an endpoint")
	}
	return nil
}

func (c Config) SegmentTimeout() time.Duration {
	return time.Duration(c.SegmentTimeoutMs) * time.Millisecond
}

func (c Config) SilenceWindow() time.Duration {
	return time.Duration(c.SilenceWindowMs) * time.Millisecond
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
