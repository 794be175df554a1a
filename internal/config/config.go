package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TimelinePath string
	OutputVideo  string
	WorkDir      string // Per-run artifact directory (segments, audio, overlays)

	BaseURL string // Root URL of the dashboard being recorded

	Width  int
	Height int
	FPS    int

	VideoEncoder string
	Quality      int

	FadeDuration float64 // Crossfade at segment boundaries, seconds

	// Timeout tiers. These are empirically tuned defaults, not derived
	// constants; every tier is flag-tunable.
	StepTimeout   time.Duration // Content-render tier: single navigation/click
	VideoTimeout  time.Duration // Video-producing operation, incl. finalization
	BeatTimeout   time.Duration // Hard ceiling for one whole beat
	GlobalTimeout time.Duration // Circuit breaker for the entire run

	Headless bool

	TTS TTSConfig

	QualityThreshold float64 // Critic pass bar, 0-100
	MaxAttempts      int     // Bounded regeneration attempts per failing step

	ShowStats    bool
	BuildVersion string
}

// TTSConfig carries the narration provider parameters. The request is a
// pure function of text + these values, so re-synthesis is idempotent.
type TTSConfig struct {
	APIKey          string
	VoiceID         string
	ModelID         string
	Stability       float64 // [0,1]
	SimilarityBoost float64 // [0,1]
	BaseURL         string
	MaxRetries      int
}

// Default returns the tuned defaults for a 1080p30 recording run.
func Default() *Config {
	return &Config{
		Width:            1920,
		Height:           1080,
		FPS:              30,
		VideoEncoder:     "libx264",
		Quality:          23,
		FadeDuration:     0.5,
		StepTimeout:      15 * time.Second,
		VideoTimeout:     60 * time.Second,
		BeatTimeout:      120 * time.Second,
		GlobalTimeout:    12 * time.Minute,
		Headless:         true,
		QualityThreshold: 85,
		MaxAttempts:      5,
		TTS: TTSConfig{
			VoiceID:         "21m00Tcm4TlvDq8ikWAM",
			ModelID:         "eleven_monolingual_v1",
			Stability:       0.5,
			SimilarityBoost: 0.75,
			BaseURL:         "https://api.elevenlabs.io",
			MaxRetries:      3,
		},
	}
}

// LoadEnv pulls secrets from the environment, reading a local .env first
// if present. A missing API key is not an error here: the pipeline runs
// without narration and the run summary records the gap.
func (c *Config) LoadEnv() {
	_ = godotenv.Load()
	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		c.TTS.APIKey = key
	}
	if voice := os.Getenv("ELEVENLABS_VOICE_ID"); voice != "" {
		c.TTS.VoiceID = voice
	}
}

// Validate rejects configurations that would fail mid-run.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", c.FPS)
	}
	if c.StepTimeout <= 0 || c.VideoTimeout <= 0 || c.BeatTimeout <= 0 || c.GlobalTimeout <= 0 {
		return fmt.Errorf("all timeout tiers must be positive")
	}
	if c.StepTimeout > c.BeatTimeout {
		return fmt.Errorf("step timeout %v exceeds beat ceiling %v", c.StepTimeout, c.BeatTimeout)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 100 {
		return fmt.Errorf("quality threshold %.1f out of range [0,100]", c.QualityThreshold)
	}
	return nil
}
