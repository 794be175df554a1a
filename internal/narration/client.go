package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/config"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/system"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/timeline"
)

// Client talks to the ElevenLabs text-to-speech HTTP API. A synthesis
// request is a pure function of (text, voice, stability, similarity), so
// retrying or re-running a beat yields equivalent audio.
type Client struct {
	cfg  config.TTSConfig
	http *http.Client

	// probeDuration measures a written audio file; swapped in tests.
	probeDuration func(path string) (float64, error)
}

func NewClient(cfg config.TTSConfig) *Client {
	return &Client{
		cfg:           cfg,
		http:          &http.Client{Timeout: 30 * time.Second},
		probeDuration: system.GetMediaDuration,
	}
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize generates narration audio for one beat and writes it to
// outDir. Provider errors are captured in the artifact, never propagated:
// one beat's TTS failure must not block the others.
func (c *Client) Synthesize(ctx context.Context, beat timeline.Beat, outDir string) Artifact {
	if beat.Narration == "" {
		return Artifact{BeatID: beat.ID, Status: StatusSkipped}
	}
	if c.cfg.APIKey == "" {
		return Artifact{BeatID: beat.ID, Status: StatusFailed, Error: "no TTS API key configured"}
	}

	outFile := filepath.Join(outDir, fmt.Sprintf("%s.mp3", beat.ID))

	audio, err := c.request(ctx, beat.Narration)
	if err != nil {
		log.Printf("[audio] beat %s: TTS failed: %v", beat.ID, err)
		return Artifact{BeatID: beat.ID, Status: StatusFailed, Error: err.Error()}
	}

	if err := os.WriteFile(outFile, audio, 0644); err != nil {
		return Artifact{BeatID: beat.ID, Status: StatusFailed, Error: err.Error()}
	}

	art := Artifact{BeatID: beat.ID, AudioFilePath: outFile, Status: StatusSuccess}
	if dur, err := c.probeDuration(outFile); err == nil {
		art.DurationSeconds = dur
	} else {
		log.Printf("[audio] beat %s: could not measure duration: %v", beat.ID, err)
	}

	log.Printf("[audio] beat %s: %.2fs -> %s", beat.ID, art.DurationSeconds, outFile)
	return art
}

// request performs the HTTP call with bounded retries. Rate limits and
// server errors back off and retry; client errors fail immediately.
func (c *Client) request(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: c.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.cfg.BaseURL, c.cfg.VoiceID)

	retries := c.cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "audio/mpeg")
		req.Header.Set("xi-api-key", c.cfg.APIKey)

		audio, retryable, err := c.do(req)
		if err == nil {
			return audio, nil
		}
		lastErr = err
		if !retryable || attempt == retries {
			break
		}

		log.Printf("[audio] TTS attempt %d failed, retrying: %v", attempt, err)
		select {
		case <-time.After(time.Duration(attempt) * 2 * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Client) do(req *http.Request) (audio []byte, retryable bool, err error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("tts provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	if len(data) == 0 {
		return nil, false, fmt.Errorf("tts provider returned empty audio")
	}
	return data, false, nil
}

// SynthesizeAll generates narration for every beat concurrently. Calls are
// independent per beat; results come back in timeline order regardless of
// completion order.
func (c *Client) SynthesizeAll(ctx context.Context, beats []timeline.Beat, outDir string) ([]Artifact, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}

	artifacts := make([]Artifact, len(beats))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range beats {
		i := i
		g.Go(func() error {
			artifacts[i] = c.Synthesize(gctx, beats[i], outDir)
			return nil
		})
	}

	// Workers never return errors; the group is for limit + ctx plumbing.
	_ = g.Wait()
	return artifacts, nil
}
