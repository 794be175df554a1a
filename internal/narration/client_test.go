package narration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/config"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/timeline"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().TTS
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL
	cfg.MaxRetries = 3

	c := NewClient(cfg)
	c.probeDuration = func(string) (float64, error) { return 4.2, nil }
	return c, srv
}

func TestSynthesizeSuccess(t *testing.T) {
	var gotBody synthesisRequest
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Write([]byte("ID3fake-mp3-bytes"))
	}))

	beat := timeline.Beat{ID: "B01", Narration: "Welcome to the platform."}
	art := c.Synthesize(context.Background(), beat, t.TempDir())

	if art.Status != StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", art.Status, art.Error)
	}
	if art.DurationSeconds != 4.2 {
		t.Errorf("expected probed duration 4.2, got %.2f", art.DurationSeconds)
	}
	if gotBody.Text != beat.Narration {
		t.Errorf("sent text %q", gotBody.Text)
	}
	if gotBody.VoiceSettings.Stability != 0.5 || gotBody.VoiceSettings.SimilarityBoost != 0.75 {
		t.Errorf("voice settings not forwarded: %+v", gotBody.VoiceSettings)
	}
}

func TestSynthesizeRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("audio"))
	}))

	art := c.Synthesize(context.Background(), timeline.Beat{ID: "B05", Narration: "text"}, t.TempDir())
	if art.Status != StatusSuccess {
		t.Fatalf("expected success after retry, got %s (%s)", art.Status, art.Error)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestSynthesizeClientErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad voice id", http.StatusBadRequest)
	}))

	art := c.Synthesize(context.Background(), timeline.Beat{ID: "B02", Narration: "text"}, t.TempDir())
	if art.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", art.Status)
	}
	if calls.Load() != 1 {
		t.Errorf("400 should not retry, got %d calls", calls.Load())
	}
}

func TestSynthesizeWithoutNarrationText(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider should not be called for empty narration")
	}))

	art := c.Synthesize(context.Background(), timeline.Beat{ID: "B03"}, t.TempDir())
	if art.Status != StatusSkipped {
		t.Errorf("expected skipped, got %s", art.Status)
	}
}

func TestSynthesizeAllIsolatesFailures(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req synthesisRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Text == "fail me" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("audio"))
	}))
	c.cfg.MaxRetries = 1

	beats := []timeline.Beat{
		{ID: "B04", Narration: "fine"},
		{ID: "B05", Narration: "fail me"},
		{ID: "B06", Narration: "also fine"},
	}

	arts, err := c.SynthesizeAll(context.Background(), beats, t.TempDir())
	if err != nil {
		t.Fatalf("SynthesizeAll failed: %v", err)
	}
	if len(arts) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(arts))
	}

	// Order follows the timeline, not completion.
	if arts[0].BeatID != "B04" || arts[1].BeatID != "B05" || arts[2].BeatID != "B06" {
		t.Errorf("artifact order wrong: %v %v %v", arts[0].BeatID, arts[1].BeatID, arts[2].BeatID)
	}
	if arts[1].Status != StatusFailed {
		t.Errorf("B05 should have failed, got %s", arts[1].Status)
	}
	if arts[0].Status != StatusSuccess || arts[2].Status != StatusSuccess {
		t.Errorf("other beats affected: %s / %s", arts[0].Status, arts[2].Status)
	}
}
