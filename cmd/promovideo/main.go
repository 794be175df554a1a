package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/config"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/engine"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/session"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/system"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/timeline"
)

var version = "dev"

func main() {
	system.InitResourceLimits()

	for _, d := range []string{"input/timelines", "output", "work"} {
		os.MkdirAll(d, 0755)
	}

	timelinePtr := flag.String("timeline", "", "Path to the beat timeline YAML (default: newest file in input/timelines/)")
	outputPtr := flag.String("output", "", "Path to the final video (default: generated under output/)")
	workPtr := flag.String("work", "", "Per-run artifact directory (default: generated under work/)")
	baseURLPtr := flag.String("base-url", "http://localhost:3000", "Root URL of the dashboard being recorded")
	widthPtr := flag.Int("width", 1920, "Recording width")
	heightPtr := flag.Int("height", 1080, "Recording height")
	fpsPtr := flag.Int("fps", 30, "Output frame rate")
	presetPtr := flag.String("preset", "", "Format preset: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")
	fadePtr := flag.Float64("fade", 0.5, "Crossfade at beat boundaries, seconds")
	qualityPtr := flag.Int("quality", 0, "Video quality (0 = auto; x264: CRF 1-51, VideoToolbox: bitrate = Q*100kbit/s)")
	stepTimeoutPtr := flag.Duration("step-timeout", 15*time.Second, "Per-action timeout (navigation, click)")
	videoTimeoutPtr := flag.Duration("video-timeout", 60*time.Second, "Video finalization timeout")
	beatTimeoutPtr := flag.Duration("beat-timeout", 120*time.Second, "Hard ceiling for one beat")
	globalTimeoutPtr := flag.Duration("global-timeout", 12*time.Minute, "Circuit breaker for the whole run")
	headlessPtr := flag.Bool("headless", true, "Run the browser headless")
	thresholdPtr := flag.Float64("quality-threshold", 85, "Quality gate pass bar, 0-100")
	attemptsPtr := flag.Int("max-attempts", 5, "Regeneration attempts before giving up")
	statsPtr := flag.Bool("stats", false, "Print and log a performance report")
	initPtr := flag.Bool("init", false, "Write a starter timeline to input/timelines/ and exit")
	installPtr := flag.Bool("install-browsers", false, "Download the browsers the recorder needs and exit")

	flag.Parse()

	if *installPtr {
		if err := session.InstallBrowsers(); err != nil {
			log.Fatalf("[-] browser install failed: %v", err)
		}
		fmt.Println("[+++] Browsers installed")
		return
	}

	if *initPtr {
		path := filepath.Join("input/timelines", "starter.yaml")
		if err := timeline.WriteTimeline(starterTimeline(), path); err != nil {
			log.Fatalf("[-] could not write starter timeline: %v", err)
		}
		fmt.Printf("[+++] Starter timeline written: %s\n", path)
		return
	}

	if err := system.CheckBinary("ffmpeg"); err != nil {
		log.Fatalf("[-] %v (the assembler needs ffmpeg on PATH)", err)
	}

	width, height := *widthPtr, *heightPtr
	switch *presetPtr {
	case "16:9":
		width, height = 1920, 1080
	case "9:16":
		width, height = 1080, 1920
	case "4:5":
		width, height = 1080, 1350
	}

	timelinePath := *timelinePtr
	if timelinePath == "" {
		latest, err := system.FindLatestTimeline("input/timelines")
		if err != nil {
			log.Fatalf("[-] %v. Put a timeline in input/timelines/ or run with -init", err)
		}
		timelinePath = latest
		fmt.Printf("[*] Timeline selected: %s\n", timelinePath)
	}

	tl, err := timeline.Load(timelinePath)
	if err != nil {
		log.Fatalf("[-] timeline error: %v", err)
	}
	if tl.Viewport.Width > 0 && tl.Viewport.Height > 0 && *presetPtr == "" {
		width, height = tl.Viewport.Width, tl.Viewport.Height
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")

	finalOutput := *outputPtr
	if finalOutput == "" {
		base := strings.TrimSuffix(filepath.Base(timelinePath), filepath.Ext(timelinePath))
		finalOutput = filepath.Join("output", fmt.Sprintf("%s_%s.mp4", strings.ReplaceAll(base, " ", "_"), timestamp))
	}

	workDir := *workPtr
	if workDir == "" {
		workDir = filepath.Join("work", timestamp)
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		log.Fatalf("[-] could not create work dir: %v", err)
	}

	encoderName, _ := system.GetBestH264Encoder()
	if encoderName != "libx264" {
		fmt.Printf("[*] Hardware acceleration detected: %s\n", encoderName)
	}

	quality := *qualityPtr
	if quality == 0 {
		switch encoderName {
		case "h264_videotoolbox":
			quality = 75
		case "h264_nvenc":
			quality = 28
		default:
			quality = 23
		}
	}

	cfg := config.Default()
	cfg.TimelinePath = timelinePath
	cfg.OutputVideo = finalOutput
	cfg.WorkDir = workDir
	cfg.BaseURL = *baseURLPtr
	cfg.Width = width
	cfg.Height = height
	cfg.FPS = *fpsPtr
	cfg.VideoEncoder = encoderName
	cfg.Quality = quality
	cfg.FadeDuration = *fadePtr
	cfg.StepTimeout = *stepTimeoutPtr
	cfg.VideoTimeout = *videoTimeoutPtr
	cfg.BeatTimeout = *beatTimeoutPtr
	cfg.GlobalTimeout = *globalTimeoutPtr
	cfg.Headless = *headlessPtr
	cfg.QualityThreshold = *thresholdPtr
	cfg.MaxAttempts = *attemptsPtr
	cfg.ShowStats = *statsPtr
	cfg.BuildVersion = version
	cfg.LoadEnv()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] config error: %v", err)
	}
	if cfg.TTS.APIKey == "" {
		fmt.Println("[!] ELEVENLABS_API_KEY not set: the video will have no narration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline := engine.NewPipeline(cfg, tl)
	summary, err := pipeline.Run(ctx)
	if err != nil {
		log.Fatalf("[-] pipeline error: %v", err)
	}

	fmt.Printf("[+++] Done in %d attempt(s), score %.1f: %s\n",
		summary.Attempts, summary.Quality.OverallScore, cfg.OutputVideo)
}

// starterTimeline is the -init template: a minimal three-beat tour that
// exercises navigation, interaction and overlays.
func starterTimeline() *timeline.Timeline {
	return &timeline.Timeline{
		Version:  "1",
		Viewport: timeline.Viewport{Width: 1920, Height: 1080},
		Beats: []timeline.Beat{
			{
				ID:        "intro",
				Duration:  8,
				Narration: "This is the live operations dashboard.",
				RawActions: []string{
					"navigate(/)",
					"overlay(title:Live Operations Dashboard,in,500)",
					"wait(3000)",
				},
			},
			{
				ID:        "map",
				Duration:  12,
				Narration: "Active incidents are plotted in real time.",
				RawActions: []string{
					"click(#map-tab)",
					"overlay(callout:Active incidents update in real time,in,1000)",
					"scroll(down)",
					"wait(2000)",
				},
			},
			{
				ID:       "outro",
				Duration: 6,
				RawActions: []string{
					"overlay(badge:qr:https://example.com/demo,in,0)",
					"wait(4000)",
				},
			},
		},
	}
}
