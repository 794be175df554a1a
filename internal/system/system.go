package system

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Could not read open-file limit: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Could not raise open-file limit: %v", err)
	}
}

// FindLatestTimeline returns the most recently modified .yaml file in dir.
func FindLatestTimeline(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := strings.ToLower(f.Name())
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no timeline files found in %s", dir)
	}

	return latestFile, nil
}

// GetMediaDuration probes an audio or video file for its duration in
// seconds via ffprobe.
func GetMediaDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %v", filepath.Base(path), err)
	}

	var duration float64
	_, err = fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration)
	if err != nil {
		return 0, err
	}

	return duration, nil
}

// GetBestH264Encoder picks the fastest available H.264 encoder.
// Priority: VideoToolbox (macOS), NVENC (NVIDIA), then software libx264.
func GetBestH264Encoder() (string, string) {
	encoders := []struct {
		name string
		args string
	}{
		{"h264_videotoolbox", ""},
		{"h264_nvenc", ""},
	}

	for _, enc := range encoders {
		cmd := exec.Command("ffmpeg", "-encoders")
		out, err := cmd.CombinedOutput()
		if err == nil && strings.Contains(string(out), enc.name) {
			return enc.name, enc.args
		}
	}

	return "libx264", ""
}

// CheckFilterSupport reports whether the local ffmpeg build carries the
// given filter (xfade and drawtext are not in every build).
func CheckFilterSupport(filter string) bool {
	cmd := exec.Command("ffmpeg", "-filters")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), " "+filter+" ")
}

// CheckBinary verifies that an external tool is reachable on PATH.
func CheckBinary(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", name, err)
	}
	return nil
}
