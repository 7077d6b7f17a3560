package ffmpeg

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeTool(t *testing.T, dir, name, output string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\necho '" + output + "'\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheckAvailabilityIgnoresProbeNextToFFmpeg(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts stand in for the tools")
	}
	toolDir := t.TempDir()
	ffmpegBin := writeTool(t, toolDir, "ffmpeg", "ffmpeg version 7.0-test")
	writeTool(t, toolDir, "ffprobe", "ffprobe version 7.0-test")

	// ffprobe sits next to the configured ffmpeg but not in PATH, so probes would fail.
	t.Setenv("PATH", t.TempDir())
	if _, err := CheckAvailability(ffmpegBin); err == nil || !strings.Contains(err.Error(), "ffprobe") {
		t.Errorf("CheckAvailability() error = %v, want ffprobe not found", err)
	}

	pathDir := t.TempDir()
	probeBin := writeTool(t, pathDir, "ffprobe", "ffprobe version 7.0-test")
	t.Setenv("PATH", pathDir)
	caps, err := CheckAvailability(ffmpegBin)
	if err != nil {
		t.Fatalf("CheckAvailability() failed: %v", err)
	}
	if caps.FFprobePath != probeBin {
		t.Errorf("FFprobePath = %q, want the PATH entry %q", caps.FFprobePath, probeBin)
	}
	if caps.FFmpegPath != ffmpegBin || caps.Version != "ffmpeg version 7.0-test" {
		t.Errorf("Capabilities = %+v", caps)
	}
}

func TestCheckAvailabilityMissingFFmpeg(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if _, err := CheckAvailability(""); err == nil || !strings.Contains(err.Error(), "ffmpeg not found") {
		t.Errorf("CheckAvailability() error = %v, want ffmpeg not found", err)
	}
}
