package ffmpeg

import (
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Capabilities describes the media toolchain found on this host.
type Capabilities struct {
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`
	Version     string `json:"version"`
}

// CheckAvailability locates ffmpeg and ffprobe. It never installs anything.
// ffprobe is resolved from PATH only, matching FFProbe.
func CheckAvailability(ffmpegPath string) (*Capabilities, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffmpegBin, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg not found in PATH")
	}

	ffprobeBin, err := exec.LookPath(ProbeCommand)
	if err != nil {
		return nil, errors.Wrapf(err, "%s not found in PATH", ProbeCommand)
	}

	out, err := exec.Command(ffmpegBin, "-version").Output()
	if err != nil {
		return nil, errors.Wrapf(err, "%s -version", ffmpegBin)
	}

	return &Capabilities{
		FFmpegPath:  ffmpegBin,
		FFprobePath: ffprobeBin,
		Version:     firstLine(string(out)),
	}, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
