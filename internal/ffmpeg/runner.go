package ffmpeg

import (
	"bytes"
	"time"

	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Runner executes one ffmpeg invocation built from stream.
type Runner interface {
	Run(stage string, stream *ffmpeg.Stream) error
}

// CommandRunner runs ffmpeg as a child process and waits for it to exit.
type CommandRunner struct {
	ffmpegPath string
	logger     zerolog.Logger
}

// NewCommandRunner creates a runner. An empty ffmpegPath uses ffmpeg from PATH.
func NewCommandRunner(ffmpegPath string, logger zerolog.Logger) *CommandRunner {
	return &CommandRunner{
		ffmpegPath: ffmpegPath,
		logger:     logger.With().Str("component", "ffmpeg").Logger(),
	}
}

func (r *CommandRunner) Run(stage string, stream *ffmpeg.Stream) error {
	var stderr bytes.Buffer

	cmd := stream.OverWriteOutput().WithErrorOutput(&stderr)
	if r.ffmpegPath != "" {
		cmd = cmd.SetFfmpegPath(r.ffmpegPath)
	}

	r.logger.Debug().
		Str("stage", stage).
		Strs("args", cmd.GetArgs()).
		Msg("executing ffmpeg")

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return types.NewRenderError(stage, stderr.String(), err)
	}

	r.logger.Debug().
		Str("stage", stage).
		Dur("elapsed", time.Since(start)).
		Msg("ffmpeg completed")
	return nil
}
