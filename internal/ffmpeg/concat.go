package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// WriteConcatList writes a concat demuxer list for clips, in order.
func WriteConcatList(path string, clips []string) error {
	if len(clips) == 0 {
		return errors.New("no clips to concatenate")
	}

	var sb strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return errors.WithStack(err)
		}
		sb.WriteString(fmt.Sprintf("file %s\n", quoteConcatPath(abs)))
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return errors.Wrapf(err, "write concat list %s", path)
	}
	return nil
}

// ConcatStream joins the clips listed in listPath without re-encoding.
func ConcatStream(listPath, outputPath string) *ffmpeg.Stream {
	kwargs := ffmpeg.KwArgs{"c": "copy"}
	for k, v := range GetCodecSettings("mp4").ContainerFlags {
		kwargs[k] = v
	}
	return ffmpeg.Input(listPath, ffmpeg.KwArgs{
		"f":    "concat",
		"safe": 0,
	}).Output(outputPath, kwargs)
}
