package ffmpeg

import (
	"fmt"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// OverlayAt composites overlay on top of main with its top-left corner at (x, y).
// With shortest set the result ends when either input ends.
func OverlayAt(main, overlay *ffmpeg.Stream, x, y string, shortest bool) *ffmpeg.Stream {
	kwargs := ffmpeg.KwArgs{
		"x": x,
		"y": y,
	}
	if shortest {
		kwargs["shortest"] = 1
	}
	return ffmpeg.Filter([]*ffmpeg.Stream{main, overlay}, "overlay", ffmpeg.Args{}, kwargs)
}

// ColorSource is a lavfi solid-color input of the given size. A zero duration
// makes the source infinite.
func ColorSource(color string, width, height, fps int, seconds float64) *ffmpeg.Stream {
	src := fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", color, width, height, fps)
	if seconds > 0 {
		src += ":d=" + FormatFloat(seconds)
	}
	return ffmpeg.Input(src, ffmpeg.KwArgs{"f": "lavfi"})
}

// SilentAudio is a lavfi silent track matching the mp4 codec profile.
func SilentAudio(seconds float64) *ffmpeg.Stream {
	settings := GetCodecSettings("mp4")
	layout := "stereo"
	if settings.AudioChannels == 1 {
		layout = "mono"
	}
	return ffmpeg.Input(
		fmt.Sprintf("anullsrc=channel_layout=%s:sample_rate=%d", layout, settings.AudioSampleRate),
		ffmpeg.KwArgs{"f": "lavfi", "t": FormatFloat(seconds)},
	)
}

// TextStyle configures DrawTextFile.
type TextStyle struct {
	FontFile string
	Color    string
	Size     int

	BorderColor string
	BorderWidth int
}

// DrawTextFile draws the contents of textFile horizontally centered at y.
// Text is read from a file so user input never becomes part of the filter graph.
func DrawTextFile(stream *ffmpeg.Stream, textFile string, style TextStyle, y string) *ffmpeg.Stream {
	kwargs := ffmpeg.KwArgs{
		"textfile":    textFile,
		"expansion":   "none",
		"fontsize":    style.Size,
		"fontcolor":   style.Color,
		"shadowcolor": "black@0.6",
		"shadowx":     4,
		"shadowy":     4,
		"x":           "(w-text_w)/2",
		"y":           y,
	}
	if style.FontFile != "" {
		kwargs["fontfile"] = style.FontFile
	}
	if style.BorderWidth > 0 && style.BorderColor != "" {
		kwargs["bordercolor"] = style.BorderColor
		kwargs["borderw"] = style.BorderWidth
	}
	return stream.Filter("drawtext", ffmpeg.Args{}, kwargs)
}

// ApplyFade fades the stream in from black at the start and out at the end.
func ApplyFade(stream *ffmpeg.Stream, fadeIn, fadeOut, duration float64) *ffmpeg.Stream {
	if fadeIn > 0 {
		stream = stream.Filter("fade", ffmpeg.Args{}, ffmpeg.KwArgs{
			"t":  "in",
			"st": "0",
			"d":  FormatFloat(fadeIn),
		})
	}
	if fadeOut > 0 && duration > fadeOut {
		stream = stream.Filter("fade", ffmpeg.Args{}, ffmpeg.KwArgs{
			"t":  "out",
			"st": FormatFloat(duration - fadeOut),
			"d":  FormatFloat(fadeOut),
		})
	}
	return stream
}

// quoteConcatPath quotes a path for a concat demuxer list.
func quoteConcatPath(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
