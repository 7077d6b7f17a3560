package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-aliabbas/birthday-wisher/internal/config"
	ffmpegWrap "github.com/m-aliabbas/birthday-wisher/internal/ffmpeg"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// SegmentKind names a generated bumper clip.
type SegmentKind string

const (
	SegmentIntro SegmentKind = "intro"
	SegmentOutro SegmentKind = "outro"
)

const maxLogoSize = 250

// Segment describes one intro or outro clip. It must share the canvas and
// encoding of the main composite so the final concat can stream-copy.
type Segment struct {
	Kind         SegmentKind
	Settings     config.SegmentSettings
	CustomerName string
	Canvas       Size
	Encoding     Encoding
}

// SegmentLine is one line of text and where it is drawn.
type SegmentLine struct {
	Text     string
	FontSize int
	Y        int
}

// Lines substitutes the customer name and lays the lines out vertically
// centered, slightly above the middle of the canvas.
func (s Segment) Lines() []SegmentLine {
	base := min(s.Canvas.Width, s.Canvas.Height)

	var lines []SegmentLine
	for i, raw := range s.Settings.Lines {
		hasName := strings.Contains(raw, config.CustomerNameToken)
		text := strings.TrimSpace(strings.ReplaceAll(raw, config.CustomerNameToken, s.CustomerName))
		if text == "" {
			continue
		}
		size := base * 6 / 100
		switch {
		case hasName:
			size = base * 12 / 100
		case i == 0:
			size = base * 10 / 100
		}
		lines = append(lines, SegmentLine{Text: text, FontSize: max(size, 8)})
	}

	total := 0
	for _, l := range lines {
		total += l.FontSize * 135 / 100
	}
	y := (s.Canvas.Height-total)/2 - base*8/100
	if s.Kind == SegmentOutro && s.Settings.LogoFile == "" {
		y = (s.Canvas.Height - total) / 2
	}
	y = max(y, 0)
	for i := range lines {
		lines[i].Y = y
		y += lines[i].FontSize * 135 / 100
	}
	return lines
}

// Seconds is the clip length.
func (s Segment) Seconds() float64 {
	return s.Settings.Seconds
}

// BuildSegment writes the segment's text files into workDir and returns the
// ffmpeg invocation producing outputPath.
func BuildSegment(seg Segment, workDir, outputPath string) (*ffmpeg.Stream, error) {
	seconds := seg.Seconds()
	if seconds <= 0 {
		return nil, errors.Errorf("%s duration must be positive, got %v", seg.Kind, seconds)
	}

	stream := ffmpegWrap.ColorSource(seg.Settings.Background, seg.Canvas.Width, seg.Canvas.Height, seg.Encoding.FPS, seconds)

	color := seg.Settings.FontColor
	if color == "" {
		color = config.TextColor
	}
	for i, line := range seg.Lines() {
		textFile := filepath.Join(workDir, fmt.Sprintf("%s_line%d.txt", seg.Kind, i))
		if err := os.WriteFile(textFile, []byte(line.Text), 0644); err != nil {
			return nil, errors.Wrapf(err, "write %s", textFile)
		}
		stream = ffmpegWrap.DrawTextFile(stream, textFile, ffmpegWrap.TextStyle{
			FontFile: seg.Settings.FontFile,
			Color:    color,
			Size:     line.FontSize,

			BorderColor: seg.Settings.FontBorderColor,
			BorderWidth: seg.Settings.FontBorderWidth,
		}, fmt.Sprintf("%d", line.Y))
	}

	if logo := seg.Settings.LogoFile; logo != "" {
		if _, err := os.Stat(logo); err == nil {
			stream = overlayLogo(stream, seg, logo)
		}
	}

	stream = ffmpegWrap.ApplyFade(stream, seg.Settings.FadeIn, seg.Settings.FadeOut, seconds)
	stream = stream.Filter("format", ffmpeg.Args{seg.Encoding.PixelFormat})

	streams := []*ffmpeg.Stream{stream}
	kwargs := encodingArgs(seg.Encoding)
	kwargs["t"] = ffmpegWrap.FormatFloat(seconds)
	if seg.Encoding.KeepAudio {
		streams = append(streams, ffmpegWrap.SilentAudio(seconds).Audio())
		kwargs["shortest"] = ""
	}

	return ffmpeg.Output(streams, outputPath, kwargs), nil
}

// overlayLogo places the logo bottom-center on intros and centered on outros.
func overlayLogo(stream *ffmpeg.Stream, seg Segment, logo string) *ffmpeg.Stream {
	scaled := ffmpeg.Input(logo, ffmpeg.KwArgs{"loop": 1}).Video().
		Filter("scale", ffmpeg.Args{}, ffmpeg.KwArgs{
			"w":                          maxLogoSize,
			"h":                          maxLogoSize,
			"force_original_aspect_ratio": "decrease",
		})

	y := "(main_h-overlay_h)/2"
	if seg.Kind == SegmentIntro {
		margin := min(seg.Canvas.Width, seg.Canvas.Height) * 15 / 100
		y = fmt.Sprintf("main_h-overlay_h-%d", margin)
	}
	return ffmpegWrap.OverlayAt(stream, scaled, "(main_w-overlay_w)/2", y, true)
}
