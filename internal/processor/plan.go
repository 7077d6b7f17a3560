package processor

import (
	"fmt"
	"os"

	ffmpegWrap "github.com/m-aliabbas/birthday-wisher/internal/ffmpeg"
	"github.com/m-aliabbas/birthday-wisher/internal/template"
	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// FitGeometry describes how the photo is brought to exactly the placeholder size:
// scale to Scaled, then crop (cover) or pad (contain). For cover, (OffX, OffY) is
// the crop origin inside the scaled image; for contain it is the position of the
// scaled image inside the padded box.
type FitGeometry struct {
	Fit    types.FitMode `json:"fit"`
	Source Size          `json:"source"`
	Scaled Size          `json:"scaled"`
	Final  Size          `json:"final"`
	OffX   int           `json:"off_x"`
	OffY   int           `json:"off_y"`
}

// FitImage computes scale and crop/pad geometry for src inside box.
func FitImage(src, box Size, fit types.FitMode) FitGeometry {
	g := FitGeometry{Fit: fit, Source: src, Final: box}

	// srcWider compares aspect ratios without floating point: src.W/src.H >= box.W/box.H
	srcWider := int64(src.Width)*int64(box.Height) >= int64(src.Height)*int64(box.Width)

	switch fit {
	case types.FitContain:
		if srcWider {
			g.Scaled = Size{box.Width, floorDiv(src.Height, box.Width, src.Width)}
		} else {
			g.Scaled = Size{floorDiv(src.Width, box.Height, src.Height), box.Height}
		}
		g.Scaled.Width = max(1, min(g.Scaled.Width, box.Width))
		g.Scaled.Height = max(1, min(g.Scaled.Height, box.Height))
		g.OffX = (box.Width - g.Scaled.Width) / 2
		g.OffY = (box.Height - g.Scaled.Height) / 2
	default:
		if srcWider {
			g.Scaled = Size{ceilDiv(src.Width, box.Height, src.Height), box.Height}
		} else {
			g.Scaled = Size{box.Width, ceilDiv(src.Height, box.Width, src.Width)}
		}
		g.Scaled.Width = max(g.Scaled.Width, box.Width)
		g.Scaled.Height = max(g.Scaled.Height, box.Height)
		g.OffX = (g.Scaled.Width - box.Width) / 2
		g.OffY = (g.Scaled.Height - box.Height) / 2
	}
	return g
}

// floorDiv returns floor(a*b/c).
func floorDiv(a, b, c int) int {
	return int(int64(a) * int64(b) / int64(c))
}

// ceilDiv returns ceil(a*b/c).
func ceilDiv(a, b, c int) int {
	n := int64(a) * int64(b)
	return int((n + int64(c) - 1) / int64(c))
}

// LayerKind identifies one layer of the composition.
type LayerKind string

const (
	LayerBackground LayerKind = "background"
	LayerPhoto      LayerKind = "photo"
	LayerTemplate   LayerKind = "template"
	LayerBorder     LayerKind = "border"
)

// Layer is placed at (X, Y) on the canvas. Keyed is true only for the template.
type Layer struct {
	Kind  LayerKind `json:"kind"`
	Input string    `json:"input,omitempty"`
	X     int       `json:"x"`
	Y     int       `json:"y"`
	Keyed bool      `json:"keyed,omitempty"`
}

// ChromaKey holds colorkey parameters exactly as passed to ffmpeg.
type ChromaKey struct {
	Color      string `json:"color"`
	Similarity string `json:"similarity"`
	Blend      string `json:"blend"`
}

// Encoding is the output encoding of the main composite.
type Encoding struct {
	FPS         int          `json:"fps"`
	CRF         int          `json:"crf"`
	Preset      types.Preset `json:"preset"`
	VideoCodec  string       `json:"video_codec"`
	PixelFormat string       `json:"pixel_format"`

	// KeepAudio passes the template's audio through, re-encoded to AudioCodec.
	KeepAudio       bool   `json:"keep_audio"`
	AudioCodec      string `json:"audio_codec,omitempty"`
	AudioSampleRate int    `json:"audio_sample_rate,omitempty"`
	AudioChannels   int    `json:"audio_channels,omitempty"`
}

// Plan is a fully resolved, declarative description of the main composite.
type Plan struct {
	Template      template.TemplateID  `json:"template"`
	TemplateVideo string               `json:"template_video"`
	Image         string               `json:"image"`
	Border        string               `json:"border,omitempty"`
	Canvas        Size                 `json:"canvas"`
	Placeholder   template.Placeholder `json:"placeholder"`
	Photo         FitGeometry          `json:"photo"`
	Key           ChromaKey            `json:"key"`
	Layers        []Layer              `json:"layers"`
	Encoding      Encoding             `json:"encoding"`
	Warnings      []string             `json:"warnings,omitempty"`
}

// HasBorder reports whether the plan draws a border layer.
func (p *Plan) HasBorder() bool {
	return p.Border != ""
}

// Planner derives composition plans. It never runs ffmpeg; it only probes.
type Planner struct {
	prober ffmpegWrap.Prober
	logger zerolog.Logger
}

// NewPlanner creates a planner using prober for template and image metadata.
func NewPlanner(prober ffmpegWrap.Prober, logger zerolog.Logger) *Planner {
	return &Planner{
		prober: prober,
		logger: logger.With().Str("component", "planner").Logger(),
	}
}

// Plan checks every precondition of a render and derives the composition.
// Missing inputs fail before anything is probed.
func (p *Planner) Plan(cfg *template.TemplateConfig, imagePath string) (*Plan, error) {
	if err := requireFile(imagePath, "customer image"); err != nil {
		return nil, err
	}
	videoPath := cfg.VideoPath()
	if err := requireFile(videoPath, "template video"); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plan := &Plan{
		Template:      cfg.ID,
		TemplateVideo: videoPath,
		Image:         imagePath,
		Placeholder:   cfg.Placeholder,
	}

	if border := cfg.BorderPath(); border != "" {
		if _, err := os.Stat(border); err != nil {
			msg := fmt.Sprintf("border_png configured but missing, ignoring: %s", border)
			p.logger.Warn().Str("border", border).Msg("border_png configured but missing, ignoring")
			plan.Warnings = append(plan.Warnings, msg)
		} else {
			plan.Border = border
		}
	}

	tpl, err := p.prober.Probe(videoPath)
	if err != nil {
		return nil, errors.Wrapf(asProbeError(err), "template video %s", videoPath)
	}
	plan.Canvas = Size{tpl.Width, tpl.Height}
	if err := cfg.ValidateCanvas(tpl.Width, tpl.Height); err != nil {
		return nil, err
	}

	img, err := p.prober.Probe(imagePath)
	if err != nil {
		return nil, errors.Wrapf(asProbeError(err), "customer image %s", imagePath)
	}

	box := Size{cfg.Placeholder.W, cfg.Placeholder.H}
	plan.Photo = FitImage(Size{img.Width, img.Height}, box, cfg.Fit)

	plan.Key = ChromaKey{
		Color:      "0x" + cfg.Chroma.Hex,
		Similarity: ffmpegWrap.FormatFloat(cfg.Chroma.Similarity),
		Blend:      ffmpegWrap.FormatFloat(cfg.Chroma.Blend),
	}

	plan.Layers = []Layer{
		{Kind: LayerBackground},
		{Kind: LayerPhoto, Input: imagePath, X: cfg.Placeholder.X, Y: cfg.Placeholder.Y},
		{Kind: LayerTemplate, Input: videoPath, Keyed: true},
	}
	if plan.HasBorder() {
		plan.Layers = append(plan.Layers, Layer{Kind: LayerBorder, Input: plan.Border})
	}

	codec := ffmpegWrap.GetCodecSettings("mp4")
	plan.Encoding = Encoding{
		FPS:         cfg.Output.FPS,
		CRF:         cfg.Output.CRF,
		Preset:      cfg.Output.Preset,
		VideoCodec:  codec.VideoCodec,
		PixelFormat: codec.PixelFormat,
		KeepAudio:   tpl.HasAudio,
	}
	if tpl.HasAudio {
		plan.Encoding.AudioCodec = codec.AudioCodec
		plan.Encoding.AudioSampleRate = codec.AudioSampleRate
		plan.Encoding.AudioChannels = codec.AudioChannels
	}

	p.logger.Debug().
		Str("template", string(cfg.ID)).
		Str("canvas", plan.Canvas.String()).
		Str("fit", string(cfg.Fit)).
		Str("scaled", plan.Photo.Scaled.String()).
		Bool("border", plan.HasBorder()).
		Bool("audio", tpl.HasAudio).
		Msg("composition planned")

	return plan, nil
}

func requireFile(path, what string) error {
	if path == "" {
		return errors.Wrapf(types.ErrInputNotFound, "%s path is empty", what)
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(types.ErrInputNotFound, "%s %s", what, path)
	}
	if info.IsDir() {
		return errors.Wrapf(types.ErrInputNotFound, "%s %s is a directory", what, path)
	}
	return nil
}

// asProbeError makes sure any prober failure is reported as ErrMediaProbe.
func asProbeError(err error) error {
	if errors.Is(err, types.ErrMediaProbe) {
		return err
	}
	return errors.Wrapf(types.ErrMediaProbe, "%v", err)
}
