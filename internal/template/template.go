// Package template holds the per-template configuration model, its resolver and
// the registry that enumerates templates on disk.
package template

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	"github.com/pkg/errors"
)

const (
	DefaultChromaHex        = "3ec954"
	DefaultChromaSimilarity = 0.23
	DefaultChromaBlend      = 0.03
	DefaultFit              = types.FitCover
	DefaultFPS              = 30
	DefaultCRF              = 18
	DefaultPreset           = types.Preset("medium")
	DefaultTemplateVideo    = "template.mp4"

	MinFPS = 1
	MaxFPS = 60
	MinCRF = 0
	MaxCRF = 51
)

// TemplateID names a template directory.
type TemplateID string

// Placeholder is the rectangle, in canvas pixels, the customer photo is placed into.
type Placeholder struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

type Chroma struct {
	Hex        string  `json:"hex" yaml:"hex"`
	Similarity float64 `json:"similarity" yaml:"similarity"`
	Blend      float64 `json:"blend" yaml:"blend"`
}

type Output struct {
	FPS    int          `json:"fps" yaml:"fps"`
	CRF    int          `json:"crf" yaml:"crf"`
	Preset types.Preset `json:"preset" yaml:"preset"`
}

// TemplateConfig is an immutable snapshot of one template's settings.
type TemplateConfig struct {
	Placeholder   Placeholder   `json:"placeholder" yaml:"placeholder"`
	Chroma        Chroma        `json:"chroma" yaml:"chroma"`
	Fit           types.FitMode `json:"fit" yaml:"fit"`
	Output        Output        `json:"output" yaml:"output"`
	BorderPNG     string        `json:"border_png,omitempty" yaml:"border_png,omitempty"`
	TemplateVideo string        `json:"template_video" yaml:"template_video"`

	ID  TemplateID `json:"-" yaml:"-"`
	Dir string     `json:"-" yaml:"-"`
}

// VideoPath is the template video resolved against the template directory.
func (c *TemplateConfig) VideoPath() string {
	return c.resolve(c.TemplateVideo)
}

// BorderPath is the border asset path, or "" when no border is configured.
func (c *TemplateConfig) BorderPath() string {
	if c.BorderPNG == "" {
		return ""
	}
	return c.resolve(c.BorderPNG)
}

func (c *TemplateConfig) resolve(name string) string {
	if filepath.IsAbs(name) || c.Dir == "" {
		return name
	}
	return filepath.Join(c.Dir, name)
}

var hexColor = regexp.MustCompile(`^[0-9a-f]{6}$`)

// Validate checks value ranges that can be verified without probing media.
func (c *TemplateConfig) Validate() error {
	ph := c.Placeholder
	if ph.W <= 0 || ph.H <= 0 {
		return errors.Wrapf(types.ErrInvalidTemplate, "placeholder size must be positive, got %dx%d", ph.W, ph.H)
	}
	if ph.X < 0 || ph.Y < 0 {
		return errors.Wrapf(types.ErrInvalidTemplate, "placeholder origin must not be negative, got (%d,%d)", ph.X, ph.Y)
	}
	if !hexColor.MatchString(c.Chroma.Hex) {
		return errors.Wrapf(types.ErrInvalidTemplate, "chroma hex %q is not a 6-digit RGB value", c.Chroma.Hex)
	}
	if c.Chroma.Similarity < 0 || c.Chroma.Similarity > 1 {
		return errors.Wrapf(types.ErrInvalidTemplate, "chroma similarity %v outside [0,1]", c.Chroma.Similarity)
	}
	if c.Chroma.Blend < 0 || c.Chroma.Blend > 1 {
		return errors.Wrapf(types.ErrInvalidTemplate, "chroma blend %v outside [0,1]", c.Chroma.Blend)
	}
	if _, ok := types.ParseFitMode(string(c.Fit)); !ok {
		return errors.Wrapf(types.ErrInvalidTemplate, "unsupported fit mode %q (supported: cover, contain)", c.Fit)
	}
	if c.Output.FPS < MinFPS || c.Output.FPS > MaxFPS {
		return errors.Wrapf(types.ErrInvalidTemplate, "fps %d outside %d-%d", c.Output.FPS, MinFPS, MaxFPS)
	}
	if c.Output.CRF < MinCRF || c.Output.CRF > MaxCRF {
		return errors.Wrapf(types.ErrInvalidTemplate, "crf %d outside %d-%d", c.Output.CRF, MinCRF, MaxCRF)
	}
	if !c.Output.Preset.Valid() {
		return errors.Wrapf(types.ErrInvalidTemplate, "unknown preset %q", c.Output.Preset)
	}
	if c.TemplateVideo == "" {
		return errors.Wrap(types.ErrInvalidTemplate, "template_video is empty")
	}
	return nil
}

// ValidateCanvas checks that the placeholder lies inside a canvas of the given size.
func (c *TemplateConfig) ValidateCanvas(width, height int) error {
	ph := c.Placeholder
	if ph.X+ph.W > width || ph.Y+ph.H > height {
		return errors.Wrapf(types.ErrInvalidTemplate,
			"placeholder %dx%d+%d+%d exceeds canvas %dx%d", ph.W, ph.H, ph.X, ph.Y, width, height)
	}
	return nil
}

func (c *TemplateConfig) String() string {
	return fmt.Sprintf("template %q (%s, fit=%s, %dfps crf=%d preset=%s)",
		c.ID, c.TemplateVideo, c.Fit, c.Output.FPS, c.Output.CRF, c.Output.Preset)
}
