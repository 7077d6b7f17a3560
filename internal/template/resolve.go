package template

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a template config file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ConfigFiles are looked up in order inside a template directory.
var ConfigFiles = []string{"template.json", "template.yaml", "template.yml"}

// rawConfig mirrors TemplateConfig with pointers so absent fields can be told
// apart from explicit zero values.
type rawConfig struct {
	Placeholder *struct {
		X *float64 `json:"x" yaml:"x"`
		Y *float64 `json:"y" yaml:"y"`
		W *float64 `json:"w" yaml:"w"`
		H *float64 `json:"h" yaml:"h"`
	} `json:"placeholder" yaml:"placeholder"`
	Chroma *struct {
		Hex        *string  `json:"hex" yaml:"hex"`
		Similarity *float64 `json:"similarity" yaml:"similarity"`
		Blend      *float64 `json:"blend" yaml:"blend"`
	} `json:"chroma" yaml:"chroma"`
	Fit    *string `json:"fit" yaml:"fit"`
	Output *struct {
		FPS    *float64 `json:"fps" yaml:"fps"`
		CRF    *float64 `json:"crf" yaml:"crf"`
		Preset *string  `json:"preset" yaml:"preset"`
	} `json:"output" yaml:"output"`
	BorderPNG     *string `json:"border_png" yaml:"border_png"`
	TemplateVideo *string `json:"template_video" yaml:"template_video"`
}

// FindConfigFile returns the config file inside dir.
func FindConfigFile(dir string) (string, Format, error) {
	for _, name := range ConfigFiles {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, formatFor(name), nil
		}
	}
	return "", "", errors.Wrapf(types.ErrConfigNotFound, "no %s in %s", strings.Join(ConfigFiles, "/"), dir)
}

// Resolve loads the template config stored in dir and applies defaults.
func Resolve(dir string) (*TemplateConfig, error) {
	path, format, err := FindConfigFile(dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(types.ErrConfigNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}

	cfg, err := Parse(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	cfg.Dir = abs
	cfg.ID = TemplateID(filepath.Base(abs))
	return cfg, nil
}

// Parse decodes config data and fills in defaults for absent fields.
func Parse(data []byte, format Format) (*TemplateConfig, error) {
	var raw rawConfig
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrapf(types.ErrConfigParse, "%v", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrapf(types.ErrConfigParse, "%v", err)
		}
	}

	if raw.Placeholder == nil {
		return nil, errors.Wrap(types.ErrConfigParse, "placeholder is required")
	}
	ph := raw.Placeholder
	if ph.W == nil || ph.H == nil {
		return nil, errors.Wrap(types.ErrConfigParse, "placeholder.w and placeholder.h are required")
	}

	cfg := &TemplateConfig{
		Placeholder: Placeholder{
			X: intOr(ph.X, 0),
			Y: intOr(ph.Y, 0),
			W: int(*ph.W),
			H: int(*ph.H),
		},
		Chroma: Chroma{
			Hex:        DefaultChromaHex,
			Similarity: DefaultChromaSimilarity,
			Blend:      DefaultChromaBlend,
		},
		Fit: DefaultFit,
		Output: Output{
			FPS:    DefaultFPS,
			CRF:    DefaultCRF,
			Preset: DefaultPreset,
		},
		TemplateVideo: DefaultTemplateVideo,
	}

	if c := raw.Chroma; c != nil {
		if c.Hex != nil {
			cfg.Chroma.Hex = NormalizeHex(*c.Hex)
		}
		if c.Similarity != nil {
			cfg.Chroma.Similarity = *c.Similarity
		}
		if c.Blend != nil {
			cfg.Chroma.Blend = *c.Blend
		}
	}
	if raw.Fit != nil {
		if fit, ok := types.ParseFitMode(*raw.Fit); ok {
			cfg.Fit = fit
		} else {
			// Left as-is; Validate reports it.
			cfg.Fit = types.FitMode(*raw.Fit)
		}
	}
	if o := raw.Output; o != nil {
		if o.FPS != nil {
			cfg.Output.FPS = int(*o.FPS)
		}
		if o.CRF != nil {
			cfg.Output.CRF = int(*o.CRF)
		}
		if o.Preset != nil {
			cfg.Output.Preset = types.Preset(*o.Preset)
		}
	}
	if raw.BorderPNG != nil {
		cfg.BorderPNG = strings.TrimSpace(*raw.BorderPNG)
	}
	if raw.TemplateVideo != nil && *raw.TemplateVideo != "" {
		cfg.TemplateVideo = *raw.TemplateVideo
	}

	return cfg, nil
}

// NormalizeHex strips a leading '#' or 0x and lower-cases the color.
func NormalizeHex(hex string) string {
	hex = strings.ToLower(strings.TrimSpace(hex))
	hex = strings.TrimPrefix(hex, "#")
	return strings.TrimPrefix(hex, "0x")
}

func intOr(v *float64, def int) int {
	if v == nil {
		return def
	}
	return int(*v)
}

func formatFor(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}
