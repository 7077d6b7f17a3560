package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Settings holds application-level configuration. Per-template settings live in
// each template's own config file.
type Settings struct {
	TemplatesDir string `yaml:"templates_dir"`
	OutputDir    string `yaml:"output_dir"`
	TempDir      string `yaml:"temp_dir"`
	FFmpegPath   string `yaml:"ffmpeg_path"`
	Verbose      bool   `yaml:"verbose"`

	// Canvas is used for intro/outro segments when no template video can be probed.
	Canvas CanvasSettings `yaml:"canvas"`

	Intro SegmentSettings `yaml:"intro"`
	Outro SegmentSettings `yaml:"outro"`

	Server ServerSettings `yaml:"server"`
}

type CanvasSettings struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SegmentSettings describes a generated intro or outro clip.
type SegmentSettings struct {
	Seconds    float64  `yaml:"seconds"`
	Background string   `yaml:"background"`
	Lines      []string `yaml:"lines"`
	FontFile   string   `yaml:"font_file"`
	FontColor  string   `yaml:"font_color"`
	// Outline drawn around each text line; zero width disables it.
	FontBorderColor string `yaml:"font_border_color"`
	FontBorderWidth int    `yaml:"font_border_width"`
	// LogoFile is optional; no search is done when it is empty.
	LogoFile string  `yaml:"logo_file"`
	FadeIn   float64 `yaml:"fade_in"`
	FadeOut  float64 `yaml:"fade_out"`
}

type ServerSettings struct {
	Listen      string `yaml:"listen"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

const (
	// Default canvas (portrait 1080x1920)
	DefaultCanvasWidth  = 1080
	DefaultCanvasHeight = 1920

	IntroSeconds = 4
	OutroSeconds = 3

	// Temporary directory prefix
	TempDirPrefix = "birthday_wisher_"

	// CustomerNameToken is replaced by the customer's name in intro/outro lines.
	CustomerNameToken = "{name}"

	// Text overlay settings
	TextColor       = "white"
	TextBorderColor = "black"
	TextBorderWidth = 2
	SegmentColor    = "0x1a1a2e"

	DefaultSettingsFile = "birthday-wisher.yaml"
)

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		TemplatesDir: "templates",
		OutputDir:    "output",
		TempDir:      os.TempDir(),
		Canvas: CanvasSettings{
			Width:  DefaultCanvasWidth,
			Height: DefaultCanvasHeight,
		},
		Intro: SegmentSettings{
			Seconds:    IntroSeconds,
			Background: SegmentColor,
			Lines:      []string{"Happy Birthday", CustomerNameToken, "from"},
			FontColor:  TextColor,

			FontBorderColor: TextBorderColor,
			FontBorderWidth: TextBorderWidth,
			FadeIn:     1,
			FadeOut:    0.6,
		},
		Outro: SegmentSettings{
			Seconds:    OutroSeconds,
			Background: SegmentColor,
			FontColor:  TextColor,

			FontBorderColor: TextBorderColor,
			FontBorderWidth: TextBorderWidth,
			FadeIn:     0.6,
			FadeOut:    0.6,
		},
		Server: ServerSettings{
			Listen:      ":8080",
			MaxUploadMB: 20,
		},
	}
}

// Load reads settings from path, falling back to DefaultSettingsFile in the
// working directory, then to defaults. A .env file is loaded first if present and
// BW_* environment variables override file values.
func Load(path string) (*Settings, error) {
	// .env is optional
	_ = godotenv.Load()

	s := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultSettingsFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, errors.Wrapf(err, "parse settings %s", path)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, errors.Wrapf(err, "read settings %s", path)
	}

	s.applyEnv()
	s.fillZeroes()
	return s, nil
}

// Save writes settings as YAML.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.WithStack(err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(os.WriteFile(path, data, 0644))
}

func (s *Settings) applyEnv() {
	envString("BW_TEMPLATES_DIR", &s.TemplatesDir)
	envString("BW_OUTPUT_DIR", &s.OutputDir)
	envString("BW_TEMP_DIR", &s.TempDir)
	envString("BW_FFMPEG_PATH", &s.FFmpegPath)
	envString("BW_LISTEN", &s.Server.Listen)
	if v := os.Getenv("BW_LOGO"); v != "" {
		s.Intro.LogoFile = v
		s.Outro.LogoFile = v
	}
	if v, err := strconv.ParseBool(os.Getenv("BW_VERBOSE")); err == nil {
		s.Verbose = v
	}
}

// fillZeroes restores defaults a partial settings file may have zeroed.
func (s *Settings) fillZeroes() {
	def := Default()
	if s.Canvas.Width <= 0 || s.Canvas.Height <= 0 {
		s.Canvas = def.Canvas
	}
	if s.Intro.Seconds <= 0 {
		s.Intro.Seconds = def.Intro.Seconds
	}
	if s.Outro.Seconds <= 0 {
		s.Outro.Seconds = def.Outro.Seconds
	}
	if s.Intro.Background == "" {
		s.Intro.Background = def.Intro.Background
	}
	if s.Outro.Background == "" {
		s.Outro.Background = def.Outro.Background
	}
	if s.Intro.FontBorderColor == "" {
		s.Intro.FontBorderColor = def.Intro.FontBorderColor
	}
	if s.Outro.FontBorderColor == "" {
		s.Outro.FontBorderColor = def.Outro.FontBorderColor
	}
	if s.TempDir == "" {
		s.TempDir = def.TempDir
	}
	if s.Server.MaxUploadMB <= 0 {
		s.Server.MaxUploadMB = def.Server.MaxUploadMB
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
