// Package videoprocessor is the public entry point for rendering birthday
// greeting videos from chroma-keyed templates.
package videoprocessor

import (
	"path/filepath"

	"github.com/m-aliabbas/birthday-wisher/internal/config"
	ffmpegWrap "github.com/m-aliabbas/birthday-wisher/internal/ffmpeg"
	"github.com/m-aliabbas/birthday-wisher/internal/logging"
	"github.com/m-aliabbas/birthday-wisher/internal/processor"
	"github.com/m-aliabbas/birthday-wisher/internal/template"
	"github.com/pkg/errors"
)

// RenderOptions configures a single render.
type RenderOptions struct {
	TemplateDir  string
	ImagePath    string
	OutputPath   string
	CustomerName string
	// ConfigPath is the application settings file; empty uses the default lookup.
	ConfigPath string
	Verbose    bool
}

// SegmentOptions configures a standalone intro or outro render.
type SegmentOptions struct {
	Kind          processor.SegmentKind
	CustomerName  string
	TemplateVideo string
	OutputPath    string
	ConfigPath    string
}

// PlanResult is a render plan together with the ffmpeg arguments of the main composite.
type PlanResult struct {
	Plan *processor.Plan `json:"plan"`
	Args []string        `json:"args"`
}

// VideoMetadata contains metadata about a media file
type VideoMetadata = ffmpegWrap.VideoMetadata

// Render composes the greeting described by opts and returns the output path.
func Render(opts *RenderOptions) (string, error) {
	settings, cfg, err := load(opts)
	if err != nil {
		return "", err
	}

	renderer := processor.NewRenderer(settings, nil, nil, logging.New(nil))
	return renderer.Render(processor.RenderRequest{
		Template:     cfg,
		ImagePath:    opts.ImagePath,
		OutputPath:   opts.OutputPath,
		CustomerName: opts.CustomerName,
	})
}

// PlanRender resolves and plans a render without encoding anything.
func PlanRender(opts *RenderOptions) (*PlanResult, error) {
	settings, cfg, err := load(opts)
	if err != nil {
		return nil, err
	}

	renderer := processor.NewRenderer(settings, nil, nil, logging.New(nil))
	plan, err := renderer.Planner().Plan(cfg, opts.ImagePath)
	if err != nil {
		return nil, err
	}

	output := opts.OutputPath
	if output == "" {
		output = "main.mp4"
	}
	return &PlanResult{
		Plan: plan,
		Args: processor.BuildComposite(plan, output).GetArgs(),
	}, nil
}

// RenderSegment renders only an intro or outro clip.
func RenderSegment(opts *SegmentOptions) (string, error) {
	if opts.OutputPath == "" {
		return "", errors.New("output path is required")
	}
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return "", err
	}
	renderer := processor.NewRenderer(settings, nil, nil, logging.New(nil))
	return renderer.RenderSegment(opts.Kind, opts.CustomerName, opts.TemplateVideo, opts.OutputPath)
}

// ListTemplates returns the template IDs found under root.
func ListTemplates(root string) ([]string, error) {
	ids, err := template.NewFSRegistry(root).ListTemplates()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return names, nil
}

// InspectTemplate resolves the template in dir with defaults applied.
func InspectTemplate(dir string) (*template.TemplateConfig, error) {
	return template.Resolve(dir)
}

// GetVideoMetadata retrieves metadata about a video file
func GetVideoMetadata(inputPath string) (*VideoMetadata, error) {
	return ffmpegWrap.FFProbe{}.Probe(inputPath)
}

// CheckFFmpeg reports the ffmpeg toolchain found on this host.
func CheckFFmpeg(ffmpegPath string) (*ffmpegWrap.Capabilities, error) {
	return ffmpegWrap.CheckAvailability(ffmpegPath)
}

func load(opts *RenderOptions) (*config.Settings, *template.TemplateConfig, error) {
	if opts.TemplateDir == "" {
		return nil, nil, errors.New("template directory is required")
	}
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.Verbose {
		settings.Verbose = true
	}
	if settings.Verbose {
		logging.Init(true)
	}

	dir, err := filepath.Abs(opts.TemplateDir)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	cfg, err := template.Resolve(dir)
	if err != nil {
		return nil, nil, err
	}
	return settings, cfg, nil
}
