package processor

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/m-aliabbas/birthday-wisher/internal/config"
	ffmpegWrap "github.com/m-aliabbas/birthday-wisher/internal/ffmpeg"
	"github.com/m-aliabbas/birthday-wisher/internal/template"
	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// TimestampLayout names intermediates and default outputs.
const TimestampLayout = "20060102_150405"

// Render stages, in execution order.
const (
	StageIntro  = "intro"
	StageMain   = "main"
	StageOutro  = "outro"
	StageConcat = "concat"
)

// RenderRequest is one greeting to produce.
type RenderRequest struct {
	Template     *template.TemplateConfig
	ImagePath    string
	OutputPath   string
	CustomerName string
}

// StageObserver is notified after every ffmpeg stage.
type StageObserver interface {
	ObserveStage(stage string, elapsed time.Duration, err error)
}

// Renderer runs the full intro, main composite, outro and concat pipeline.
type Renderer struct {
	settings *config.Settings
	planner  *Planner
	prober   ffmpegWrap.Prober
	runner   ffmpegWrap.Runner
	observer StageObserver
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithObserver reports stage timings to o.
func WithObserver(o StageObserver) Option {
	return func(r *Renderer) { r.observer = o }
}

// WithClock replaces time.Now for naming intermediates.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// NewRenderer creates a renderer. Nil prober or runner select ffprobe and the
// ffmpeg binary from settings.
func NewRenderer(settings *config.Settings, prober ffmpegWrap.Prober, runner ffmpegWrap.Runner, logger zerolog.Logger, opts ...Option) *Renderer {
	if settings == nil {
		settings = config.Default()
	}
	if prober == nil {
		prober = ffmpegWrap.FFProbe{}
	}
	if runner == nil {
		runner = ffmpegWrap.NewCommandRunner(settings.FFmpegPath, logger)
	}
	r := &Renderer{
		settings: settings,
		planner:  NewPlanner(prober, logger),
		prober:   prober,
		runner:   runner,
		logger:   logger.With().Str("component", "renderer").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Planner returns the planner used for the main composite.
func (r *Renderer) Planner() *Planner {
	return r.planner
}

// Render produces req.OutputPath and returns it. Nothing is encoded unless
// every precondition holds; the destination is only replaced once the final
// concat has succeeded.
func (r *Renderer) Render(req RenderRequest) (string, error) {
	if req.Template == nil {
		return "", errors.Wrap(types.ErrConfigNotFound, "no template given")
	}
	if req.OutputPath == "" {
		return "", errors.New("output path is empty")
	}

	plan, err := r.planner.Plan(req.Template, req.ImagePath)
	if err != nil {
		return "", err
	}

	start := r.now()
	ts := start.Format(TimestampLayout)

	workDir, err := os.MkdirTemp(r.settings.TempDir, config.TempDirPrefix)
	if err != nil {
		return "", errors.Wrap(err, "create work directory")
	}
	defer r.cleanup(workDir)

	paths := NewJobPaths(workDir, ts)
	log := r.logger.With().
		Str("template", string(plan.Template)).
		Str("output", req.OutputPath).
		Logger()
	log.Info().Str("work_dir", workDir).Msg("rendering")

	intro := r.segment(SegmentIntro, r.settings.Intro, req.CustomerName, plan)
	if err := r.runSegment(intro, workDir, paths.Intro); err != nil {
		return "", err
	}

	if err := r.runStage(StageMain, func() error {
		return r.runner.Run(StageMain, BuildComposite(plan, paths.Main))
	}); err != nil {
		return "", err
	}

	outro := r.segment(SegmentOutro, r.settings.Outro, req.CustomerName, plan)
	if err := r.runSegment(outro, workDir, paths.Outro); err != nil {
		return "", err
	}

	if err := r.concat(paths, req.OutputPath, ts); err != nil {
		return "", err
	}

	log.Info().Dur("elapsed", time.Since(start)).Msg("render complete")
	return req.OutputPath, nil
}

// RenderSegment renders a standalone intro or outro. Its canvas comes from
// templateVideo when that can be probed and from the configured default otherwise.
func (r *Renderer) RenderSegment(kind SegmentKind, customerName, templateVideo, outputPath string) (string, error) {
	settings := r.settings.Intro
	if kind == SegmentOutro {
		settings = r.settings.Outro
	}

	workDir, err := os.MkdirTemp(r.settings.TempDir, config.TempDirPrefix)
	if err != nil {
		return "", errors.Wrap(err, "create work directory")
	}
	defer r.cleanup(workDir)

	codec := ffmpegWrap.GetCodecSettings("mp4")
	seg := Segment{
		Kind:         kind,
		Settings:     settings,
		CustomerName: customerName,
		Canvas:       r.SegmentCanvas(templateVideo),
		Encoding: Encoding{
			FPS:         template.DefaultFPS,
			CRF:         template.DefaultCRF,
			Preset:      template.DefaultPreset,
			VideoCodec:  codec.VideoCodec,
			PixelFormat: codec.PixelFormat,
		},
	}
	if err := ensureOutputDir(outputPath); err != nil {
		return "", err
	}
	if err := r.runSegment(seg, workDir, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// SegmentCanvas probes templateVideo for its size, falling back to the
// configured canvas.
func (r *Renderer) SegmentCanvas(templateVideo string) Size {
	fallback := Size{r.settings.Canvas.Width, r.settings.Canvas.Height}
	if templateVideo == "" {
		return fallback
	}
	md, err := r.prober.Probe(templateVideo)
	if err != nil {
		r.logger.Warn().Err(err).Str("fallback", fallback.String()).Msg("could not probe template video for segment canvas")
		return fallback
	}
	return Size{md.Width, md.Height}
}

func (r *Renderer) segment(kind SegmentKind, settings config.SegmentSettings, name string, plan *Plan) Segment {
	return Segment{
		Kind:         kind,
		Settings:     settings,
		CustomerName: name,
		Canvas:       plan.Canvas,
		Encoding:     plan.Encoding,
	}
}

func (r *Renderer) runSegment(seg Segment, workDir, output string) error {
	stage := string(seg.Kind)
	return r.runStage(stage, func() error {
		stream, err := BuildSegment(seg, workDir, output)
		if err != nil {
			return err
		}
		return r.runner.Run(stage, stream)
	})
}

func (r *Renderer) runStage(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	if r.observer != nil {
		r.observer.ObserveStage(stage, time.Since(start), err)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("stage", stage).Msg("stage failed")
		return err
	}
	r.logger.Debug().Str("stage", stage).Dur("elapsed", time.Since(start)).Msg("stage complete")
	return nil
}

// concat checks the three clips can be stream-copied together, joins them into
// a staging file next to dest and renames it into place.
func (r *Renderer) concat(paths JobPaths, dest, ts string) error {
	clips := paths.Clips()
	if err := r.checkSegments(clips); err != nil {
		return err
	}
	if err := ffmpegWrap.WriteConcatList(paths.ConcatList, clips); err != nil {
		return err
	}
	if err := ensureOutputDir(dest); err != nil {
		return err
	}

	staging := StagingPath(dest, ts)
	err := r.runStage(StageConcat, func() error {
		return r.runner.Run(StageConcat, ffmpegWrap.ConcatStream(paths.ConcatList, staging))
	})
	if err != nil {
		os.Remove(staging)
		return err
	}
	if err := os.Rename(staging, dest); err != nil {
		os.Remove(staging)
		return errors.Wrapf(err, "move %s to %s", staging, dest)
	}
	return nil
}

func (r *Renderer) checkSegments(clips []string) error {
	var ref *ffmpegWrap.VideoMetadata
	for _, clip := range clips {
		md, err := r.prober.Probe(clip)
		if err != nil {
			return errors.Wrapf(asProbeError(err), "segment %s", filepath.Base(clip))
		}
		if ref == nil {
			ref = md
			continue
		}
		if reason := ffmpegWrap.SameCodecParameters(ref, md); reason != "" {
			return errors.Wrapf(types.ErrIncompatibleSegments, "%s: %s", filepath.Base(clip), reason)
		}
	}
	return nil
}

func (r *Renderer) cleanup(workDir string) {
	if err := os.RemoveAll(workDir); err != nil {
		r.logger.Debug().Err(err).Str("work_dir", workDir).Msg("cleanup failed")
	}
}

// JobPaths are the intermediates of one render inside its work directory.
type JobPaths struct {
	Intro      string
	Main       string
	Outro      string
	ConcatList string
}

func NewJobPaths(workDir, ts string) JobPaths {
	return JobPaths{
		Intro:      filepath.Join(workDir, "intro_"+ts+".mp4"),
		Main:       filepath.Join(workDir, "main_"+ts+".mp4"),
		Outro:      filepath.Join(workDir, "outro_"+ts+".mp4"),
		ConcatList: filepath.Join(workDir, "concat_"+ts+".txt"),
	}
}

// Clips returns the clips in playback order.
func (p JobPaths) Clips() []string {
	return []string{p.Intro, p.Main, p.Outro}
}

// StagingPath is where the final concat writes before it is renamed onto dest.
// It keeps the .mp4 extension so ffmpeg picks the right muxer.
func StagingPath(dest, ts string) string {
	base := strings.TrimSuffix(filepath.Base(dest), filepath.Ext(dest))
	return filepath.Join(filepath.Dir(dest), "."+base+".partial_"+ts+".mp4")
}

// OutputName builds "<name>_<ts>[_<suffix>].mp4" from a customer name. The
// suffix separates renders started within the same second.
func OutputName(customerName string, at time.Time, suffix string) string {
	name := SanitizeFilename(customerName)
	if name == "" {
		name = "greeting"
	}
	name += "_" + at.Format(TimestampLayout)
	if suffix = SanitizeFilename(suffix); suffix != "" {
		name += "_" + suffix
	}
	return name + ".mp4"
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9-_.]`)
	underscores = regexp.MustCompile(`_+`)
)

// SanitizeFilename makes s safe to use as a file name component.
func SanitizeFilename(s string) string {
	s = strings.TrimSuffix(s, ".mp4")
	s = unsafeChars.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_.")
}

func ensureOutputDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create output directory %s", dir)
	}
	return nil
}
