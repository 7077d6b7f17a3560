package processor

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	ffmpegWrap "github.com/m-aliabbas/birthday-wisher/internal/ffmpeg"
	"github.com/m-aliabbas/birthday-wisher/internal/template"
	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// fakeProber answers from a table and counts calls.
type fakeProber struct {
	mu       sync.Mutex
	media    map[string]*ffmpegWrap.VideoMetadata
	fallback *ffmpegWrap.VideoMetadata
	override func(path string) (*ffmpegWrap.VideoMetadata, error)
	calls    []string
}

func (p *fakeProber) Probe(path string) (*ffmpegWrap.VideoMetadata, error) {
	p.mu.Lock()
	p.calls = append(p.calls, path)
	p.mu.Unlock()

	if p.override != nil {
		if md, err := p.override(path); md != nil || err != nil {
			return md, err
		}
	}
	if md, ok := p.media[path]; ok {
		copied := *md
		return &copied, nil
	}
	if p.fallback != nil {
		copied := *p.fallback
		return &copied, nil
	}
	return nil, errors.Wrapf(types.ErrMediaProbe, "no media at %s", path)
}

// spyRunner records invocations and writes a stub file at each output path.
type spyRunner struct {
	stages []string
	args   [][]string
	fail   map[string]error
}

func (r *spyRunner) Run(stage string, stream *ffmpeg.Stream) error {
	args := stream.GetArgs()
	r.stages = append(r.stages, stage)
	r.args = append(r.args, args)

	if err := r.fail[stage]; err != nil {
		return types.NewRenderError(stage, "Conversion failed!", err)
	}
	out := args[len(args)-1]
	return os.WriteFile(out, []byte(stage), 0644)
}

func (r *spyRunner) argsFor(stage string) []string {
	for i, s := range r.stages {
		if s == stage {
			return r.args[i]
		}
	}
	return nil
}

// fixture is a template directory with a stub template video and customer photo.
type fixture struct {
	dir    string
	cfg    *template.TemplateConfig
	image  string
	prober *fakeProber
}

func newFixture(t *testing.T, configJSON string, withAudio bool) *fixture {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "balloons")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(dir, "template.json"), configJSON)
	mustWrite(t, filepath.Join(dir, "template.mp4"), "video")

	image := filepath.Join(t.TempDir(), "customer.jpg")
	mustWrite(t, image, "jpeg")

	cfg, err := template.Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	clip := &ffmpegWrap.VideoMetadata{
		Width: 1080, Height: 1920, Codec: "h264", PixelFormat: "yuv420p", FrameRate: 30, Duration: 10,
	}
	if withAudio {
		clip.HasAudio = true
		clip.AudioCodec = "aac"
		clip.AudioSampleRate = 44100
		clip.AudioChannels = 2
	}

	return &fixture{
		dir:   dir,
		cfg:   cfg,
		image: image,
		prober: &fakeProber{
			media: map[string]*ffmpegWrap.VideoMetadata{
				cfg.VideoPath(): clip,
				image:           {Width: 400, Height: 600, Codec: "mjpeg"},
			},
			fallback: clip,
		},
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// inputIndex returns the ffmpeg input number of path in args, or -1.
func inputIndex(args []string, path string) int {
	n := 0
	for i := 0; i < len(args)-1; i++ {
		if args[i] != "-i" {
			continue
		}
		if args[i+1] == path {
			return n
		}
		n++
	}
	return -1
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if strings.Contains(a, want) {
			return true
		}
	}
	return false
}

const basicConfig = `{"placeholder":{"x":100,"y":200,"w":800,"h":800}}`
