package videoprocessor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	"github.com/pkg/errors"
)

func writeTemplate(t *testing.T, root, id, config string) string {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "template.json"), []byte(config), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestListAndInspect(t *testing.T) {
	root := t.TempDir()
	writeTemplate(t, root, "stars", `{"placeholder":{"w":10,"h":10}}`)
	dir := writeTemplate(t, root, "balloons", `{"placeholder":{"w":10,"h":10},"fit":"contain"}`)

	ids, err := ListTemplates(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "balloons" || ids[1] != "stars" {
		t.Errorf("ListTemplates() = %v", ids)
	}

	cfg, err := InspectTemplate(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Fit != types.FitContain || cfg.Output.Preset != "medium" {
		t.Errorf("InspectTemplate() = %+v", cfg)
	}
}

func TestRenderFailsFastOnMissingInputs(t *testing.T) {
	dir := writeTemplate(t, t.TempDir(), "balloons", `{"placeholder":{"w":10,"h":10}}`)
	if err := os.WriteFile(filepath.Join(dir, "template.mp4"), []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}

	opts := &RenderOptions{
		TemplateDir: dir,
		ImagePath:   filepath.Join(t.TempDir(), "missing.jpg"),
		OutputPath:  filepath.Join(t.TempDir(), "out.mp4"),
	}
	if _, err := Render(opts); !errors.Is(err, types.ErrInputNotFound) {
		t.Errorf("Render() error = %v, want ErrInputNotFound", err)
	}
	if _, err := PlanRender(opts); !errors.Is(err, types.ErrInputNotFound) {
		t.Errorf("PlanRender() error = %v, want ErrInputNotFound", err)
	}
	if _, err := os.Stat(opts.OutputPath); !os.IsNotExist(err) {
		t.Error("nothing should be written")
	}
}

func TestRenderMissingConfig(t *testing.T) {
	_, err := Render(&RenderOptions{TemplateDir: t.TempDir(), ImagePath: "x.jpg", OutputPath: "out.mp4"})
	if !errors.Is(err, types.ErrConfigNotFound) {
		t.Errorf("Render() error = %v, want ErrConfigNotFound", err)
	}
}
