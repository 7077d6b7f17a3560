package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/m-aliabbas/birthday-wisher/internal/config"
	ffmpegWrap "github.com/m-aliabbas/birthday-wisher/internal/ffmpeg"
	"github.com/m-aliabbas/birthday-wisher/internal/processor"
	"github.com/m-aliabbas/birthday-wisher/internal/template"
	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var outputPattern = regexp.MustCompile(`^Alice_20260501_120000_[0-9a-f]{12}\.mp4$`)

type stubRenderer struct {
	requests []processor.RenderRequest
	err      error
}

func (r *stubRenderer) Render(req processor.RenderRequest) (string, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return "", r.err
	}
	if _, err := os.Stat(req.ImagePath); err != nil {
		return "", err
	}
	return req.OutputPath, os.WriteFile(req.OutputPath, []byte("mp4"), 0644)
}

func newTestServer(t *testing.T, renderer *stubRenderer) (*Server, *config.Settings) {
	t.Helper()
	settings := config.Default()
	settings.TemplatesDir = t.TempDir()
	settings.OutputDir = t.TempDir()
	settings.TempDir = t.TempDir()

	store := template.NewFSRegistry(settings.TemplatesDir)
	cfg, err := template.Parse([]byte(`{"placeholder":{"w":100,"h":100}}`), template.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save("balloons", cfg); err != nil {
		t.Fatal(err)
	}

	srv := New(Deps{
		Settings: settings,
		Store:    store,
		Renderer: renderer,
		Health: func() (*ffmpegWrap.Capabilities, error) {
			return &ffmpegWrap.Capabilities{FFmpegPath: "/usr/bin/ffmpeg", Version: "ffmpeg version 6.1"}, nil
		},
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	return srv, settings
}

func renderForm(t *testing.T, fields map[string]string, withImage bool) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if withImage {
		fw, err := mw.CreateFormFile("image", "me.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte("png"))
	}
	mw.Close()
	return body, mw.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubRenderer{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if id := rec.Header().Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("X-Request-ID = %q, want a uuid", id)
	}
}

func TestHealthUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, &stubRenderer{})
	srv.health = func() (*ffmpegWrap.Capabilities, error) { return nil, errors.New("ffmpeg not found in PATH") }

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestTemplatesEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &stubRenderer{})
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"balloons"`) {
		t.Fatalf("list = %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates/balloons", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"hex":"3ec954"`) {
		t.Errorf("get = %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing template status = %d", rec.Code)
	}
}

func TestPutTemplate(t *testing.T) {
	srv, settings := newTestServer(t, &stubRenderer{})
	router := srv.Router()

	body := `{"placeholder":{"x":1,"y":2,"w":30,"h":40},"chroma":{"hex":"#00FF00"},"fit":"contain"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/templates/party", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("put = %d %s", rec.Code, rec.Body)
	}

	cfg, err := template.Resolve(filepath.Join(settings.TemplatesDir, "party"))
	if err != nil {
		t.Fatalf("saved template not resolvable: %v", err)
	}
	if cfg.Chroma.Hex != "00ff00" || cfg.Fit != types.FitContain || cfg.Placeholder.W != 30 {
		t.Errorf("saved = %+v", cfg)
	}

	for name, bad := range map[string]string{
		"parse":   `{"placeholder":`,
		"invalid": `{"placeholder":{"w":10,"h":10},"output":{"crf":80}}`,
	} {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/templates/party", strings.NewReader(bad)))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: status = %d, want 422", name, rec.Code)
		}
	}
}

func TestPostRender(t *testing.T) {
	renderer := &stubRenderer{}
	srv, settings := newTestServer(t, renderer)
	router := srv.Router()

	body, ctype := renderForm(t, map[string]string{"template": "balloons", "name": "Alice"}, true)
	req := httptest.NewRequest(http.MethodPost, "/renders", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d %s", rec.Code, rec.Body)
	}
	resp := decodeBody(t, rec)
	output, _ := resp["output"].(string)
	if !outputPattern.MatchString(output) {
		t.Errorf("output = %q, want Alice_<ts>_<id>.mp4", output)
	}
	if resp["id"] != rec.Header().Get("X-Request-ID") {
		t.Errorf("id = %v, want request id", resp["id"])
	}

	if len(renderer.requests) != 1 {
		t.Fatalf("renders = %d", len(renderer.requests))
	}
	got := renderer.requests[0]
	if got.CustomerName != "Alice" || got.Template.ID != "balloons" {
		t.Errorf("request = %+v", got)
	}
	if got.OutputPath != filepath.Join(settings.OutputDir, output) {
		t.Errorf("OutputPath = %s", got.OutputPath)
	}
	if _, err := os.Stat(got.ImagePath); !os.IsNotExist(err) {
		t.Errorf("uploaded image should be removed after render")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/renders/"+output, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "mp4" {
		t.Errorf("download = %d %q", rec.Code, rec.Body)
	}
}

func TestPostRenderSameSecondKeepsBothOutputs(t *testing.T) {
	renderer := &stubRenderer{}
	srv, _ := newTestServer(t, renderer)
	router := srv.Router()

	outputs := map[string]bool{}
	for i := 0; i < 2; i++ {
		body, ctype := renderForm(t, map[string]string{"template": "balloons", "name": "Alice"}, true)
		req := httptest.NewRequest(http.MethodPost, "/renders", body)
		req.Header.Set("Content-Type", ctype)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("render %d: status = %d %s", i, rec.Code, rec.Body)
		}
		output, _ := decodeBody(t, rec)["output"].(string)
		outputs[output] = true
	}

	if len(outputs) != 2 {
		t.Errorf("two renders at the same clock tick share an output: %v", outputs)
	}
	if renderer.requests[0].OutputPath == renderer.requests[1].OutputPath {
		t.Errorf("OutputPath reused: %s", renderer.requests[0].OutputPath)
	}
}

func TestPostRenderValidation(t *testing.T) {
	tests := []struct {
		name      string
		fields    map[string]string
		withImage bool
		status    int
	}{
		{"missing template", map[string]string{"name": "Alice"}, true, http.StatusBadRequest},
		{"missing name", map[string]string{"template": "balloons"}, true, http.StatusBadRequest},
		{"missing image", map[string]string{"template": "balloons", "name": "Alice"}, false, http.StatusBadRequest},
		{"unknown template", map[string]string{"template": "nope", "name": "Alice"}, true, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := &stubRenderer{}
			srv, _ := newTestServer(t, renderer)

			body, ctype := renderForm(t, tt.fields, tt.withImage)
			req := httptest.NewRequest(http.MethodPost, "/renders", body)
			req.Header.Set("Content-Type", ctype)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if len(renderer.requests) != 0 {
				t.Error("renderer should not be called")
			}
		})
	}
}

func TestPostRenderFailure(t *testing.T) {
	renderer := &stubRenderer{err: types.NewRenderError("main", "Conversion failed!", errors.New("exit status 1"))}
	srv, _ := newTestServer(t, renderer)

	body, ctype := renderForm(t, map[string]string{"template": "balloons", "name": "Alice"}, true)
	req := httptest.NewRequest(http.MethodPost, "/renders", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var env ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.Error.Code != "RENDER_FAILED" || env.Error.Details["stage"] != "main" {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestGetRenderRejectsTraversal(t *testing.T) {
	srv, _ := newTestServer(t, &stubRenderer{})
	router := srv.Router()

	for _, path := range []string{"/renders/..%2Fsecret.mp4", "/renders/.hidden.mp4", "/renders/notes.txt"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/renders/absent.mp4", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("absent render status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubRenderer{})
	StageMetrics{}.ObserveStage("main", time.Second, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "birthday_wisher_ffmpeg_stage_duration_seconds") {
		t.Errorf("metrics = %d", rec.Code)
	}
}
