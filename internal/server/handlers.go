package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/m-aliabbas/birthday-wisher/internal/processor"
	"github.com/m-aliabbas/birthday-wisher/internal/template"
	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	"github.com/pkg/errors"
)

const maxConfigBytes = 1 << 20

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	caps, err := s.health()
	if err != nil {
		writeErr(w, r, http.StatusServiceUnavailable, "FFMPEG_UNAVAILABLE", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ffmpeg": caps,
	})
}

func (s *Server) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListTemplates()
	if err != nil {
		s.logger.Error().Err(err).Msg("list templates")
		writeErr(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "could not list templates", nil)
		return
	}
	if ids == nil {
		ids = []template.TemplateID{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": ids})
}

func (s *Server) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := template.TemplateID(chi.URLParam(r, "templateId"))
	cfg, err := s.store.Load(id)
	if err != nil {
		status, code := errorStatus(err)
		writeErr(w, r, status, code, err.Error(), map[string]any{"template": id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "config": cfg})
}

// PutTemplate replaces a template's config. Absent fields take their defaults.
func (s *Server) PutTemplate(w http.ResponseWriter, r *http.Request) {
	id := template.TemplateID(chi.URLParam(r, "templateId"))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBytes))
	if err != nil {
		writeErr(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "could not read body", nil)
		return
	}
	cfg, err := template.Parse(body, template.FormatJSON)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		status, code := errorStatus(err)
		writeErr(w, r, status, code, err.Error(), nil)
		return
	}

	if err := s.store.Save(id, cfg); err != nil {
		status, code := errorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error().Err(err).Str("template", string(id)).Msg("save template")
		}
		writeErr(w, r, status, code, err.Error(), map[string]any{"template": id})
		return
	}

	s.logger.Info().Str("template", string(id)).Msg("template saved")
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "config": cfg})
}

// PostRender renders synchronously. Fields: template, name, image.
func (s *Server) PostRender(w http.ResponseWriter, r *http.Request) {
	reqID := RequestID(r.Context())
	log := s.logger.With().Str("request_id", reqID).Logger()

	r.Body = http.MaxBytesReader(w, r.Body, s.settings.Server.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(s.settings.Server.MaxUploadMB << 20); err != nil {
		writeErr(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid multipart form", nil)
		return
	}

	id := template.TemplateID(strings.TrimSpace(r.FormValue("template")))
	if id == "" {
		writeErr(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "template is required", map[string]any{"field": "template"})
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		writeErr(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "name is required", map[string]any{"field": "name"})
		return
	}

	cfg, err := s.store.Load(id)
	if err != nil {
		status, code := errorStatus(err)
		writeErr(w, r, status, code, err.Error(), map[string]any{"field": "template"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeErr(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "image is required", map[string]any{"field": "image"})
		return
	}
	defer file.Close()

	uploadDir, err := os.MkdirTemp(s.settings.TempDir, "upload_")
	if err != nil {
		log.Error().Err(err).Msg("create upload dir")
		writeErr(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "could not store upload", nil)
		return
	}
	defer os.RemoveAll(uploadDir)

	imagePath, err := saveUpload(file, uploadDir, header.Filename)
	if err != nil {
		log.Error().Err(err).Msg("store upload")
		writeErr(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "could not store upload", nil)
		return
	}

	start := s.now()
	renderID := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	output := filepath.Join(s.settings.OutputDir, processor.OutputName(name, start, renderID))

	renderInFlight.Inc()
	s.renderMu.Lock()
	_, err = s.renderer.Render(processor.RenderRequest{
		Template:     cfg,
		ImagePath:    imagePath,
		OutputPath:   output,
		CustomerName: name,
	})
	s.renderMu.Unlock()
	renderInFlight.Dec()

	if err != nil {
		observeRender("error", s.now().Sub(start))
		status, code := errorStatus(err)
		details := map[string]any{"template": id}
		var re *types.RenderError
		if errors.As(err, &re) {
			details["stage"] = re.Stage
		}
		log.Error().Err(err).Str("template", string(id)).Msg("render failed")
		writeErr(w, r, status, code, err.Error(), details)
		return
	}

	observeRender("ok", s.now().Sub(start))
	log.Info().Str("template", string(id)).Str("output", output).Msg("render complete")
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     reqID,
		"output": filepath.Base(output),
	})
}

// GetRender streams a finished render from the output directory.
func (s *Server) GetRender(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".mp4" {
		writeErr(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid file name", nil)
		return
	}

	path := filepath.Join(s.settings.OutputDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeErr(w, r, http.StatusNotFound, "NOT_FOUND", "render not found", map[string]any{"file": name})
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

func saveUpload(src io.Reader, dir, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(dir, "customer"+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", errors.WithStack(err)
	}
	return path, errors.WithStack(dst.Close())
}
