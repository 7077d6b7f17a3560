package types

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error kinds. Every failure returned by the renderer wraps exactly one of these.
var (
	ErrConfigNotFound       = errors.New("template config not found")
	ErrConfigParse          = errors.New("template config could not be parsed")
	ErrInvalidTemplate      = errors.New("template config is invalid")
	ErrMediaProbe           = errors.New("media probe failed")
	ErrInputNotFound        = errors.New("input not found")
	ErrRenderFailed         = errors.New("render failed")
	ErrIncompatibleSegments = errors.New("segments do not share codec parameters")
)

// maxDiagnostics bounds how much ffmpeg stderr is kept on a RenderError.
const maxDiagnostics = 4096

// RenderError is returned when an ffmpeg invocation exits non-zero.
type RenderError struct {
	Stage       string
	Diagnostics string
	Err         error
}

// NewRenderError keeps the tail of the process diagnostics.
func NewRenderError(stage, diagnostics string, err error) *RenderError {
	diagnostics = strings.TrimSpace(diagnostics)
	if len(diagnostics) > maxDiagnostics {
		diagnostics = "..." + diagnostics[len(diagnostics)-maxDiagnostics:]
	}
	return &RenderError{Stage: stage, Diagnostics: diagnostics, Err: err}
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("%s: %s stage", ErrRenderFailed, e.Stage)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Diagnostics != "" {
		msg += "\n" + e.Diagnostics
	}
	return msg
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrRenderFailed) match any RenderError.
func (e *RenderError) Is(target error) bool {
	return target == ErrRenderFailed
}
