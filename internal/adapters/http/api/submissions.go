package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/okian/ecotogether/internal/domain/model"
	"github.com/okian/ecotogether/pkg/logger"
)

const (
	defaultMaxUploadBytes = 64 << 20
	multipartMemory       = 8 << 20
)

// SubmissionsHandler handles the evaluate and confirm cycle.
type SubmissionsHandler struct {
	deps           Dependencies
	maxUploadBytes int64
	log            logger.Logger
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps Dependencies, maxUploadBytes int64, log logger.Logger) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps, maxUploadBytes: maxUploadBytes, log: log}
}

type submissionForm struct {
	Username string `validate:"required,max=64"`
}

type confirmRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

// HandleEvaluate handles POST /submissions.
func (h *SubmissionsHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate_submission"

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, WrapKind(op, ErrTooLarge, fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit)))
			return
		}
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form := submissionForm{Username: r.FormValue("username")}
	if err := validateStruct(form); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	photo, err := readPart(r, "photo")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	video, err := readPart(r, "video")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	ev, err := h.deps.Evaluate(r.Context(), model.Submission{
		Username: form.Username,
		Photo:    photo,
		Video:    video,
	})
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// readPart returns the named file part, or nil when it was not sent.
func readPart(r *http.Request, name string) ([]byte, error) {
	f, _, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer func(f multipart.File) { _ = f.Close() }(f)

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// HandleConfirm handles POST /submissions/{id}/confirm.
func (h *SubmissionsHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	const op = "api.confirm_submission"

	id := r.PathValue("id")
	if id == "" {
		writeError(w, NewKind(op, ErrNotFound))
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	c, err := h.deps.Confirm(r.Context(), id, req.Reason)
	if err != nil {
		err = Wrap(op, err)
		if status, _ := statusFor(err); status >= http.StatusInternalServerError {
			h.log.Error(r.Context(), "confirm failed", logger.String("error", describe(err)))
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
