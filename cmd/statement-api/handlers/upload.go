package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/statement-ai/converter/internal/convert"
	"github.com/statement-ai/converter/internal/observability"
)

// Scheduler accepts an upload for background conversion.
type Scheduler interface {
	Start(job convert.Job) string
}

// UploadHandler accepts statement uploads and schedules conversions.
type UploadHandler struct {
	logger    *observability.Logger
	scheduler Scheduler
	maxBytes  int64
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(logger *observability.Logger, scheduler Scheduler, maxBytes int64) *UploadHandler {
	return &UploadHandler{
		logger:    logger,
		scheduler: scheduler,
		maxBytes:  maxBytes,
	}
}

// Upload handles POST /api/upload. The statement arrives either as a
// multipart "file" part or as a base64 "file_data" form field. The response
// returns immediately with the file ID; progress is streamed separately.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithContext(r.Context())

	// Leave headroom over the limit (base64 inflation, multipart framing) so
	// oversized uploads are answered with 413 instead of a parse error.
	bodyLimit := h.maxBytes*2 + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)

	// The statement arrives either as multipart or as a urlencoded form with
	// a base64 field; only a malformed multipart body is rejected here.
	if err := r.ParseMultipartForm(bodyLimit); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "could not parse upload form", err.Error())
		return
	}

	data, filename, err := h.readUpload(r)
	if err != nil {
		status := http.StatusBadRequest
		if err == errUploadTooLarge {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err.Error(), "")
		return
	}

	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF files are supported", "")
		return
	}

	useAI := parseBool(r.FormValue("use_ai"))
	fileID := uuid.New().String()
	session := sessionID(r)

	processingType := h.scheduler.Start(convert.Job{
		FileID:       fileID,
		SessionID:    session,
		OriginalName: filename,
		UseAI:        useAI,
		Data:         data,
	})

	log.Info().
		Str("file_id", fileID).
		Str("session_id", session).
		Str("filename", filename).
		Str("processing_type", processingType).
		Int("size", len(data)).
		Msg("Upload accepted")

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":         fileID,
		"message":         "Conversion started",
		"processing_type": processingType,
	})
}

var errUploadTooLarge = errors.New("uploaded file exceeds the size limit")

// readUpload pulls the statement bytes out of the request, preferring the
// multipart file part over the base64 fallback field.
func (h *UploadHandler) readUpload(r *http.Request) ([]byte, string, error) {
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
		if err != nil {
			return nil, "", fmt.Errorf("could not read uploaded file")
		}
		if int64(len(data)) > h.maxBytes {
			return nil, "", errUploadTooLarge
		}

		filename := header.Filename
		if v := r.FormValue("original_filename"); v != "" {
			filename = v
		}
		return data, filename, nil
	}

	encoded := r.FormValue("file_data")
	if encoded == "" {
		return nil, "", fmt.Errorf("no file provided")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 file data")
	}
	if int64(len(data)) > h.maxBytes {
		return nil, "", errUploadTooLarge
	}

	filename := r.FormValue("original_filename")
	if filename == "" {
		filename = "document.pdf"
	}
	return data, filename, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
