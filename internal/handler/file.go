package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/auth"
	"github.com/sakif/travel-blog/internal/model"
)

// FileService is what FileHandler needs from the content service.
type FileService interface {
	UploadFile(ctx context.Context, ownerID, name string, data []byte) (*model.File, error)
	UploadImage(ctx context.Context, ownerID, name string, data []byte) (*model.File, error)
	DeleteFile(ctx context.Context, id, userID string) error
	ViewFile(ctx context.Context, id string) (*model.File, error)
	DownloadFile(ctx context.Context, id string) (*model.File, error)
}

// FileHandler serves uploads and the public and authenticated file paths.
type FileHandler struct {
	svc       FileService
	maxUpload int64
	logger    *slog.Logger
}

// NewFileHandler creates a FileHandler. Uploads larger than maxUpload bytes
// are rejected.
func NewFileHandler(svc FileService, maxUpload int64, logger *slog.Logger) *FileHandler {
	return &FileHandler{svc: svc, maxUpload: maxUpload, logger: logger}
}

// viewURL is the public path of a file. The editor embeds it in post HTML.
func viewURL(id string) string {
	return "/files/" + id + "/view"
}

type uploadResponse struct {
	*model.File
	URL string `json:"url"`
}

// readUpload extracts the "file" part of a multipart request.
func (h *FileHandler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	// Leave room for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, apperror.ValidationFailed("file", "file is too large")
		}
		return "", nil, apperror.ValidationFailed("file", "expected a multipart form with a file field")
	}
	defer r.MultipartForm.RemoveAll()

	part, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, apperror.ValidationFailed("file", "file is required")
	}
	defer part.Close()

	if header.Size > h.maxUpload {
		return "", nil, apperror.ValidationFailed("file", "file is too large")
	}
	data, err := io.ReadAll(part)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

// HandleUpload stores any file.
//
// HTTP: POST /api/files (RequireAuth), multipart field "file"
func (h *FileHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	name, data, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	f, err := h.svc.UploadFile(r.Context(), userID, name, data)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{File: f, URL: viewURL(f.ID)})
}

// HandleUploadImage is the rich-text editor's image upload callback. The
// editor expects {"location": url} and inserts an <img> pointing at it.
//
// HTTP: POST /api/uploads/image (RequireAuth), multipart field "file"
func (h *FileHandler) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	name, data, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	f, err := h.svc.UploadImage(r.Context(), userID, name, data)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"location": viewURL(f.ID)})
}

// HandleDelete removes a file the caller uploaded.
//
// HTTP: DELETE /api/files/{id} (RequireAuth)
func (h *FileHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.svc.DeleteFile(r.Context(), r.PathValue("id"), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleView serves a publicly readable file. Only images render inline;
// anything else is sent as a sandboxed attachment so uploaded HTML never
// runs on the site's origin.
//
// HTTP: GET /files/{id}/view
func (h *FileHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.ViewFile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	// File ids are never reused, so the bytes behind a URL never change.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if isInlineImage(f.MimeType) {
		h.serveFile(w, f, "inline")
		return
	}
	h.serveFile(w, f, "attachment")
}

// HandleDownload serves any file as an attachment.
//
// HTTP: GET /files/{id}/download (RequireAuth)
func (h *FileHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.DownloadFile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "private, no-store")
	h.serveFile(w, f, "attachment")
}

// isInlineImage reports whether a file may render in the page. SVG is excluded
// because it can carry script.
func isInlineImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") && !strings.HasPrefix(mimeType, "image/svg")
}

func (h *FileHandler) serveFile(w http.ResponseWriter, f *model.File, disposition string) {
	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": f.Name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "sandbox")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(f.Data); err != nil {
		h.logger.Warn("failed to write file", slog.String("fileID", f.ID), slog.String("error", err.Error()))
	}
}
