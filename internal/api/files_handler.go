package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/examhive/examhive-api/internal/api/shared"
	"github.com/examhive/examhive-api/internal/artifact"
)

// FilesHandler serves the admin artifact browser: listing generated
// files and streaming individual downloads.
type FilesHandler struct {
	store artifact.Store
}

// NewFilesHandler creates a FilesHandler.
func NewFilesHandler(store artifact.Store) *FilesHandler {
	return &FilesHandler{store: store}
}

// ListFiles handles GET /generated-files requests. The listing is a
// snapshot; files may appear or disappear between calls.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	infos, err := h.store.List(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to list generated files", err)
		return
	}

	resp := FileListResponse{Files: make([]FileInfoResponse, 0, len(infos))}
	for _, info := range infos {
		resp.Files = append(resp.Files, FileInfoResponse{
			Filename:  info.Filename,
			SizeBytes: info.SizeBytes,
			CreatedAt: info.CreatedAt,
		})
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// DownloadFile handles GET /download/{filename} requests, streaming the
// artifact as an attachment.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	reader, info, err := h.store.Get(r.Context(), filename)
	if err != nil {
		switch {
		case errors.Is(err, artifact.ErrArtifactNotFound):
			shared.RespondWithError(w, r, http.StatusNotFound, "File not found")
		case errors.Is(err, artifact.ErrInvalidFilename):
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid filename")
		default:
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"Failed to open file", err)
		}
		return
	}
	defer func() {
		if err := reader.Close(); err != nil {
			slog.Warn("failed to close artifact reader", "filename", filename, "error", err)
		}
	}()

	w.Header().Set("Content-Type", contentTypeFor(filename))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.FormatInt(info.SizeBytes, 10))

	if _, err := io.Copy(w, reader); err != nil {
		// Headers are already out; all we can do is log.
		slog.Warn("failed to stream artifact", "filename", filename, "error", err)
	}
}

func contentTypeFor(filename string) string {
	switch filepath.Ext(filename) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
