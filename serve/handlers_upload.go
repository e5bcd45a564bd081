package serve

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banklens/banklens"
)

// maxUploadBytes caps each uploaded PDF at 25 MB.
const maxUploadBytes = 25 << 20

// handleUpload accepts one or more PDFs under the "files" multipart field,
// saves them to the inbox, and queues the statement for parsing.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded", `use multipart field "files"`)
		return
	}

	for _, fh := range files {
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
			writeError(w, http.StatusBadRequest, "unsupported file type",
				fmt.Sprintf("%s: only PDF files are accepted", fh.Filename))
			return
		}
		if fh.Size > maxUploadBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large",
				fmt.Sprintf("%s exceeds the 25 MB limit", fh.Filename))
			return
		}
	}

	id := uuid.NewString()
	dir := filepath.Join(s.cfg.InboxDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "save upload", err.Error())
		return
	}

	paths := make([]string, 0, len(files))
	for _, fh := range files {
		dst := filepath.Join(dir, filepath.Base(fh.Filename))
		if err := saveUploadedFile(fh, dst); err != nil {
			os.RemoveAll(dir)
			writeError(w, http.StatusInternalServerError, "save upload", err.Error())
			return
		}
		paths = append(paths, dst)
	}

	rec := StatementRecord{
		ID:        id,
		Status:    banklens.StatusQueued,
		Files:     paths,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertStatement(rec); err != nil {
		os.RemoveAll(dir)
		writeError(w, http.StatusInternalServerError, "persist statement", err.Error())
		return
	}

	now := time.Now()
	s.broker.Publish(BrokerEvent{Type: "statement.queued", StatementID: id, Timestamp: now})
	if err := s.store.InsertEvent(StoreEvent{Type: "statement.queued", StatementID: id, Timestamp: now}); err != nil {
		slog.Warn("event insert failed", "id", id, "error", err)
	}

	if err := s.pool.Enqueue(id); err != nil {
		s.store.UpdateStatementStatus(id, banklens.StatusFailed, err.Error())
		writeError(w, http.StatusServiceUnavailable, "queue statement", err.Error())
		return
	}

	slog.Info("statement queued", "id", id, "files", len(paths))
	writeJSON(w, http.StatusAccepted, UploadResponse{
		ID:     id,
		Status: banklens.StatusQueued,
		Files:  len(paths),
	})
}

func saveUploadedFile(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}
