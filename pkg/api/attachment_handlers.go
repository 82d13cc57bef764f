package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/ridgeline/intranet/pkg/httputil"
	"github.com/ridgeline/intranet/pkg/wiki"
)

// maxAttachmentSize caps uploads at 32 MiB.
const maxAttachmentSize = 32 << 20

// uploadAttachment handles POST /api/v1/pages/{id}/attachments. The file is
// sent as multipart form data under the "file" field.
func (s *Server) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if s.blobs == nil {
		httputil.WriteErrorMessage(w, http.StatusNotImplemented, "blob storage is not configured")
		return
	}

	if _, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessWrite); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, fmt.Sprintf("invalid upload: %v", err))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectKey := fmt.Sprintf("pages/%d/%s/%s", pageID, uuid.NewString(), header.Filename)
	if err := s.blobs.Put(r.Context(), objectKey, file, contentType); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	attachment, err := s.store.AddAttachment(r.Context(), pageID, header.Filename, objectKey, header.Size, user)
	s.countOperation(r.Context(), "upload", err)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, attachment)
}

// listAttachments handles GET /api/v1/pages/{id}/attachments
func (s *Server) listAttachments(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessRead); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	attachments, err := s.store.ListAttachments(r.Context(), pageID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, attachments)
}

// downloadAttachment handles GET /api/v1/pages/{id}/attachments/{attachmentId}
func (s *Server) downloadAttachment(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	attachmentID, ok := httputil.ParsePathInt64OrError(w, r, "attachmentId")
	if !ok {
		return
	}

	if s.blobs == nil {
		httputil.WriteErrorMessage(w, http.StatusNotImplemented, "blob storage is not configured")
		return
	}

	if _, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessRead); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	attachment, err := s.store.GetAttachment(r.Context(), pageID, attachmentID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	body, err := s.blobs.Get(r.Context(), attachment.ObjectKey)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, body); err != nil {
		s.logger.WithError(err).Warn("attachment download interrupted")
	}
}
