package wiki

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ridgeline/intranet/pkg/activity"
)

// AddAttachment records an uploaded attachment. The object itself must
// already be in blob storage under objectKey; this only writes the
// database row and the UPLOAD activity entry.
func (s *Store) AddAttachment(ctx context.Context, pageID int64, fileName, objectKey string, size int64, actor *User) (*Attachment, error) {
	if fileName == "" {
		return nil, validationf("file name is required")
	}

	if _, err := s.getPageRow(ctx, "id = $1", pageID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	att := &Attachment{
		PageID:    pageID,
		FileName:  fileName,
		ObjectKey: objectKey,
		Size:      size,
		CreatedAt: time.Now(),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO attachments (page_id, file_name, object_key, size, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, pageID, fileName, objectKey, size, att.CreatedAt).Scan(&att.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert attachment: %w", err)
	}

	if err := s.recorder.Record(ctx, tx, &activity.Entry{
		Action:  activity.ActionUpload,
		ActorID: actor.ID,
		PageID:  &pageID,
		Data: map[string]interface{}{
			"file_name": fileName,
			"size":      size,
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit attachment: %w", err)
	}

	return att, nil
}

// ListAttachments returns the attachments of a page, newest first.
func (s *Store) ListAttachments(ctx context.Context, pageID int64) ([]*Attachment, error) {
	if _, err := s.getPageRow(ctx, "id = $1", pageID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, file_name, object_key, size, created_at
		FROM attachments
		WHERE page_id = $1
		ORDER BY created_at DESC, id DESC
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.PageID, &a.FileName, &a.ObjectKey, &a.Size, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, &a)
	}
	return attachments, rows.Err()
}

// GetAttachment returns one attachment of a page.
func (s *Store) GetAttachment(ctx context.Context, pageID, attachmentID int64) (*Attachment, error) {
	var a Attachment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, page_id, file_name, object_key, size, created_at
		FROM attachments
		WHERE id = $1 AND page_id = $2
	`, attachmentID, pageID).Scan(&a.ID, &a.PageID, &a.FileName, &a.ObjectKey, &a.Size, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, notFoundf("attachment %d of page %d", attachmentID, pageID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return &a, nil
}
