package wiki

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ridgeline/intranet/pkg/activity"
	"github.com/ridgeline/intranet/pkg/observability"
)

// Store provides page and version persistence over PostgreSQL.
//
// Multi-row invariants (a page's current_version_id always referencing one
// of its own versions, page+initial-version created together) are enforced
// with database transactions. There is no optimistic concurrency on page
// edits: two concurrent editors both succeed and the last commit wins the
// current-version pointer; earlier versions stay in history.
type Store struct {
	db       *sql.DB
	recorder *activity.Recorder
	versions VersionCache
	logger   *observability.Logger
}

// NewStore creates a page store. recorder may not be nil; every mutating
// operation writes an activity entry through it.
func NewStore(db *sql.DB, recorder *activity.Recorder, logger *observability.Logger) *Store {
	return &Store{
		db:       db,
		recorder: recorder,
		logger:   logger,
	}
}

// SetVersionCache installs a snapshot cache consulted by GetVersion.
// Versions are immutable, so entries only need invalidation on hard delete.
func (s *Store) SetVersionCache(cache VersionCache) {
	s.versions = cache
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases the title and collapses every non-alphanumeric run
// into a single hyphen.
func slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugStrip.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "page"
	}
	return slug
}

// uniqueSlug appends an incrementing numeric suffix until the slug is free.
func (s *Store) uniqueSlug(ctx context.Context, q activity.Querier, base string) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		var exists bool
		err := q.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM pages WHERE slug = $1)", candidate,
		).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("failed to check slug %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// summarize returns the first 200 characters of the markdown rendering.
func summarize(markdown string) string {
	runes := []rune(markdown)
	if len(runes) <= 200 {
		return markdown
	}
	return string(runes[:200])
}

// CreatePage creates a page together with its initial version in one
// transaction, attaches tags, and records a CREATE activity entry.
func (s *Store) CreatePage(ctx context.Context, in CreatePageInput, actor *User) (*Page, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, validationf("title is required")
	}
	status := in.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.Valid() {
		return nil, validationf("invalid status %q", in.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	parentPath := ""
	if in.ParentID != nil {
		err := tx.QueryRowContext(ctx, "SELECT path FROM pages WHERE id = $1", *in.ParentID).Scan(&parentPath)
		if err == sql.ErrNoRows {
			return nil, notFoundf("parent page %d", *in.ParentID)
		} else if err != nil {
			return nil, fmt.Errorf("failed to load parent page: %w", err)
		}
	}

	slug, err := s.uniqueSlug(ctx, tx, slugify(in.Title))
	if err != nil {
		return nil, err
	}
	path := parentPath + "/" + slug

	now := time.Now()
	var pageID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO pages (title, slug, path, status, summary, view_count, parent_id, created_by_id, updated_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $7, $8, $8)
		RETURNING id
	`, in.Title, slug, path, status, summarize(in.Markdown), in.ParentID, actor.ID, now).Scan(&pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert page: %w", err)
	}

	var versionID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO page_versions (page_id, title, content, markdown, change_note, minor_edit, created_by_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, pageID, in.Title, in.Content, in.Markdown, "Initial version", false, actor.ID, now).Scan(&versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert initial version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE pages SET current_version_id = $1 WHERE id = $2", versionID, pageID,
	); err != nil {
		return nil, fmt.Errorf("failed to set current version: %w", err)
	}

	if err := s.replaceTags(ctx, tx, pageID, in.Tags); err != nil {
		return nil, err
	}

	if err := s.recorder.Record(ctx, tx, &activity.Entry{
		Action:    activity.ActionCreate,
		ActorID:   actor.ID,
		PageID:    &pageID,
		VersionID: &versionID,
		Data: map[string]interface{}{
			"title":  in.Title,
			"slug":   slug,
			"status": string(status),
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit page creation: %w", err)
	}

	return s.GetPage(ctx, pageID)
}

// GetPage returns a page with its permissions and tags preloaded.
func (s *Store) GetPage(ctx context.Context, id int64) (*Page, error) {
	page, err := s.getPageRow(ctx, "id = $1", id)
	if err != nil {
		return nil, err
	}
	if err := s.loadAssociations(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

// GetPageBySlug returns a page by its unique slug.
func (s *Store) GetPageBySlug(ctx context.Context, slug string) (*Page, error) {
	page, err := s.getPageRow(ctx, "slug = $1", slug)
	if err != nil {
		return nil, err
	}
	if err := s.loadAssociations(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

// ListPages returns pages ordered by most recently updated, plus the total
// count. Permissions are preloaded so callers can filter visibility.
func (s *Store) ListPages(ctx context.Context, limit, offset int) ([]*Page, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count pages: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, selectPageColumns+`
		FROM pages
		ORDER BY updated_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, 0, err
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating pages: %w", err)
	}

	for _, page := range pages {
		if err := s.loadAssociations(ctx, page); err != nil {
			return nil, 0, err
		}
	}

	return pages, total, nil
}

// UpdatePage applies a patch to a page. A new immutable version is cut only
// when content or markdown is supplied; mutable page fields are always
// updated. Tag replacement is full-replace. Records an UPDATE activity
// entry noting which fields changed and whether the edit was minor.
func (s *Store) UpdatePage(ctx context.Context, pageID int64, patch UpdatePageInput, actor *User) (*Page, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, validationf("invalid status %q", *patch.Status)
	}

	page, err := s.getPageRow(ctx, "id = $1", pageID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	var changed []string
	var newVersionID *int64

	title := page.Title
	if patch.Title != nil && *patch.Title != page.Title {
		title = *patch.Title
		changed = append(changed, "title")
	}

	if patch.Content != nil || patch.Markdown != nil {
		content, markdown := "", ""
		if page.CurrentVersionID != nil {
			err := tx.QueryRowContext(ctx,
				"SELECT content, markdown FROM page_versions WHERE id = $1", *page.CurrentVersionID,
			).Scan(&content, &markdown)
			if err != nil {
				return nil, fmt.Errorf("failed to load current version: %w", err)
			}
		}
		if patch.Content != nil {
			content = *patch.Content
			changed = append(changed, "content")
		}
		if patch.Markdown != nil {
			markdown = *patch.Markdown
			changed = append(changed, "markdown")
		}

		var versionID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO page_versions (page_id, title, content, markdown, change_note, minor_edit, created_by_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, pageID, title, content, markdown, patch.ChangeNote, patch.MinorEdit, actor.ID, now).Scan(&versionID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert version: %w", err)
		}
		newVersionID = &versionID
	}

	status := page.Status
	if patch.Status != nil && *patch.Status != page.Status {
		status = *patch.Status
		changed = append(changed, "status")
	}

	summary := page.Summary
	if patch.Markdown != nil {
		summary = summarize(*patch.Markdown)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE pages
		SET title = $1, status = $2, summary = $3, updated_by_id = $4, updated_at = $5
		WHERE id = $6
	`, title, status, summary, actor.ID, now, pageID); err != nil {
		return nil, fmt.Errorf("failed to update page: %w", err)
	}

	if newVersionID != nil {
		if _, err := tx.ExecContext(ctx,
			"UPDATE pages SET current_version_id = $1 WHERE id = $2", *newVersionID, pageID,
		); err != nil {
			return nil, fmt.Errorf("failed to repoint current version: %w", err)
		}
	}

	if patch.Tags != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM page_tags WHERE page_id = $1", pageID); err != nil {
			return nil, fmt.Errorf("failed to clear tags: %w", err)
		}
		if err := s.replaceTags(ctx, tx, pageID, *patch.Tags); err != nil {
			return nil, err
		}
		changed = append(changed, "tags")
	}

	if err := s.recorder.Record(ctx, tx, &activity.Entry{
		Action:    activity.ActionUpdate,
		ActorID:   actor.ID,
		PageID:    &pageID,
		VersionID: newVersionID,
		Data: map[string]interface{}{
			"fields":     changed,
			"minor_edit": patch.MinorEdit,
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit page update: %w", err)
	}

	return s.GetPage(ctx, pageID)
}

// ListVersions returns all versions of a page, newest first.
func (s *Store) ListVersions(ctx context.Context, pageID int64) ([]*PageVersion, error) {
	if _, err := s.getPageRow(ctx, "id = $1", pageID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, title, content, markdown, change_note, minor_edit, created_by_id, created_at
		FROM page_versions
		WHERE page_id = $1
		ORDER BY created_at DESC, id DESC
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*PageVersion
	for rows.Next() {
		var v PageVersion
		if err := rows.Scan(&v.ID, &v.PageID, &v.Title, &v.Content, &v.Markdown, &v.ChangeNote, &v.MinorEdit, &v.CreatedByID, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// GetVersion returns one version of a page. A version id belonging to a
// different page is NOT FOUND, not a leak of the other page's content.
func (s *Store) GetVersion(ctx context.Context, pageID, versionID int64) (*PageVersion, error) {
	if s.versions != nil {
		if v, ok := s.versions.Get(ctx, versionID); ok {
			if v.PageID != pageID {
				return nil, notFoundf("version %d of page %d", versionID, pageID)
			}
			return v, nil
		}
	}

	var v PageVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, page_id, title, content, markdown, change_note, minor_edit, created_by_id, created_at
		FROM page_versions
		WHERE id = $1 AND page_id = $2
	`, versionID, pageID).Scan(&v.ID, &v.PageID, &v.Title, &v.Content, &v.Markdown, &v.ChangeNote, &v.MinorEdit, &v.CreatedByID, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, notFoundf("version %d of page %d", versionID, pageID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	if s.versions != nil {
		s.versions.Set(ctx, &v)
	}

	return &v, nil
}

// DiffVersions compares two versions of the same page.
func (s *Store) DiffVersions(ctx context.Context, pageID, fromID, toID int64) (*DiffResult, error) {
	from, err := s.GetVersion(ctx, pageID, fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.GetVersion(ctx, pageID, toID)
	if err != nil {
		return nil, err
	}
	return Diff(from, to), nil
}

// Revert makes an old snapshot current again by creating a new version
// copied from it; no existing version is mutated or deleted. The REVERT
// activity entry is best-effort: a logging failure never fails the revert.
func (s *Store) Revert(ctx context.Context, pageID, targetVersionID int64, note string, actor *User) (*RevertResult, error) {
	page, err := s.getPageRow(ctx, "id = $1", pageID)
	if err != nil {
		return nil, err
	}

	target, err := s.GetVersion(ctx, pageID, targetVersionID)
	if err != nil {
		return nil, err
	}

	if page.CurrentVersionID != nil && *page.CurrentVersionID == target.ID {
		return nil, conflictf("version %d is already current", target.ID)
	}

	if note == "" {
		note = fmt.Sprintf("Reverted to version from %s", target.CreatedAt.Format(time.RFC3339))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	var versionID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO page_versions (page_id, title, content, markdown, change_note, minor_edit, created_by_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, pageID, target.Title, target.Content, target.Markdown, note, false, actor.ID, now).Scan(&versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reverted version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE pages
		SET current_version_id = $1, title = $2, summary = $3, updated_by_id = $4, updated_at = $5
		WHERE id = $6
	`, versionID, target.Title, summarize(target.Markdown), actor.ID, now, pageID); err != nil {
		return nil, fmt.Errorf("failed to repoint current version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit revert: %w", err)
	}

	s.recorder.RecordBestEffort(ctx, &activity.Entry{
		Action:    activity.ActionRevert,
		ActorID:   actor.ID,
		PageID:    &pageID,
		VersionID: &versionID,
		Data: map[string]interface{}{
			"target_version_id": target.ID,
		},
	})

	updated, err := s.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	newVersion, err := s.GetVersion(ctx, pageID, versionID)
	if err != nil {
		return nil, err
	}

	return &RevertResult{Page: updated, NewVersion: newVersion}, nil
}

// SetStatus moves a page to a new lifecycle status. The state machine
// itself forbids nothing; only permission checks constrain callers.
func (s *Store) SetStatus(ctx context.Context, pageID int64, status PageStatus, actor *User) (*Page, error) {
	if !status.Valid() {
		return nil, validationf("invalid status %q", status)
	}

	page, err := s.getPageRow(ctx, "id = $1", pageID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE pages SET status = $1, updated_by_id = $2, updated_at = $3 WHERE id = $4
	`, status, actor.ID, time.Now(), pageID); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	action := activity.ActionUpdate
	switch status {
	case StatusArchived:
		action = activity.ActionArchive
	case StatusPublished:
		action = activity.ActionPublish
	}

	if err := s.recorder.Record(ctx, tx, &activity.Entry{
		Action:  action,
		ActorID: actor.ID,
		PageID:  &pageID,
		Data: map[string]interface{}{
			"from": string(page.Status),
			"to":   string(status),
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	return s.GetPage(ctx, pageID)
}

// Delete removes a page. Without force it archives (soft delete). With
// force it hard-deletes: admin only, rejected while children exist, the
// DELETE activity entry written before any row is removed, and dependent
// rows removed explicitly in foreign-key order. Returns the object keys of
// the page's attachments so the caller can clean up blob storage.
func (s *Store) Delete(ctx context.Context, pageID int64, force bool, actor *User) ([]string, error) {
	page, err := s.getPageRow(ctx, "id = $1", pageID)
	if err != nil {
		return nil, err
	}

	if !force {
		_, err := s.SetStatus(ctx, pageID, StatusArchived, actor)
		return nil, err
	}

	if !actor.IsAdmin() {
		return nil, accessDeniedf("hard delete requires admin role")
	}

	var children int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pages WHERE parent_id = $1", pageID,
	).Scan(&children); err != nil {
		return nil, fmt.Errorf("failed to count children: %w", err)
	}
	if children > 0 {
		return nil, conflictf("page %d has %d child pages", pageID, children)
	}

	blobKeys, err := s.attachmentKeys(ctx, pageID)
	if err != nil {
		return nil, err
	}

	versionIDs, err := s.versionIDs(ctx, pageID)
	if err != nil {
		return nil, err
	}

	// Logged before row removal so the audit trail survives a partial
	// failure. The page/version references null out when the rows go.
	if err := s.recorder.Record(ctx, s.db, &activity.Entry{
		Action:  activity.ActionDelete,
		ActorID: actor.ID,
		PageID:  &pageID,
		Data: map[string]interface{}{
			"title": page.Title,
			"slug":  page.Slug,
		},
	}); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	// Dependents first; current_version_id cleared before the versions go.
	steps := []struct {
		desc  string
		query string
	}{
		{"clear page_tags", "DELETE FROM page_tags WHERE page_id = $1"},
		{"clear attachments", "DELETE FROM attachments WHERE page_id = $1"},
		{"clear permissions", "DELETE FROM page_permissions WHERE page_id = $1"},
		{"clear current version", "UPDATE pages SET current_version_id = NULL WHERE id = $1"},
		{"delete versions", "DELETE FROM page_versions WHERE page_id = $1"},
		{"delete page", "DELETE FROM pages WHERE id = $1"},
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step.query, pageID); err != nil {
			return nil, fmt.Errorf("failed to %s: %w", step.desc, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit page deletion: %w", err)
	}

	if s.versions != nil {
		s.versions.Invalidate(ctx, versionIDs)
	}

	return blobKeys, nil
}

// Authorize fetches the page and checks the actor's access. Missing pages
// are NOT FOUND before any permission decision; existing-but-forbidden is
// ACCESS DENIED.
func (s *Store) Authorize(ctx context.Context, pageID int64, actor *User, level AccessLevel) (*Page, error) {
	page, err := s.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if !CanAccess(actor, page, level) {
		return nil, accessDeniedf("%s access to page %d", level, pageID)
	}
	return page, nil
}

// IncrementViewCount bumps a page's view counter.
func (s *Store) IncrementViewCount(ctx context.Context, pageID int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE pages SET view_count = view_count + 1 WHERE id = $1", pageID)
	if err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}
	return nil
}

// SetPermission creates or updates the explicit grant for one subject
// (user or role) on a page.
func (s *Store) SetPermission(ctx context.Context, pageID int64, grant PagePermission, actor *User) (*PagePermission, error) {
	if (grant.UserID == nil) == (grant.Role == nil) {
		return nil, validationf("exactly one of user_id and role must be set")
	}
	if grant.Role != nil && *grant.Role != RoleAdmin && *grant.Role != RoleStaff {
		return nil, validationf("invalid role %q", *grant.Role)
	}

	if _, err := s.getPageRow(ctx, "id = $1", pageID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	var lookupErr error
	if grant.UserID != nil {
		lookupErr = tx.QueryRowContext(ctx,
			"SELECT id FROM page_permissions WHERE page_id = $1 AND user_id = $2", pageID, *grant.UserID,
		).Scan(&existingID)
	} else {
		lookupErr = tx.QueryRowContext(ctx,
			"SELECT id FROM page_permissions WHERE page_id = $1 AND role = $2", pageID, string(*grant.Role),
		).Scan(&existingID)
	}

	switch lookupErr {
	case nil:
		if _, err := tx.ExecContext(ctx, `
			UPDATE page_permissions SET can_read = $1, can_write = $2, can_admin = $3 WHERE id = $4
		`, grant.CanRead, grant.CanWrite, grant.CanAdmin, existingID); err != nil {
			return nil, fmt.Errorf("failed to update permission: %w", err)
		}
		grant.ID = existingID
	case sql.ErrNoRows:
		var role *string
		if grant.Role != nil {
			r := string(*grant.Role)
			role = &r
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO page_permissions (page_id, user_id, role, can_read, can_write, can_admin, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, pageID, grant.UserID, role, grant.CanRead, grant.CanWrite, grant.CanAdmin, time.Now()).Scan(&grant.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert permission: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up permission: %w", lookupErr)
	}

	data := map[string]interface{}{
		"can_read":  grant.CanRead,
		"can_write": grant.CanWrite,
		"can_admin": grant.CanAdmin,
	}
	if grant.UserID != nil {
		data["user_id"] = *grant.UserID
	}
	if grant.Role != nil {
		data["role"] = string(*grant.Role)
	}

	if err := s.recorder.Record(ctx, tx, &activity.Entry{
		Action:  activity.ActionPermissionChange,
		ActorID: actor.ID,
		PageID:  &pageID,
		Data:    data,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit permission change: %w", err)
	}

	grant.PageID = pageID
	return &grant, nil
}

// ListPermissions returns the explicit grants on a page.
func (s *Store) ListPermissions(ctx context.Context, pageID int64) ([]PagePermission, error) {
	if _, err := s.getPageRow(ctx, "id = $1", pageID); err != nil {
		return nil, err
	}
	return s.loadPermissions(ctx, pageID)
}

// RemovePermission deletes one grant from a page.
func (s *Store) RemovePermission(ctx context.Context, pageID, permissionID int64, actor *User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"DELETE FROM page_permissions WHERE id = $1 AND page_id = $2", permissionID, pageID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return notFoundf("permission %d on page %d", permissionID, pageID)
	}

	if err := s.recorder.Record(ctx, tx, &activity.Entry{
		Action:  activity.ActionPermissionChange,
		ActorID: actor.ID,
		PageID:  &pageID,
		Data: map[string]interface{}{
			"removed":       true,
			"permission_id": permissionID,
		},
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit permission removal: %w", err)
	}
	return nil
}

const selectPageColumns = `
	SELECT id, title, slug, path, status, summary, view_count, current_version_id,
	       parent_id, created_by_id, updated_by_id, created_at, updated_at
`

// getPageRow fetches a bare page row without associations.
func (s *Store) getPageRow(ctx context.Context, where string, arg interface{}) (*Page, error) {
	row := s.db.QueryRowContext(ctx, selectPageColumns+" FROM pages WHERE "+where, arg)
	page, err := scanPage(row)
	if err == sql.ErrNoRows {
		return nil, notFoundf("page %v", arg)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return page, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPage(row rowScanner) (*Page, error) {
	var page Page
	var currentVersionID, parentID, updatedByID sql.NullInt64
	err := row.Scan(
		&page.ID, &page.Title, &page.Slug, &page.Path, &page.Status, &page.Summary,
		&page.ViewCount, &currentVersionID, &parentID, &page.CreatedByID, &updatedByID,
		&page.CreatedAt, &page.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if currentVersionID.Valid {
		v := currentVersionID.Int64
		page.CurrentVersionID = &v
	}
	if parentID.Valid {
		v := parentID.Int64
		page.ParentID = &v
	}
	if updatedByID.Valid {
		v := updatedByID.Int64
		page.UpdatedByID = &v
	}
	return &page, nil
}

func (s *Store) loadAssociations(ctx context.Context, page *Page) error {
	permissions, err := s.loadPermissions(ctx, page.ID)
	if err != nil {
		return err
	}
	page.Permissions = permissions

	tags, err := s.loadTags(ctx, page.ID)
	if err != nil {
		return err
	}
	page.Tags = tags
	return nil
}

func (s *Store) loadPermissions(ctx context.Context, pageID int64) ([]PagePermission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, user_id, role, can_read, can_write, can_admin
		FROM page_permissions
		WHERE page_id = $1
		ORDER BY id
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}
	defer rows.Close()

	var permissions []PagePermission
	for rows.Next() {
		var p PagePermission
		var userID sql.NullInt64
		var role sql.NullString
		if err := rows.Scan(&p.ID, &p.PageID, &userID, &role, &p.CanRead, &p.CanWrite, &p.CanAdmin); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		if userID.Valid {
			v := userID.Int64
			p.UserID = &v
		}
		if role.Valid {
			r := Role(role.String)
			p.Role = &r
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

func (s *Store) loadTags(ctx context.Context, pageID int64) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at
		FROM tags t
		JOIN page_tags pt ON pt.tag_id = t.id
		WHERE pt.page_id = $1
		ORDER BY t.name
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// replaceTags attaches the named tags to a page inside tx, creating any tag
// that does not exist yet.
func (s *Store) replaceTags(ctx context.Context, tx *sql.Tx, pageID int64, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		var tagID int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = $1", name).Scan(&tagID)
		if err == sql.ErrNoRows {
			err = tx.QueryRowContext(ctx,
				"INSERT INTO tags (name, created_at) VALUES ($1, $2) RETURNING id", name, time.Now(),
			).Scan(&tagID)
		}
		if err != nil {
			return fmt.Errorf("failed to get or create tag %q: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO page_tags (page_id, tag_id) VALUES ($1, $2)", pageID, tagID,
		); err != nil {
			return fmt.Errorf("failed to attach tag %q: %w", name, err)
		}
	}
	return nil
}

// attachmentKeys lists the blob object keys attached to a page.
func (s *Store) attachmentKeys(ctx context.Context, pageID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT object_key FROM attachments WHERE page_id = $1", pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachment keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan attachment key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Store) versionIDs(ctx context.Context, pageID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM page_versions WHERE page_id = $1", pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list version ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan version id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
