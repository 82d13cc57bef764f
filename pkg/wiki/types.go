package wiki

import (
	"time"
)

// Role is the coarse permission axis carried by every user. It is resolved
// at sign-in from the configured admin email list and persisted.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleStaff Role = "STAFF"
)

// PageStatus is the lifecycle status of a page. Any status may transition to
// any other; only permission checks constrain the transition.
type PageStatus string

const (
	StatusDraft     PageStatus = "DRAFT"
	StatusPublished PageStatus = "PUBLISHED"
	StatusArchived  PageStatus = "ARCHIVED"
)

// Valid reports whether s is a known page status.
func (s PageStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// AccessLevel is the level of access a caller requests on a page.
type AccessLevel string

const (
	AccessRead  AccessLevel = "READ"
	AccessWrite AccessLevel = "WRITE"
	AccessAdmin AccessLevel = "ADMIN"
)

// User is the resolved identity the core operates on. Authentication itself
// happens upstream; the core only consumes id and role.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the user carries the ADMIN role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Page is a wiki document. Content lives in PageVersion rows; the page row
// carries denormalized title/summary from the current version.
type Page struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Slug             string     `json:"slug"`
	Path             string     `json:"path"`
	Status           PageStatus `json:"status"`
	Summary          string     `json:"summary,omitempty"`
	ViewCount        int64      `json:"view_count"`
	CurrentVersionID *int64     `json:"current_version_id,omitempty"`
	ParentID         *int64     `json:"parent_id,omitempty"`
	CreatedByID      int64      `json:"created_by_id"`
	UpdatedByID      *int64     `json:"updated_by_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Preloaded associations. Permissions must be populated before the page
	// is handed to CanAccess.
	Tags        []Tag            `json:"tags,omitempty"`
	Permissions []PagePermission `json:"permissions,omitempty"`
}

// PageVersion is an immutable content snapshot of a page. Once written, the
// content fields never change; edits create new rows.
type PageVersion struct {
	ID          int64     `json:"id"`
	PageID      int64     `json:"page_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Markdown    string    `json:"markdown"`
	ChangeNote  string    `json:"change_note,omitempty"`
	MinorEdit   bool      `json:"minor_edit"`
	CreatedByID int64     `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// PagePermission is an explicit grant scoped to one page, held by either a
// specific user or a role. Exactly one of UserID and Role is set.
type PagePermission struct {
	ID       int64  `json:"id"`
	PageID   int64  `json:"page_id"`
	UserID   *int64 `json:"user_id,omitempty"`
	Role     *Role  `json:"role,omitempty"`
	CanRead  bool   `json:"can_read"`
	CanWrite bool   `json:"can_write"`
	CanAdmin bool   `json:"can_admin"`
}

// Allows reports whether this grant permits the given level.
func (p PagePermission) Allows(level AccessLevel) bool {
	switch level {
	case AccessRead:
		return p.CanRead
	case AccessWrite:
		return p.CanWrite
	case AccessAdmin:
		return p.CanAdmin
	}
	return false
}

// Tag is a label attached to pages by name.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment is a blob reference belonging to a page. The object itself
// lives in external storage under ObjectKey.
type Attachment struct {
	ID        int64     `json:"id"`
	PageID    int64     `json:"page_id"`
	FileName  string    `json:"file_name"`
	ObjectKey string    `json:"object_key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatePageInput carries everything needed to create a page with its
// initial version.
type CreatePageInput struct {
	Title    string
	Content  string
	Markdown string
	ParentID *int64
	Tags     []string
	Status   PageStatus
}

// UpdatePageInput is a patch against an existing page. Nil pointer fields
// are left untouched; a new version is only cut when Content or Markdown is
// supplied.
type UpdatePageInput struct {
	Title      *string
	Content    *string
	Markdown   *string
	Status     *PageStatus
	Tags       *[]string
	ChangeNote string
	MinorEdit  bool
}

// RevertResult is returned by Store.Revert.
type RevertResult struct {
	Page       *Page        `json:"page"`
	NewVersion *PageVersion `json:"new_version"`
}
