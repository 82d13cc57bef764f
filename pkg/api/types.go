package api

import (
	"github.com/ridgeline/intranet/pkg/wiki"
)

// createPageRequest is the body of POST /api/v1/pages.
type createPageRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Markdown string   `json:"markdown"`
	ParentID *int64   `json:"parent_id,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Status   string   `json:"status,omitempty"`
}

// updatePageRequest is the body of PATCH /api/v1/pages/{id}. Absent fields
// are left untouched.
type updatePageRequest struct {
	Title      *string   `json:"title,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Markdown   *string   `json:"markdown,omitempty"`
	Status     *string   `json:"status,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	ChangeNote string    `json:"change_note,omitempty"`
	MinorEdit  bool      `json:"minor_edit,omitempty"`
}

// setStatusRequest is the body of PUT /api/v1/pages/{id}/status.
type setStatusRequest struct {
	Status string `json:"status"`
}

// revertRequest is the body of POST /api/v1/pages/{id}/revert.
type revertRequest struct {
	VersionID  int64  `json:"version_id"`
	ChangeNote string `json:"change_note,omitempty"`
}

// setPermissionRequest is the body of PUT /api/v1/pages/{id}/permissions.
// Exactly one of user_id and role must be set.
type setPermissionRequest struct {
	UserID   *int64  `json:"user_id,omitempty"`
	Role     *string `json:"role,omitempty"`
	CanRead  bool    `json:"can_read"`
	CanWrite bool    `json:"can_write"`
	CanAdmin bool    `json:"can_admin"`
}

// pageListResponse is the body of GET /api/v1/pages.
type pageListResponse struct {
	Pages  []*wiki.Page `json:"pages"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// deleteResponse is the body of DELETE /api/v1/pages/{id}.
type deleteResponse struct {
	Archived bool `json:"archived,omitempty"`
	Deleted  bool `json:"deleted,omitempty"`
}
