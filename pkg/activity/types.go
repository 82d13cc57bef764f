package activity

import (
	"encoding/json"
	"time"
)

// Action is the typed action an activity entry documents.
type Action string

const (
	ActionCreate           Action = "CREATE"
	ActionUpdate           Action = "UPDATE"
	ActionDelete           Action = "DELETE"
	ActionArchive          Action = "ARCHIVE"
	ActionPublish          Action = "PUBLISH"
	ActionRevert           Action = "REVERT"
	ActionUpload           Action = "UPLOAD"
	ActionTagAdd           Action = "TAG_ADD"
	ActionTagRemove        Action = "TAG_REMOVE"
	ActionPermissionChange Action = "PERMISSION_CHANGE"
	ActionSettingsUpdate   Action = "SETTINGS_UPDATE"
)

// Entry is a single append-only activity record. Entries are never updated
// or deleted once written, except by retention cleanup.
type Entry struct {
	ID        int64                  `json:"id"`
	Action    Action                 `json:"action"`
	ActorID   int64                  `json:"actor_id"`
	PageID    *int64                 `json:"page_id,omitempty"`
	VersionID *int64                 `json:"version_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ToJSON serializes the entry.
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Filter selects activity entries for listing. Zero values mean "any".
type Filter struct {
	PageID  *int64
	ActorID *int64
	Action  Action
	Limit   int
	Offset  int
}
