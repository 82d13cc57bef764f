package wiki

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestCanAccess(t *testing.T) {
	admin := &User{ID: 1, Role: RoleAdmin}
	creator := &User{ID: 2, Role: RoleStaff}
	staff := &User{ID: 3, Role: RoleStaff}

	tests := []struct {
		name  string
		user  *User
		page  *Page
		level AccessLevel
		want  bool
	}{
		{
			name:  "nil user denied",
			user:  nil,
			page:  &Page{Status: StatusPublished},
			level: AccessRead,
			want:  false,
		},
		{
			name:  "admin bypasses everything",
			user:  admin,
			page:  &Page{Status: StatusDraft, CreatedByID: 99},
			level: AccessAdmin,
			want:  true,
		},
		{
			name:  "creator has full access to own draft",
			user:  creator,
			page:  &Page{Status: StatusDraft, CreatedByID: 2},
			level: AccessWrite,
			want:  true,
		},
		{
			name:  "published page readable by any staff",
			user:  staff,
			page:  &Page{Status: StatusPublished, CreatedByID: 2},
			level: AccessRead,
			want:  true,
		},
		{
			name:  "published page not writable without a grant",
			user:  staff,
			page:  &Page{Status: StatusPublished, CreatedByID: 2},
			level: AccessWrite,
			want:  false,
		},
		{
			name:  "draft invisible without a grant",
			user:  staff,
			page:  &Page{Status: StatusDraft, CreatedByID: 2},
			level: AccessRead,
			want:  false,
		},
		{
			name: "user grant allows write on draft",
			user: staff,
			page: &Page{
				Status:      StatusDraft,
				CreatedByID: 2,
				Permissions: []PagePermission{
					{UserID: ptr(int64(3)), CanRead: true, CanWrite: true},
				},
			},
			level: AccessWrite,
			want:  true,
		},
		{
			name: "matching grant without the level denies",
			user: staff,
			page: &Page{
				Status:      StatusPublished,
				CreatedByID: 2,
				Permissions: []PagePermission{
					{UserID: ptr(int64(3)), CanRead: false},
				},
			},
			level: AccessRead,
			want:  false,
		},
		{
			name: "first matching grant wins over a later broader one",
			user: staff,
			page: &Page{
				Status:      StatusPublished,
				CreatedByID: 2,
				Permissions: []PagePermission{
					{UserID: ptr(int64(3)), CanRead: false},
					{Role: ptr(RoleStaff), CanRead: true, CanWrite: true},
				},
			},
			level: AccessRead,
			want:  false,
		},
		{
			name: "role grant applies when no user grant matches",
			user: staff,
			page: &Page{
				Status:      StatusDraft,
				CreatedByID: 2,
				Permissions: []PagePermission{
					{UserID: ptr(int64(42)), CanRead: true},
					{Role: ptr(RoleStaff), CanRead: true},
				},
			},
			level: AccessRead,
			want:  true,
		},
		{
			name: "grant beats creator fallback",
			user: creator,
			page: &Page{
				Status:      StatusDraft,
				CreatedByID: 2,
				Permissions: []PagePermission{
					{UserID: ptr(int64(2)), CanRead: true, CanWrite: false},
				},
			},
			level: AccessWrite,
			want:  false,
		},
		{
			name: "grant beats published-read fallback",
			user: staff,
			page: &Page{
				Status:      StatusPublished,
				CreatedByID: 2,
				Permissions: []PagePermission{
					{Role: ptr(RoleStaff), CanRead: false},
				},
			},
			level: AccessRead,
			want:  false,
		},
		{
			name:  "archived page denied without a grant",
			user:  staff,
			page:  &Page{Status: StatusArchived, CreatedByID: 2},
			level: AccessRead,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(tt.user, tt.page, tt.level))
		})
	}
}
