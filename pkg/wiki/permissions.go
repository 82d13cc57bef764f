package wiki

// CanAccess decides whether user may act on page at the requested level.
// It is a pure function over an already-fetched page; callers are
// responsible for loading page.Permissions and for returning NOT FOUND
// before invoking it.
//
// Resolution order (first matching rule wins):
//
//  1. ADMIN role: allow everything.
//  2. First explicit grant matching the user's id or role: the decision is
//     that single row's boolean for the requested level, even when it
//     denies. Later rules are not consulted and grants are not OR-ed
//     across rows.
//  3. Page creator: allow everything.
//  4. PUBLISHED page: allow READ only.
//  5. Deny.
func CanAccess(user *User, page *Page, level AccessLevel) bool {
	if user == nil || page == nil {
		return false
	}

	if user.Role == RoleAdmin {
		return true
	}

	for _, perm := range page.Permissions {
		if matchesGrant(perm, user) {
			return perm.Allows(level)
		}
	}

	if page.CreatedByID == user.ID {
		return true
	}

	if page.Status == StatusPublished {
		return level == AccessRead
	}

	return false
}

func matchesGrant(perm PagePermission, user *User) bool {
	if perm.UserID != nil && *perm.UserID == user.ID {
		return true
	}
	if perm.Role != nil && *perm.Role == user.Role {
		return true
	}
	return false
}
