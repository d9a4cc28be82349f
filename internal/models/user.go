package models

// UserRole represents the roles supplied by the identity provider.
type UserRole string

const (
	RoleAdmin          UserRole = "ADMIN"
	RoleTeacher        UserRole = "TEACHER"
	RoleStudent        UserRole = "STUDENT"
	RoleSeatingManager UserRole = "SEATING_MANAGER"
)

// Valid reports whether the role is one the API recognises.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleSeatingManager:
		return true
	}
	return false
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID       string
	Role     UserRole
	Semester int
}

// Is reports whether the actor holds any of roles.
func (a Actor) Is(roles ...UserRole) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
