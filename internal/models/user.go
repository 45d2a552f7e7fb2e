package models

import "sort"

// Role names accepted by the user administration screens
const (
	RoleSuperAdmin  = "SUPER_ADMIN"
	RoleTenantAdmin = "TENANT_ADMIN"
	RoleInstructor  = "INSTRUCTOR"
	RoleStudent     = "STUDENT"
)

// ValidRoles defines allowed user roles
var ValidRoles = map[string]bool{
	RoleSuperAdmin:  true,
	RoleTenantAdmin: true,
	RoleInstructor:  true,
	RoleStudent:     true,
}

// ValidCourseLevels defines allowed course difficulty levels
var ValidCourseLevels = map[string]bool{
	"BEGINNER":     true,
	"INTERMEDIATE": true,
	"ADVANCED":     true,
}

// ValidAssessmentTypes defines allowed assessment kinds
var ValidAssessmentTypes = map[string]bool{
	"QUIZ":       true,
	"EXAM":       true,
	"ASSIGNMENT": true,
}

// Keys returns the keys of an enum map in sorted order
func Keys[K ~string](m map[K]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// Headers set by the identity gateway and by clients
const (
	// HeaderUserID carries the authenticated user's UUID
	HeaderUserID = "X-User-ID"
	// HeaderConfirmDelete must be "true" on comment deletes
	HeaderConfirmDelete = "X-Confirm-Delete"
)
