package domain

// Role enumerates the caller roles known to the service.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleTechnician Role = "TECHNICIAN"
	RoleAdmin      Role = "ADMIN"
)

// Actor identifies an authenticated caller performing a request mutation.
// Identity is established by the external identity provider; this service
// only consumes the verified claims.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsTechnician reports whether the actor carries the technician role.
func (a Actor) IsTechnician() bool {
	return a.Role == RoleTechnician
}
