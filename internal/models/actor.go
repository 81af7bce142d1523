package models

// Role names supplied by the external auth boundary.
const (
	RoleLab        = "lab"
	RoleWorker     = "worker"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// Actor identifies who performs an operation and from where. The engine treats
// ID and Role as opaque; IPAddress and UserAgent only flow into audit entries.
type Actor struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// System is the actor used for engine-internal work such as archiving.
var System = Actor{ID: "system", Role: RoleAdmin}
