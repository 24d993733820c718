package models

// Role is a participant's part in call setup.
type Role string

const (
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)

// RoleFor decides the role of local in a call with peer. The lexicographically
// smaller identity always calls, so both ends agree without a round-trip and
// never send competing offers.
func RoleFor(local, peer string) Role {
	if local < peer {
		return RoleCaller
	}
	return RoleCallee
}
