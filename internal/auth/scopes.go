package auth

// Scopes guarding the IPMT API.
const (
	ScopeRead  = "ipmt:read"
	ScopeWrite = "ipmt:write"
)

// RoleAdmin is the role that bypasses scope checks.
const RoleAdmin = "admin"
