package models

// ✅ Pairing Statuses
const (
	StatusPending = "pending"
	StatusMatched = "matched"
)

// ✅ Pairing states reported to polling clients
const (
	StateUnpaired = "unpaired"
	StatePending  = "pending"
	StateMatched  = "matched"
)

// ✅ Roles inside a matched pair. The side whose matching attempt found the
// peer is RoleA, the discovered candidate is RoleB.
const (
	RoleA = "A"
	RoleB = "B"
)
