package models

import "time"

// Operation names an entry kind in the operation log.
type Operation string

const (
	OperationCreateIdentity       Operation = "CREATE_IDENTITY"
	OperationDeleteIdentity       Operation = "DELETE_IDENTITY"
	OperationDeleteAllIdentities  Operation = "DELETE_ALL_IDENTITIES"
	OperationJoinGroup            Operation = "JOIN_GROUP"
	OperationCheckGroupMembership Operation = "CHECK_GROUP_MEMBERSHIP"
	OperationGroupMerkleProof     Operation = "GENERATE_GROUP_MERKLE_PROOF"
	OperationZkProof              Operation = "GENERATE_ZK_PROOF"
	OperationRequestRejected      Operation = "REQUEST_REJECTED"
	OperationRequestDiscarded     Operation = "REQUEST_DISCARDED"
)

// Outcome values recorded with each entry.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeDropped  = "discarded"
)

// OperationLogEntry is one append-only record of a completed operation.
// It is consulted for auditing and settings, never for correctness.
type OperationLogEntry struct {
	ID        string    `json:"id" db:"id"`
	Operation Operation `json:"operation" db:"operation"`
	Identity  string    `json:"identity,omitempty" db:"identity"`
	Origin    string    `json:"origin,omitempty" db:"origin"`
	Outcome   string    `json:"outcome" db:"outcome"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// HistorySettings controls whether operations are recorded.
type HistorySettings struct {
	IsEnabled bool `json:"isEnabled" db:"is_enabled"`
}
