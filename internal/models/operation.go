package models

// OperationType names an RPC method accepted by the transport layer.
type OperationType string

const (
	CreateIdentityReq           OperationType = "CREATE_IDENTITY_REQ"
	CreateIdentity              OperationType = "CREATE_IDENTITY"
	SetActiveIdentity           OperationType = "SET_ACTIVE_IDENTITY"
	SetIdentityName             OperationType = "SET_IDENTITY_NAME"
	DeleteIdentity              OperationType = "DELETE_IDENTITY"
	DeleteAllIdentities         OperationType = "DELETE_ALL_IDENTITIES"
	GetIdentities               OperationType = "GET_IDENTITIES"
	GetConnectedIdentity        OperationType = "GET_CONNECTED_IDENTITY"
	JoinGroupReq                OperationType = "JOIN_GROUP_REQ"
	JoinGroup                   OperationType = "JOIN_GROUP"
	GenerateGroupMerkleProofReq OperationType = "GENERATE_GROUP_MERKLE_PROOF_REQ"
	GenerateGroupMerkleProof    OperationType = "GENERATE_GROUP_MERKLE_PROOF"
	CheckGroupMembership        OperationType = "CHECK_GROUP_MEMBERSHIP"
	GenerateZkProofReq          OperationType = "GENERATE_ZK_PROOF_REQ"
	GenerateZkProof             OperationType = "GENERATE_ZK_PROOF"
	GetHistory                  OperationType = "GET_HISTORY"
	EnableHistory               OperationType = "ENABLE_HISTORY"
	ClearHistory                OperationType = "CLEAR_HISTORY"
)

// RequestType is the closed set of operations that require user approval.
type RequestType string

const (
	RequestCreateIdentity           RequestType = "CREATE_IDENTITY"
	RequestJoinGroup                RequestType = "JOIN_GROUP"
	RequestGenerateGroupMerkleProof RequestType = "GENERATE_GROUP_MERKLE_PROOF"
	RequestCheckGroupMembership     RequestType = "CHECK_GROUP_MEMBERSHIP"
	RequestGenerateZkProof          RequestType = "GENERATE_ZK_PROOF"
)

// RequestTypes lists every RequestType. Dispatchers are tested against it.
func RequestTypes() []RequestType {
	return []RequestType{
		RequestCreateIdentity,
		RequestJoinGroup,
		RequestGenerateGroupMerkleProof,
		RequestCheckGroupMembership,
		RequestGenerateZkProof,
	}
}

// Valid reports whether t is a member of the closed set.
func (t RequestType) Valid() bool {
	for _, known := range RequestTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// PublicRequestType returns the approval-gated request type behind a public
// RPC method. ok is false for methods only trusted contexts may call.
func PublicRequestType(op OperationType) (RequestType, bool) {
	switch op {
	case CreateIdentityReq:
		return RequestCreateIdentity, true
	case JoinGroupReq:
		return RequestJoinGroup, true
	case GenerateGroupMerkleProofReq:
		return RequestGenerateGroupMerkleProof, true
	case CheckGroupMembership:
		return RequestCheckGroupMembership, true
	case GenerateZkProofReq:
		return RequestGenerateZkProof, true
	default:
		return "", false
	}
}
