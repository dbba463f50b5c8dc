package models

// GroupMembershipClaim shapes a single join, check or proof call against the
// group registry. It is never persisted.
type GroupMembershipClaim struct {
	GroupID            string `json:"groupId"`
	IdentityCommitment string `json:"identityCommitment"`
	APIKey             string `json:"apiKey,omitempty"`
}

// JoinGroupArgs is the payload of JOIN_GROUP.
type JoinGroupArgs struct {
	GroupID string `json:"groupId"`
	APIKey  string `json:"apiKey,omitempty"`
}

// GroupArgs is the payload of GENERATE_GROUP_MERKLE_PROOF and CHECK_GROUP_MEMBERSHIP.
type GroupArgs struct {
	GroupID string `json:"groupId"`
}

// MerkleProof is an inclusion proof of a leaf in a group's membership tree.
type MerkleProof struct {
	Root        string   `json:"root"`
	Leaf        string   `json:"leaf"`
	Siblings    []string `json:"siblings"`
	PathIndices []int    `json:"pathIndices"`
}
