package models

// IdentityStrategy names how an identity secret was derived.
type IdentityStrategy string

const (
	// StrategyRandom derives secrets from a CSPRNG.
	StrategyRandom IdentityStrategy = "random"
	// StrategyInterrep derives secrets deterministically from a signed
	// message bound to a web2 provider and a nonce.
	StrategyInterrep IdentityStrategy = "interrep"
)

// Web2 providers accepted by the interrep strategy.
var Web2Providers = []string{"twitter", "reddit", "github"}

// IdentityMetadata is the public, mutable part of an identity.
type IdentityMetadata struct {
	Name             string           `json:"name"`
	IdentityStrategy IdentityStrategy `json:"identityStrategy"`
	Web2Provider     string           `json:"web2Provider,omitempty"`
	Account          string           `json:"account,omitempty"`
}

// Identity is what leaves the vault: the commitment and its metadata.
// Secret material never appears on this type.
type Identity struct {
	Commitment string           `json:"commitment"`
	Metadata   IdentityMetadata `json:"metadata"`
}

// CreateIdentityOptions carries strategy-specific parameters.
type CreateIdentityOptions struct {
	Nonce        *int   `json:"nonce,omitempty"`
	Web2Provider string `json:"web2Provider,omitempty"`
	Account      string `json:"account,omitempty"`
	Name         string `json:"name,omitempty"`
}

// CreateIdentityArgs is the payload of CREATE_IDENTITY.
type CreateIdentityArgs struct {
	Strategy         IdentityStrategy      `json:"strategy"`
	MessageSignature string                `json:"messageSignature,omitempty"`
	Options          CreateIdentityOptions `json:"options"`
}

// IdentityCommitmentArgs is the payload of SET_ACTIVE_IDENTITY and DELETE_IDENTITY.
type IdentityCommitmentArgs struct {
	IdentityCommitment string `json:"identityCommitment"`
}

// SetIdentityNameArgs is the payload of SET_IDENTITY_NAME.
type SetIdentityNameArgs struct {
	IdentityCommitment string `json:"identityCommitment"`
	Name               string `json:"name"`
}
