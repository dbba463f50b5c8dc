package models

// ProofScheme selects the circuit family of a zero-knowledge proof.
type ProofScheme string

const (
	SchemeSemaphore ProofScheme = "semaphore"
	SchemeRLN       ProofScheme = "rln"
)

// ZkProofArgs is the payload of GENERATE_ZK_PROOF. Every field is public.
type ZkProofArgs struct {
	Scheme            ProofScheme `json:"scheme,omitempty"`
	CircuitFilePath   string      `json:"circuitFilePath"`
	ZkeyFilePath      string      `json:"zkeyFilePath"`
	VerificationKey   string      `json:"verificationKey,omitempty"`
	ExternalNullifier string      `json:"externalNullifier"`
	Signal            string      `json:"signal"`

	// GroupID makes the service fetch the Merkle proof from the registry.
	GroupID string `json:"groupId,omitempty"`
	// MerkleProof may be supplied inline instead of GroupID.
	MerkleProof *MerkleProof `json:"merkleProof,omitempty"`

	// RLN-only parameters.
	RlnIdentifier string `json:"rlnIdentifier,omitempty"`
	MessageID     int    `json:"messageId,omitempty"`
	MessageLimit  int    `json:"messageLimit,omitempty"`
	Epoch         string `json:"epoch,omitempty"`
}

// Groth16Proof is the proof object produced by the prover.
type Groth16Proof struct {
	PiA      []string   `json:"pi_a"`
	PiB      [][]string `json:"pi_b"`
	PiC      []string   `json:"pi_c"`
	Protocol string     `json:"protocol"`
	Curve    string     `json:"curve"`
}

// ZkProof is the public proof artifact released to the caller.
type ZkProof struct {
	Scheme            ProofScheme  `json:"scheme"`
	Proof             Groth16Proof `json:"proof"`
	PublicSignals     []string     `json:"publicSignals"`
	MerkleRoot        string       `json:"merkleRoot"`
	NullifierHash     string       `json:"nullifierHash"`
	ExternalNullifier string       `json:"externalNullifier"`
	SignalHash        string       `json:"signalHash"`
}
