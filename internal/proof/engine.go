// Package proof adapts an external zero-knowledge prover. The engine builds
// the circuit witness from a single-call secret lease plus public inputs,
// asks the prover for a Groth16 proof and checks the artifact before
// releasing it.
package proof

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/atinyakov/zkkeeper/internal/zkidentity"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Lease is the read-only secret handle the engine consumes.
type Lease interface {
	Commitment() string
	Use(fn func(s *zkidentity.Secret) error) error
}

// Circuit locates the proving artifacts.
type Circuit struct {
	Scheme          models.ProofScheme
	CircuitFilePath string
	ZkeyFilePath    string
	VerificationKey string
}

// PublicInputs are the caller-supplied public values of a proof.
type PublicInputs struct {
	ExternalNullifier string
	Signal            string
	MerkleProof       models.MerkleProof

	RlnIdentifier string
	MessageID     int
	MessageLimit  int
	Epoch         string
}

// Engine produces proofs.
type Engine interface {
	Prove(ctx context.Context, circuit Circuit, in PublicInputs, lease Lease) (*models.ZkProof, error)
}

// witness is the full circuit input together with the public values the
// returned artifact must echo.
type witness struct {
	inputs map[string]any

	merkleRoot        string
	nullifierHash     string
	externalNullifier string
	signalHash        string
	// y is the RLN share, identitySecret + a1*x.
	y string
}

func (w *witness) wipe() {
	clear(w.inputs)
}

func buildWitness(circuit Circuit, in PublicInputs, secret *zkidentity.Secret) (*witness, error) {
	if in.MerkleProof.Root == "" {
		return nil, errors.New("merkle root is required")
	}
	signal := zkidentity.HashToField(in.Signal)
	if circuit.Scheme == models.SchemeRLN {
		signal = zkidentity.HashBytes([]byte(in.Signal))
	}

	siblings := slices.Clone(in.MerkleProof.Siblings)
	pathIndices := slices.Clone(in.MerkleProof.PathIndices)

	switch circuit.Scheme {
	case models.SchemeSemaphore, "":
		if in.ExternalNullifier == "" {
			return nil, errors.New("external nullifier is required")
		}
		ext := zkidentity.HashToField(in.ExternalNullifier)
		return &witness{
			inputs: map[string]any{
				"identityTrapdoor":  secret.Trapdoor.String(),
				"identityNullifier": secret.Nullifier.String(),
				"treePathIndices":   pathIndices,
				"treeSiblings":      siblings,
				"externalNullifier": ext.String(),
				"signalHash":        signal.String(),
			},
			merkleRoot:        in.MerkleProof.Root,
			nullifierHash:     secret.NullifierHash(&ext),
			externalNullifier: ext.String(),
			signalHash:        signal.String(),
		}, nil

	case models.SchemeRLN:
		if in.RlnIdentifier == "" || in.Epoch == "" {
			return nil, errors.New("rln identifier and epoch are required")
		}
		if in.MessageLimit <= 0 || in.MessageID < 0 || in.MessageID >= in.MessageLimit {
			return nil, fmt.Errorf("message id %d outside limit %d", in.MessageID, in.MessageLimit)
		}
		epoch := zkidentity.ToField(in.Epoch)
		rlnID := zkidentity.ToField(in.RlnIdentifier)
		ext := zkidentity.Hash(&epoch, &rlnID)

		idSecret := secret.IdentitySecret()
		defer idSecret.SetZero()
		var msgID fr.Element
		msgID.SetUint64(uint64(in.MessageID))
		a1 := zkidentity.Hash(&idSecret, &ext, &msgID)
		nullifier := zkidentity.Hash(&a1)
		var y fr.Element
		y.Mul(&a1, &signal).Add(&y, &idSecret)
		a1.SetZero()

		return &witness{
			inputs: map[string]any{
				"identitySecret":    idSecret.String(),
				"userMessageLimit":  strconv.Itoa(in.MessageLimit),
				"messageId":         strconv.Itoa(in.MessageID),
				"pathElements":      siblings,
				"identityPathIndex": pathIndices,
				"x":                 signal.String(),
				"externalNullifier": ext.String(),
			},
			merkleRoot:        in.MerkleProof.Root,
			nullifierHash:     nullifier.String(),
			externalNullifier: ext.String(),
			signalHash:        signal.String(),
			y:                 y.String(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown proof scheme %q", circuit.Scheme)
	}
}

// validate checks the prover output against the witness it was built from.
func (w *witness) validate(p models.Groth16Proof, publicSignals []string) error {
	if len(p.PiA) == 0 || len(p.PiB) == 0 || len(p.PiC) == 0 {
		return errors.New("proof has empty points")
	}
	for _, want := range []struct{ name, value string }{
		{"merkle root", w.merkleRoot},
		{"nullifier hash", w.nullifierHash},
		{"external nullifier", w.externalNullifier},
		{"signal hash", w.signalHash},
		{"rln share", w.y},
	} {
		if want.value == "" {
			continue
		}
		if !slices.Contains(publicSignals, want.value) {
			return fmt.Errorf("public signals do not contain the expected %s", want.name)
		}
	}
	return nil
}
