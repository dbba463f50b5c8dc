package registry

import (
	"errors"
	"fmt"

	"github.com/atinyakov/zkkeeper/internal/models"
)

// ValidateMerkleProof checks that proof is an inclusion proof for leaf with a
// consistent shape. It does not recompute the root.
func ValidateMerkleProof(proof *models.MerkleProof, leaf string) error {
	if proof == nil {
		return errors.New("merkle proof is missing")
	}
	if proof.Root == "" {
		return errors.New("merkle proof has an empty root")
	}
	if proof.Leaf != leaf {
		return fmt.Errorf("merkle proof leaf %q does not match identity commitment", proof.Leaf)
	}
	if len(proof.Siblings) != len(proof.PathIndices) {
		return fmt.Errorf("merkle proof has %d siblings but %d path indices", len(proof.Siblings), len(proof.PathIndices))
	}
	for i, idx := range proof.PathIndices {
		if idx != 0 && idx != 1 {
			return fmt.Errorf("merkle proof path index %d is %d", i, idx)
		}
	}
	return nil
}
