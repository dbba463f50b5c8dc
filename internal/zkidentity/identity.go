// Package zkidentity derives zero-knowledge identity secrets and their public
// commitments. Secrets are a trapdoor and a nullifier in the BN254 scalar
// field. Hashes are circom Poseidon so values match what Semaphore and RLN
// circuits and group registries compute: the commitment is
// Poseidon(Poseidon(nullifier, trapdoor)).
package zkidentity

import (
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strconv"
	"strings"

	"github.com/atinyakov/zkkeeper/internal/errs"
	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

const (
	trapdoorContext  = "zkkeeper identity trapdoor v1"
	nullifierContext = "zkkeeper identity nullifier v1"
)

// SecretSize is the length of a marshaled Secret.
const SecretSize = 2 * fr.Bytes

// Secret is the private part of an identity.
type Secret struct {
	Trapdoor  fr.Element
	Nullifier fr.Element
}

// Derive builds a secret from creation arguments. Invalid arguments yield
// errs.ErrIdentityDerivationFailed.
func Derive(args models.CreateIdentityArgs) (*Secret, error) {
	switch args.Strategy {
	case models.StrategyRandom:
		return Random()
	case models.StrategyInterrep:
		if args.MessageSignature == "" {
			return nil, errs.Wrap(errs.CodeIdentityDerivationFailed, "derive identity", errors.New("message signature is required"))
		}
		if !slices.Contains(models.Web2Providers, args.Options.Web2Provider) {
			return nil, errs.Wrap(errs.CodeIdentityDerivationFailed, "derive identity",
				fmt.Errorf("unsupported web2 provider %q", args.Options.Web2Provider))
		}
		if args.Options.Nonce == nil || *args.Options.Nonce < 0 {
			return nil, errs.Wrap(errs.CodeIdentityDerivationFailed, "derive identity", errors.New("nonce must be a non-negative integer"))
		}
		return FromSignature(args.MessageSignature, args.Options.Web2Provider, *args.Options.Nonce), nil
	default:
		return nil, errs.Wrap(errs.CodeIdentityDerivationFailed, "derive identity",
			fmt.Errorf("unknown strategy %q", args.Strategy))
	}
}

// Random draws both secret elements from a CSPRNG.
func Random() (*Secret, error) {
	var s Secret
	if _, err := s.Trapdoor.SetRandom(); err != nil {
		return nil, errs.Wrap(errs.CodeIdentityDerivationFailed, "random trapdoor", err)
	}
	if _, err := s.Nullifier.SetRandom(); err != nil {
		return nil, errs.Wrap(errs.CodeIdentityDerivationFailed, "random nullifier", err)
	}
	return &s, nil
}

// FromSignature deterministically derives a secret from a signed message.
// The same signature, provider and nonce always give the same identity.
func FromSignature(signature, provider string, nonce int) *Secret {
	material := []byte(signature + "\x00" + provider + "\x00" + strconv.Itoa(nonce))

	var t, n [64]byte
	blake3.DeriveKey(trapdoorContext, material, t[:])
	blake3.DeriveKey(nullifierContext, material, n[:])

	var s Secret
	s.Trapdoor.SetBytes(t[:])
	s.Nullifier.SetBytes(n[:])
	return &s
}

// Commitment returns the public identity commitment as a decimal string.
func (s *Secret) Commitment() string {
	inner := s.IdentitySecret()
	defer inner.SetZero()
	c := Hash(&inner)
	return c.String()
}

// NullifierHash is the Semaphore nullifier hash,
// Poseidon(externalNullifier, nullifier).
func (s *Secret) NullifierHash(externalNullifier *fr.Element) string {
	h := Hash(externalNullifier, &s.Nullifier)
	return h.String()
}

// IdentitySecret is Poseidon(nullifier, trapdoor). RLN circuits take it as
// their private input and the commitment is its hash.
func (s *Secret) IdentitySecret() fr.Element {
	return Hash(&s.Nullifier, &s.Trapdoor)
}

// MarshalBinary encodes trapdoor || nullifier.
func (s *Secret) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, SecretSize)
	t := s.Trapdoor.Bytes()
	n := s.Nullifier.Bytes()
	out = append(out, t[:]...)
	return append(out, n[:]...), nil
}

// UnmarshalBinary decodes the MarshalBinary form.
func (s *Secret) UnmarshalBinary(data []byte) error {
	if len(data) != SecretSize {
		return fmt.Errorf("secret must be %d bytes, got %d", SecretSize, len(data))
	}
	s.Trapdoor.SetBytes(data[:fr.Bytes])
	s.Nullifier.SetBytes(data[fr.Bytes:])
	return nil
}

// Zero wipes the secret.
func (s *Secret) Zero() {
	s.Trapdoor.SetZero()
	s.Nullifier.SetZero()
}

// HashToField maps a public value into the field the way Semaphore does:
// keccak256 shifted right by 8 bits. Decimal and 0x-prefixed hex integers
// are hashed as a 32-byte big-endian word, any other string as its UTF-8
// bytes.
func HashToField(value string) fr.Element {
	if n, ok := parseUint256(value); ok {
		return HashBytes(n.FillBytes(make([]byte, 32)))
	}
	return HashBytes([]byte(value))
}

// HashBytes is keccak256(msg) >> 8 as a field element. RLN signals are
// hashed from their UTF-8 bytes this way.
func HashBytes(msg []byte) fr.Element {
	k := sha3.NewLegacyKeccak256()
	k.Write(msg)
	digest := new(big.Int).SetBytes(k.Sum(nil))
	digest.Rsh(digest, 8)

	var e fr.Element
	e.SetBigInt(digest)
	return e
}

// ToField uses value directly when it is an integer inside the field and
// hashes it with HashToField otherwise. RLN epochs and identifiers are
// passed to the circuit this way.
func ToField(value string) fr.Element {
	if n, ok := parseUint256(value); ok && n.Cmp(fr.Modulus()) < 0 {
		var e fr.Element
		e.SetBigInt(n)
		return e
	}
	return HashToField(value)
}

func parseUint256(value string) (*big.Int, bool) {
	if value == "" {
		return nil, false
	}
	base, digits := 10, value
	if rest, ok := strings.CutPrefix(strings.ToLower(value), "0x"); ok {
		base, digits = 16, rest
	}
	if digits == "" || strings.ContainsAny(digits, "+-_") {
		return nil, false
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok || n.BitLen() > 256 {
		return nil, false
	}
	return n, true
}

// Hash is circom Poseidon over one to three field elements.
func Hash(elems ...*fr.Element) fr.Element {
	in := make([]*big.Int, len(elems))
	for i, e := range elems {
		in[i] = e.BigInt(new(big.Int))
	}
	h, err := poseidon.Hash(in)
	if err != nil {
		// Canonical elements below the arity limit are always accepted.
		panic(fmt.Sprintf("poseidon: %v", err))
	}
	var out fr.Element
	out.SetBigInt(h)
	for _, b := range in {
		b.SetInt64(0)
	}
	return out
}
