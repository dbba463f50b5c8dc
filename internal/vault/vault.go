// Package vault owns identity secrets. It stores commitments and metadata in
// the clear and secrets sealed with AES-GCM, and tracks which identity is
// connected. Secrets only leave the package through single-call leases.
package vault

import (
	"context"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/atinyakov/zkkeeper/internal/errs"
	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/atinyakov/zkkeeper/internal/storage"
	"github.com/atinyakov/zkkeeper/internal/zkidentity"
	"go.uber.org/zap"
)

const (
	identityPrefix = "identity:"
	secretPrefix   = "secret:"
	connectedKey   = "connected"
)

// storedIdentity is the value stored under identity:<commitment>.
type storedIdentity struct {
	models.IdentityMetadata
	CreatedAt time.Time `json:"createdAt"`
}

// Vault is the secret boundary.
type Vault struct {
	store storage.Store
	aead  cipher.AEAD
	log   *zap.Logger
	now   func() time.Time
}

// New constructs a Vault over store, sealing secrets with aead.
func New(store storage.Store, aead cipher.AEAD, log *zap.Logger) *Vault {
	return &Vault{store: store, aead: aead, log: log, now: time.Now}
}

// Create stores a new identity. An empty name becomes "Account #N".
// Returns errs.ErrIdentityExists if the commitment is already stored.
func (v *Vault) Create(ctx context.Context, secret *zkidentity.Secret, meta models.IdentityMetadata) (models.Identity, error) {
	commitment := secret.Commitment()

	plain, err := secret.MarshalBinary()
	if err != nil {
		return models.Identity{}, fmt.Errorf("marshal secret: %w", err)
	}
	defer clear(plain)

	sealed, err := seal(v.aead, plain, commitment)
	if err != nil {
		return models.Identity{}, err
	}

	err = v.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := tx.Get(identityPrefix + commitment); err == nil {
			return errs.ErrIdentityExists
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		if strings.TrimSpace(meta.Name) == "" {
			count := 0
			if err := tx.ForEach(identityPrefix, func(string, []byte) error {
				count++
				return nil
			}); err != nil {
				return err
			}
			meta.Name = fmt.Sprintf("Account #%d", count+1)
		}

		record, err := json.Marshal(storedIdentity{IdentityMetadata: meta, CreatedAt: v.now().UTC()})
		if err != nil {
			return fmt.Errorf("marshal identity: %w", err)
		}
		if err := tx.Put(identityPrefix+commitment, record); err != nil {
			return err
		}
		return tx.Put(secretPrefix+commitment, sealed)
	})
	if err != nil {
		return models.Identity{}, err
	}

	v.log.Info("identity created",
		zap.String("commitment", commitment),
		zap.String("strategy", string(meta.IdentityStrategy)))
	return models.Identity{Commitment: commitment, Metadata: meta}, nil
}

// Identities lists every identity in creation order.
func (v *Vault) Identities(ctx context.Context) ([]models.Identity, error) {
	type row struct {
		identity  models.Identity
		createdAt time.Time
	}
	var rows []row
	err := v.store.View(ctx, func(tx storage.Tx) error {
		return tx.ForEach(identityPrefix, func(key string, value []byte) error {
			var rec storedIdentity
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			rows = append(rows, row{
				identity:  models.Identity{Commitment: strings.TrimPrefix(key, identityPrefix), Metadata: rec.IdentityMetadata},
				createdAt: rec.CreatedAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(rows, func(a, b row) int { return a.createdAt.Compare(b.createdAt) })
	out := make([]models.Identity, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.identity)
	}
	return out, nil
}

// Identity fetches one identity by commitment.
func (v *Vault) Identity(ctx context.Context, commitment string) (models.Identity, error) {
	var id models.Identity
	err := v.store.View(ctx, func(tx storage.Tx) error {
		var err error
		id, err = getIdentity(tx, commitment)
		return err
	})
	return id, err
}

// Connected returns the connected identity, or nil when none is connected.
func (v *Vault) Connected(ctx context.Context) (*models.Identity, error) {
	var out *models.Identity
	err := v.store.View(ctx, func(tx storage.Tx) error {
		commitment, err := connected(tx)
		if err != nil || commitment == "" {
			return err
		}
		id, err := getIdentity(tx, commitment)
		if err != nil {
			return err
		}
		out = &id
		return nil
	})
	return out, err
}

// ConnectedCommitment returns the connected commitment or "".
func (v *Vault) ConnectedCommitment(ctx context.Context) (string, error) {
	var commitment string
	err := v.store.View(ctx, func(tx storage.Tx) error {
		var err error
		commitment, err = connected(tx)
		return err
	})
	return commitment, err
}

// SetConnected points the connected-identity pointer at commitment, which
// must exist. An empty commitment disconnects.
func (v *Vault) SetConnected(ctx context.Context, commitment string) error {
	return v.store.Update(ctx, func(tx storage.Tx) error {
		if commitment == "" {
			return tx.Delete(connectedKey)
		}
		if _, err := getIdentity(tx, commitment); err != nil {
			return err
		}
		return tx.Put(connectedKey, []byte(commitment))
	})
}

// Rename updates the display name of an identity.
func (v *Vault) Rename(ctx context.Context, commitment, name string) error {
	return v.store.Update(ctx, func(tx storage.Tx) error {
		raw, err := tx.Get(identityPrefix + commitment)
		if errors.Is(err, storage.ErrNotFound) {
			return errs.ErrIdentityNotFound
		}
		if err != nil {
			return err
		}
		var rec storedIdentity
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode identity: %w", err)
		}
		rec.Name = name
		out, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal identity: %w", err)
		}
		return tx.Put(identityPrefix+commitment, out)
	})
}

// Delete removes one identity and its secret. If it was connected, the
// pointer is cleared in the same transaction.
func (v *Vault) Delete(ctx context.Context, commitment string) error {
	err := v.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := getIdentity(tx, commitment); err != nil {
			return err
		}
		current, err := connected(tx)
		if err != nil {
			return err
		}
		if current == commitment {
			if err := tx.Delete(connectedKey); err != nil {
				return err
			}
		}
		if err := tx.Delete(secretPrefix + commitment); err != nil {
			return err
		}
		return tx.Delete(identityPrefix + commitment)
	})
	if err == nil {
		v.log.Info("identity deleted", zap.String("commitment", commitment))
	}
	return err
}

// DeleteAll removes every identity and clears the pointer atomically.
// Returns the number of identities removed.
func (v *Vault) DeleteAll(ctx context.Context) (int, error) {
	var removed int
	err := v.store.Update(ctx, func(tx storage.Tx) error {
		var keys []string
		for _, prefix := range []string{identityPrefix, secretPrefix} {
			if err := tx.ForEach(prefix, func(key string, _ []byte) error {
				keys = append(keys, key)
				if prefix == identityPrefix {
					removed++
				}
				return nil
			}); err != nil {
				return err
			}
		}
		for _, k := range keys {
			if err := tx.Delete(k); err != nil {
				return err
			}
		}
		return tx.Delete(connectedKey)
	})
	if err != nil {
		return 0, err
	}
	v.log.Info("all identities deleted", zap.Int("count", removed))
	return removed, nil
}

// Lease decrypts the secret of commitment into a fresh single-call handle.
// The caller must Release it.
func (v *Vault) Lease(ctx context.Context, commitment string) (*Lease, error) {
	var sealed []byte
	err := v.store.View(ctx, func(tx storage.Tx) error {
		var err error
		sealed, err = tx.Get(secretPrefix + commitment)
		if errors.Is(err, storage.ErrNotFound) {
			return errs.ErrIdentityNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	plain, err := unseal(v.aead, sealed, commitment)
	if err != nil {
		return nil, err
	}
	defer clear(plain)

	var secret zkidentity.Secret
	if err := secret.UnmarshalBinary(plain); err != nil {
		return nil, err
	}
	return &Lease{commitment: commitment, secret: &secret}, nil
}

func getIdentity(tx storage.Tx, commitment string) (models.Identity, error) {
	if commitment == "" {
		return models.Identity{}, errs.ErrIdentityNotFound
	}
	raw, err := tx.Get(identityPrefix + commitment)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Identity{}, errs.ErrIdentityNotFound
	}
	if err != nil {
		return models.Identity{}, err
	}
	var rec storedIdentity
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	return models.Identity{Commitment: commitment, Metadata: rec.IdentityMetadata}, nil
}

func connected(tx storage.Tx) (string, error) {
	raw, err := tx.Get(connectedKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
