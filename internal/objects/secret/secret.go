// Package secret implements the registry.Capability for the Secret object
// kind: an opaque, write-only value encrypted at rest before persistence.
package secret

import (
	"context"
	"encoding/json"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/secretcrypto"
)

type Capability struct {
	Box *secretcrypto.Box
}

func New(box *secretcrypto.Box) *Capability {
	return &Capability{Box: box}
}

func (c *Capability) Kind() model.Kind { return model.KindSecret }

func (c *Capability) Table() string { return "secrets" }

func (c *Capability) InsertColumns() []string { return []string{"key", "encrypted_data"} }

func (c *Capability) NewRow() any { return &model.Secret{} }

func (c *Capability) Validate(ctx context.Context, partial any) error {
	p, ok := partial.(*model.SecretPartial)
	if !ok {
		return apierror.InvalidInputf("secret: expected *model.SecretPartial, got %T", partial)
	}
	if err := model.ValidateName(p.Name); err != nil {
		return apierror.InvalidInputf("secret: %v", err)
	}
	if p.Data == "" {
		return apierror.InvalidInputf("secret: data is required")
	}
	return nil
}

// ToRow encrypts the plaintext payload; the ciphertext is the only form of
// Data that ever reaches storage.
func (c *Capability) ToRow(partial any) (any, string, error) {
	p, ok := partial.(*model.SecretPartial)
	if !ok {
		return nil, "", apierror.InvalidInputf("secret: expected *model.SecretPartial, got %T", partial)
	}
	encrypted, err := c.Box.Encrypt(p.Name, p.Data)
	if err != nil {
		return nil, "", apierror.Wrap(apierror.Internal, "secret: encrypt", err)
	}
	row := &model.Secret{Key: p.Name, EncryptedData: encrypted}
	return row, p.Name, nil
}

// FromRow never decrypts: secrets are write-only over the API once created,
// so the summary only ever carries metadata, never Data or EncryptedData.
func (c *Capability) FromRow(row any, specData []byte) (any, error) {
	s, ok := row.(*model.Secret)
	if !ok {
		return nil, apierror.InvalidInputf("secret: expected *model.Secret, got %T", row)
	}
	var meta struct {
		Metadata json.RawMessage `json:"metadata,omitempty"`
	}
	if len(specData) > 0 {
		if err := json.Unmarshal(specData, &meta); err != nil {
			return nil, apierror.Wrap(apierror.Internal, "secret: decode spec", err)
		}
	}
	return &model.SecretSummary{Secret: *s, Metadata: meta.Metadata}, nil
}

// Materialise is a no-op: a Secret has no runtime footprint, it is read back
// by whichever capability's Materialise references it.
func (c *Capability) Materialise(ctx context.Context, kindKey string, specData []byte) error {
	return nil
}

func (c *Capability) Teardown(ctx context.Context, kindKey string, force bool) error {
	return nil
}

func (c *Capability) ActorOf(row any) model.EventActor {
	s, ok := row.(*model.Secret)
	if !ok {
		return model.EventActor{Kind: model.KindSecret}
	}
	return model.EventActor{Kind: model.KindSecret, Key: s.Key}
}
