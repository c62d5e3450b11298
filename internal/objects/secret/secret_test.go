package secret

import (
	"context"
	"testing"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/secretcrypto"
)

func newTestBox(t *testing.T) *secretcrypto.Box {
	t.Helper()
	box, err := secretcrypto.NewBox([]byte("ab0123456789abcdef0123456789abcdef0123456789abcdef0123456789ab01"))
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	return box
}

func TestValidateRejectsMissingData(t *testing.T) {
	c := New(newTestBox(t))
	err := c.Validate(context.Background(), &model.SecretPartial{Name: "db-password"})
	if apierror.KindOf(err) != apierror.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestToRowEncryptsData(t *testing.T) {
	c := New(newTestBox(t))
	row, key, err := c.ToRow(&model.SecretPartial{Name: "db-password", Data: "hunter2"})
	if err != nil {
		t.Fatalf("ToRow: %v", err)
	}
	if key != "db-password" {
		t.Fatalf("unexpected key: %s", key)
	}
	s := row.(*model.Secret)
	if string(s.EncryptedData) == "hunter2" {
		t.Fatal("expected data to be encrypted, got plaintext")
	}
	plain, err := c.Box.Decrypt(s.Key, s.EncryptedData)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "hunter2" {
		t.Fatalf("roundtrip mismatch: got %q", plain)
	}
}

func TestFromRowNeverExposesPlaintext(t *testing.T) {
	c := New(newTestBox(t))
	row, _, _ := c.ToRow(&model.SecretPartial{Name: "db-password", Data: "hunter2"})
	summary, err := c.FromRow(row, nil)
	if err != nil {
		t.Fatalf("FromRow: %v", err)
	}
	ss := summary.(*model.SecretSummary)
	if ss.Key != "db-password" {
		t.Fatalf("unexpected key: %s", ss.Key)
	}
}
