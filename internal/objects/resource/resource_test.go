package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nanocl-io/nanocld/internal/apierror"
	"github.com/nanocl-io/nanocld/internal/model"
)

func schemaLookup(schema json.RawMessage) KindLookup {
	return func(ctx context.Context, kindKey string) (*model.ResourceKindSpecPartial, error) {
		return &model.ResourceKindSpecPartial{Name: kindKey, Schema: schema}, nil
	}
}

func TestValidateAgainstSchemaLookup(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["port"],"properties":{"port":{"type":"integer"}}}`)
	c := New(schemaLookup(schema))
	good := &model.ResourcePartial{Name: "rule1", Kind: "acme.io/route", Data: json.RawMessage(`{"port":8080}`)}
	if err := c.Validate(context.Background(), good); err != nil {
		t.Fatalf("expected valid resource, got %v", err)
	}
	bad := &model.ResourcePartial{Name: "rule1", Kind: "acme.io/route", Data: json.RawMessage(`{"port":"x"}`)}
	if err := c.Validate(context.Background(), bad); apierror.KindOf(err) != apierror.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestValidateDelegatesToURLHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	lookup := func(ctx context.Context, kindKey string) (*model.ResourceKindSpecPartial, error) {
		return &model.ResourceKindSpecPartial{Name: kindKey, URL: srv.URL}, nil
	}
	c := New(lookup)
	p := &model.ResourcePartial{Name: "rule1", Kind: "acme.io/hooked", Data: json.RawMessage(`{"anything":true}`)}
	if err := c.Validate(context.Background(), p); err != nil {
		t.Fatalf("expected hook to accept, got %v", err)
	}
}

func TestValidateRejectsWhenHookRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	lookup := func(ctx context.Context, kindKey string) (*model.ResourceKindSpecPartial, error) {
		return &model.ResourceKindSpecPartial{Name: kindKey, URL: srv.URL}, nil
	}
	c := New(lookup)
	p := &model.ResourcePartial{Name: "rule1", Kind: "acme.io/hooked", Data: json.RawMessage(`{}`)}
	if err := c.Validate(context.Background(), p); apierror.KindOf(err) != apierror.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}
