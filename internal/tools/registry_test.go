package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("echo", func(ctx context.Context, args json.RawMessage) (string, error) {
		var in struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return "", err
		}
		return in.Text, nil
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	out, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hello"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "hello" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRegistryNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "missing", json.RawMessage(`{}`))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Fatalf("error should name the tool: %v", err)
	}
}

func TestRegistryInvalidArguments(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("noop", func(ctx context.Context, args json.RawMessage) (string, error) {
		return "ok", nil
	})

	_, err := r.Execute(context.Background(), "noop", json.RawMessage(`["not","an","object"]`))
	if !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}

	// Empty payload is treated as an empty object.
	out, err := r.Execute(context.Background(), "noop", nil)
	if err != nil {
		t.Fatalf("Execute with empty args failed: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	handler := func(ctx context.Context, args json.RawMessage) (string, error) { return "", nil }
	if err := r.Register("dup", handler); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register("dup", handler); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}
