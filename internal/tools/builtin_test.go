package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestEnterpriseRegistryNames(t *testing.T) {
	r := NewEnterpriseRegistry()
	want := []string{"fetch_weather", "fetch_datetime", "fetch_stock_price", "send_email"}
	names := make(map[string]bool)
	for _, n := range r.Names() {
		names[n] = true
	}
	for _, n := range want {
		if !names[n] {
			t.Fatalf("missing builtin %s", n)
		}
	}
}

func TestFetchWeather(t *testing.T) {
	r := NewEnterpriseRegistry()
	out, err := r.Execute(context.Background(), "fetch_weather", json.RawMessage(`{"location":"Seattle"}`))
	if err != nil {
		t.Fatalf("fetch_weather failed: %v", err)
	}
	if !strings.Contains(out, "Seattle") {
		t.Fatalf("output should mention the location: %q", out)
	}

	if _, err := r.Execute(context.Background(), "fetch_weather", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for missing location")
	}
}

func TestFetchStockPrice(t *testing.T) {
	r := NewEnterpriseRegistry()
	out, err := r.Execute(context.Background(), "fetch_stock_price", json.RawMessage(`{"symbol":"msft"}`))
	if err != nil {
		t.Fatalf("fetch_stock_price failed: %v", err)
	}
	if !strings.Contains(out, "MSFT") {
		t.Fatalf("output should mention the symbol: %q", out)
	}

	if _, err := r.Execute(context.Background(), "fetch_stock_price", json.RawMessage(`{"symbol":"NOPE"}`)); err == nil {
		t.Fatal("expected error for unknown symbol")
	}
}

func TestSendEmailRequiresAllParameters(t *testing.T) {
	r := NewEnterpriseRegistry()
	_, err := r.Execute(context.Background(), "send_email",
		json.RawMessage(`{"recipient":"a@b.co","subject":"hi"}`))
	if err == nil || !strings.Contains(err.Error(), "missing required email parameters") {
		t.Fatalf("expected missing-parameter error, got %v", err)
	}

	out, err := r.Execute(context.Background(), "send_email",
		json.RawMessage(`{"recipient":"a@b.co","subject":"hi","body":"hello"}`))
	if err != nil {
		t.Fatalf("send_email failed: %v", err)
	}
	if !strings.Contains(out, "a@b.co") {
		t.Fatalf("output should mention the recipient: %q", out)
	}
}

func TestFetchDatetime(t *testing.T) {
	r := NewEnterpriseRegistry()
	out, err := r.Execute(context.Background(), "fetch_datetime", json.RawMessage(`{"format":"2006"}`))
	if err != nil {
		t.Fatalf("fetch_datetime failed: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("expected a four digit year, got %q", out)
	}
}
