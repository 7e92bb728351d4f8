package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnvOr(t *testing.T) {
	t.Setenv("TEST_ENV", "")
	if got := envOr("TEST_ENV", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback value")
	}
	t.Setenv("TEST_ENV", " value ")
	if got := envOr("TEST_ENV", "fallback"); got != "value" {
		t.Fatalf("expected trimmed env value")
	}
}

func TestNewFlagSetDefaults(t *testing.T) {
	t.Setenv("TRIGGERFLOW_OPS_URL", "http://example.com:8090")
	t.Setenv("NATS_URL", "nats://example.com:4222")
	fs := newFlagSet("test")
	if *fs.ops != "http://example.com:8090" {
		t.Fatalf("expected ops url from env, got %s", *fs.ops)
	}
	if *fs.nats != "nats://example.com:4222" {
		t.Fatalf("expected nats url from env, got %s", *fs.nats)
	}
}

func TestFieldFlagsTypedValues(t *testing.T) {
	var f fieldFlags
	for _, raw := range []string{"amount=250", "currency=USD", "flag=true", "note=a=b"} {
		if err := f.Set(raw); err != nil {
			t.Fatalf("set %q: %v", raw, err)
		}
	}
	if f.values["amount"] != float64(250) {
		t.Fatalf("amount: %#v", f.values["amount"])
	}
	if f.values["currency"] != "USD" {
		t.Fatalf("currency: %#v", f.values["currency"])
	}
	if f.values["flag"] != true {
		t.Fatalf("flag: %#v", f.values["flag"])
	}
	if f.values["note"] != "a=b" {
		t.Fatalf("note: %#v", f.values["note"])
	}

	if err := f.Set("noequals"); err == nil {
		t.Fatal("expected error for missing =")
	}
	if err := f.Set("=value"); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestNewClientTrimsBaseURL(t *testing.T) {
	client := newClient("http://localhost:8090/")
	if client.BaseURL != "http://localhost:8090" {
		t.Fatalf("expected trimmed base url, got %s", client.BaseURL)
	}
}

func TestLoadAndPrintJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.json")
	if err := os.WriteFile(path, []byte(`{"transaction_id":"t1"}`), 0o600); err != nil {
		t.Fatalf("write temp json: %v", err)
	}
	var payload map[string]any
	loadJSON(path, &payload)
	if payload["transaction_id"] != "t1" {
		t.Fatalf("unexpected payload: %#v", payload)
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	old := os.Stdout
	os.Stdout = w
	printJSON(map[string]string{"k": "v"})
	_ = w.Close()
	os.Stdout = old

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "\"k\"") {
		t.Fatalf("expected json output, got %s", string(data))
	}
}
