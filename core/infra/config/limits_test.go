package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const limitsYAML = `
version: 1
defaults:
  invocation_timeout_seconds: 20
workflows:
  tx_notification_workflow:
    invocation_timeout_seconds: 10
`

func TestParseLimits(t *testing.T) {
	cfg, err := ParseLimits([]byte(limitsYAML))
	if err != nil {
		t.Fatalf("parse limits: %v", err)
	}
	if got := cfg.TimeoutFor("tx_notification_workflow", time.Minute); got != 10*time.Second {
		t.Fatalf("expected workflow override, got %s", got)
	}
	if got := cfg.TimeoutFor("other", time.Minute); got != 20*time.Second {
		t.Fatalf("expected file default, got %s", got)
	}
}

func TestParseLimitsEmpty(t *testing.T) {
	cfg, err := ParseLimits(nil)
	if err != nil {
		t.Fatalf("parse empty limits: %v", err)
	}
	if got := cfg.TimeoutFor("any", 45*time.Second); got != 45*time.Second {
		t.Fatalf("expected fallback timeout, got %s", got)
	}
}

func TestParseLimitsSchemaRejects(t *testing.T) {
	cases := map[string]string{
		"wrong type":    "workflows:\n  wf:\n    invocation_timeout_seconds: ten\n",
		"unknown field": "workflows:\n  wf:\n    retry_budget: 3\n",
		"bad version":   "version: 0\n",
	}
	for name, doc := range cases {
		if _, err := ParseLimits([]byte(doc)); err == nil {
			t.Fatalf("%s: expected schema rejection", name)
		}
	}
}

func TestLoadLimitsMissingFile(t *testing.T) {
	cfg, err := LoadLimits(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if cfg == nil || cfg.Workflows == nil {
		t.Fatalf("expected usable defaults on error")
	}
}

func TestLoadLimitsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	if err := os.WriteFile(path, []byte(limitsYAML), 0o600); err != nil {
		t.Fatalf("write limits: %v", err)
	}
	cfg, err := LoadLimits(path)
	if err != nil {
		t.Fatalf("load limits: %v", err)
	}
	if got := cfg.TimeoutFor("tx_notification_workflow", time.Minute); got != 10*time.Second {
		t.Fatalf("expected workflow override, got %s", got)
	}
}

func TestTimeoutForNilConfig(t *testing.T) {
	var cfg *LimitsConfig
	if got := cfg.TimeoutFor("wf", 7*time.Second); got != 7*time.Second {
		t.Fatalf("expected fallback for nil config, got %s", got)
	}
}
