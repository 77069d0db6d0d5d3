package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadFromFile_Rego(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "no-orphans.rego")

	regoContent := `package site.orphans

# Denies entity documents that name no parent

import rego.v1

deny contains msg if {
	input.document.kind == "entity"
	msg := "entity has no parent"
}`

	err := os.WriteFile(policyFile, []byte(regoContent), 0644)
	if err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	policy, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "no-orphans" {
		t.Errorf("Expected name 'no-orphans', got '%s'", policy.Name)
	}
	if policy.Rego != regoContent {
		t.Error("Rego content doesn't match")
	}
	if !policy.Enabled {
		t.Error("Policy should be enabled by default")
	}
	if policy.Severity != SeverityWarning {
		t.Errorf("Expected default severity warning, got %s", policy.Severity)
	}
	if policy.Description == "" {
		t.Error("Expected description extracted from comments")
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "site-policy.json")

	def := Policy{
		Name:        "deny-untyped-feeds",
		Description: "Feed documents must carry a type",
		Severity:    SeverityError,
		Enabled:     true,
		Rego:        "package site.feeds\n\nimport rego.v1\n\ndeny contains \"untyped feed\" if {\n\tinput.document.kind == \"feed\"\n\tnot input.document.type\n}",
	}
	data, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("Failed to marshal policy: %v", err)
	}
	if err := os.WriteFile(policyFile, data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	policy, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "deny-untyped-feeds" {
		t.Errorf("Expected name 'deny-untyped-feeds', got '%s'", policy.Name)
	}
	if policy.Severity != SeverityError {
		t.Errorf("Expected severity error, got %s", policy.Severity)
	}
	if policy.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be defaulted")
	}
}

func TestLoadFromFile_Unsupported(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "policy.yaml")
	if err := os.WriteFile(policyFile, []byte("name: x"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := loader.loadFromFile(context.Background(), policyFile); err == nil {
		t.Error("Expected error for unsupported file type")
	}
}

func TestLoadFromPaths_Directory(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	tmpDir := t.TempDir()

	files := map[string]string{
		"first.rego":  "package site.first\n\nimport rego.v1\n\ndeny contains \"x\" if { false }",
		"second.rego": "package site.second\n\nimport rego.v1\n\ndeny contains \"y\" if { false }",
		"notes.txt":   "not a policy",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	policies, err := loader.LoadFromPaths(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("Failed to load from directory: %v", err)
	}

	if len(policies) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(policies))
	}
}

func TestLoadFromPaths_MissingPath(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	_, err := loader.LoadFromPaths(context.Background(), []string{"/nonexistent/policies"})
	if err == nil {
		t.Error("Expected error for missing path")
	}
}

func TestLoaderCache(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "cached.rego")
	if err := os.WriteFile(policyFile, []byte("package site.cached\n"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	first, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	// A rewrite is invisible until the cache entry is dropped
	if err := os.WriteFile(policyFile, []byte("package site.changed\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite test file: %v", err)
	}

	second, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to reload policy: %v", err)
	}
	if second.Rego != first.Rego {
		t.Error("Expected cached policy content")
	}

	loader.ClearCache()

	third, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to reload policy after cache clear: %v", err)
	}
	if third.Rego == first.Rego {
		t.Error("Expected fresh policy content after cache clear")
	}
}

func TestExtractDescription(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	content := `# Rejects documents from decommissioned sites
# and logs everything else
package site.decom

deny contains x if { false }`

	desc := loader.extractDescription(content)
	if desc != "Rejects documents from decommissioned sites and logs everything else" {
		t.Errorf("Unexpected description: %q", desc)
	}
}
