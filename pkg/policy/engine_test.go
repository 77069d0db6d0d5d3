package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmast/openmast/pkg/stores"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	gate, err := NewGate(logger)
	if err != nil {
		t.Fatalf("Failed to create gate: %v", err)
	}
	return gate
}

func TestNewGate(t *testing.T) {
	gate := newTestGate(t)

	// Check that built-in policies are loaded
	policies := gate.ListPolicies()
	if len(policies) == 0 {
		t.Fatal("No built-in policies loaded")
	}

	expectedPolicies := []string{
		"document-identity",
		"known-kinds",
		"empty-body",
		"provenance-header",
	}

	for _, expected := range expectedPolicies {
		found := false
		for _, p := range policies {
			if p.Name == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected built-in policy not found: %s", expected)
		}
	}
}

func TestAdmit_ValidDocument(t *testing.T) {
	gate := newTestGate(t)

	doc := &stores.Document{
		ObjectID:      "e-web-01",
		Kind:          "entity",
		Type:          "web.Server",
		CatalogItemID: "catalog:web-server:1.0.0",
		Body:          []byte(`{"id":"e-web-01"}`),
	}

	decision, err := gate.Admit(context.Background(), doc, false)
	if err != nil {
		t.Fatalf("Failed to evaluate document: %v", err)
	}

	if !decision.Allowed {
		t.Errorf("Expected document to be allowed, violations: %+v", decision.Violations)
	}
	if len(decision.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %+v", decision.Warnings)
	}
	if len(decision.EvaluatedPolicies) == 0 {
		t.Error("Expected evaluated policies to be recorded")
	}
}

func TestAdmit_MissingObjectID(t *testing.T) {
	gate := newTestGate(t)

	doc := &stores.Document{
		Kind: "entity",
		Body: []byte(`{}`),
	}

	decision, err := gate.Admit(context.Background(), doc, false)
	if err != nil {
		t.Fatalf("Failed to evaluate document: %v", err)
	}

	if decision.Allowed {
		t.Fatal("Expected document without object ID to be denied")
	}

	found := false
	for _, v := range decision.Violations {
		if v.Policy == "document-identity" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected document-identity violation, got %+v", decision.Violations)
	}
}

func TestAdmit_UnknownKind(t *testing.T) {
	gate := newTestGate(t)

	doc := &stores.Document{
		ObjectID: "x-1",
		Kind:     "widget",
		Body:     []byte(`{}`),
	}

	decision, err := gate.Admit(context.Background(), doc, false)
	if err != nil {
		t.Fatalf("Failed to evaluate document: %v", err)
	}

	if decision.Allowed {
		t.Fatal("Expected document with unknown kind to be denied")
	}

	found := false
	for _, v := range decision.Violations {
		if v.Policy == "known-kinds" {
			found = true
			if v.ObjectID != "x-1" {
				t.Errorf("Expected violation bound to x-1, got %s", v.ObjectID)
			}
		}
	}
	if !found {
		t.Errorf("Expected known-kinds violation, got %+v", decision.Violations)
	}
}

func TestAdmit_EmptyBodyWarns(t *testing.T) {
	gate := newTestGate(t)

	doc := &stores.Document{
		ObjectID: "e-1",
		Kind:     "entity",
	}

	decision, err := gate.Admit(context.Background(), doc, false)
	if err != nil {
		t.Fatalf("Failed to evaluate document: %v", err)
	}

	// Empty body is a warning, not a denial
	if !decision.Allowed {
		t.Errorf("Expected document to be allowed, violations: %+v", decision.Violations)
	}

	found := false
	for _, w := range decision.Warnings {
		if w.Policy == "empty-body" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected empty-body warning, got %+v", decision.Warnings)
	}
}

func TestAdmit_MissingProvenanceWarns(t *testing.T) {
	gate := newTestGate(t)

	doc := &stores.Document{
		ObjectID: "e-1",
		Kind:     "entity",
		Type:     "web.Server",
		Body:     []byte(`{}`),
	}

	decision, err := gate.Admit(context.Background(), doc, false)
	if err != nil {
		t.Fatalf("Failed to evaluate document: %v", err)
	}

	if !decision.Allowed {
		t.Errorf("Expected document to be allowed, violations: %+v", decision.Violations)
	}

	found := false
	for _, w := range decision.Warnings {
		if w.Policy == "provenance-header" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected provenance-header warning, got %+v", decision.Warnings)
	}
}

func TestAdmit_DisabledPolicySkipped(t *testing.T) {
	gate := newTestGate(t)

	if err := gate.DisablePolicy("known-kinds"); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}

	doc := &stores.Document{
		ObjectID: "x-1",
		Kind:     "widget",
		Body:     []byte(`{}`),
	}

	decision, err := gate.Admit(context.Background(), doc, false)
	if err != nil {
		t.Fatalf("Failed to evaluate document: %v", err)
	}

	if !decision.Allowed {
		t.Errorf("Expected document to be allowed with known-kinds disabled, got %+v", decision.Violations)
	}

	if err := gate.EnablePolicy("known-kinds"); err != nil {
		t.Fatalf("Failed to re-enable policy: %v", err)
	}

	decision, err = gate.Admit(context.Background(), doc, false)
	if err != nil {
		t.Fatalf("Failed to re-evaluate document: %v", err)
	}
	if decision.Allowed {
		t.Error("Expected document to be denied after re-enabling known-kinds")
	}
}

func TestCustomSitePolicy(t *testing.T) {
	gate := newTestGate(t)

	custom := Policy{
		Name:     "no-legacy-entities",
		Severity: SeverityError,
		Enabled:  true,
		Rego: `package site.legacy

import rego.v1

deny contains violation if {
	input.document.kind == "entity"
	startswith(input.document.object_id, "legacy-")
	violation := {
		"message": "legacy entities may not be restored",
		"severity": "error",
		"object_id": input.document.object_id,
	}
}`,
	}

	gate.mu.Lock()
	err := gate.compileAndStorePolicy(context.Background(), &custom)
	gate.mu.Unlock()
	if err != nil {
		t.Fatalf("Failed to compile custom policy: %v", err)
	}

	doc := &stores.Document{
		ObjectID: "legacy-e-1",
		Kind:     "entity",
		Body:     []byte(`{}`),
	}

	decision, err := gate.Admit(context.Background(), doc, false)
	if err != nil {
		t.Fatalf("Failed to evaluate document: %v", err)
	}
	if decision.Allowed {
		t.Fatal("Expected legacy entity to be denied by the site policy")
	}

	found := false
	for _, v := range decision.Violations {
		if v.Policy == "no-legacy-entities" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected no-legacy-entities violation, got %+v", decision.Violations)
	}
}

func TestReloadPolicies(t *testing.T) {
	gate := newTestGate(t)

	custom := Policy{
		Name:     "transient",
		Severity: SeverityError,
		Enabled:  true,
		Rego:     "package site.transient\n\nimport rego.v1\n\ndeny contains \"never\" if { false }",
	}
	gate.mu.Lock()
	err := gate.compileAndStorePolicy(context.Background(), &custom)
	gate.mu.Unlock()
	if err != nil {
		t.Fatalf("Failed to compile custom policy: %v", err)
	}

	if err := gate.ReloadPolicies(context.Background()); err != nil {
		t.Fatalf("Failed to reload policies: %v", err)
	}

	if _, err := gate.GetPolicy("transient"); err == nil {
		t.Error("Expected site policy to be dropped by reload")
	}
	if _, err := gate.GetPolicy("document-identity"); err != nil {
		t.Errorf("Expected built-in policy to survive reload: %v", err)
	}
}

func TestWatchPoliciesHotReload(t *testing.T) {
	gate := newTestGate(t)

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gate.WatchPolicies(ctx, []string{dir}); err != nil {
		t.Fatalf("Failed to start watching: %v", err)
	}

	// A site policy dropped into the watched directory is picked up
	rego := `package site.block

import rego.v1

deny contains violation if {
	input.document.kind == "entity"
	startswith(input.document.object_id, "blocked-")
	violation := {
		"message": "blocked entities may not be restored",
		"severity": "error",
		"object_id": input.document.object_id,
	}
}`
	if err := os.WriteFile(filepath.Join(dir, "block-restores.rego"), []byte(rego), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	// Reloads are debounced, so poll until the policy appears
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := gate.GetPolicy("block-restores"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for the site policy to load")
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Built-ins survive the reload
	if _, err := gate.GetPolicy("document-identity"); err != nil {
		t.Errorf("Expected built-in policy to survive reload: %v", err)
	}
}

func TestExtractPackageName(t *testing.T) {
	tests := []struct {
		name     string
		rego     string
		expected string
	}{
		{
			name:     "simple package",
			rego:     "package openmast.policies.identity\n\ndeny contains x if { false }",
			expected: "openmast.policies.identity",
		},
		{
			name:     "leading comment",
			rego:     "# identity checks\npackage site.checks\n",
			expected: "site.checks",
		},
		{
			name:     "no package line",
			rego:     "deny contains x if { false }",
			expected: "openmast.policies",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPackageName(tt.rego); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}
