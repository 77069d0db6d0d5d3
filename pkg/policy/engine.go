package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/openmast/openmast/pkg/stores"
)

// Gate evaluates admission policies against snapshot documents before
// they are restored. Built-in policies cover document identity and
// integrity; site policies are loaded from .rego files.
type Gate struct {
	mu              sync.RWMutex
	policies        map[string]*compiledPolicy
	store           storage.Store
	logger          zerolog.Logger
	builtinPolicies []Policy
}

// compiledPolicy represents a compiled Rego policy.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewGate creates an admission gate with the built-in policies loaded.
func NewGate(logger zerolog.Logger) (*Gate, error) {
	g := &Gate{
		policies:        make(map[string]*compiledPolicy),
		store:           inmem.New(),
		logger:          logger.With().Str("component", "admission-gate").Logger(),
		builtinPolicies: GetBuiltinPolicies(),
	}

	if err := g.loadBuiltinPolicies(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}

	return g, nil
}

// Admit evaluates all enabled policies against one snapshot document.
func (g *Gate) Admit(ctx context.Context, doc *stores.Document, strict bool) (*Decision, error) {
	startTime := time.Now()
	g.mu.RLock()
	defer g.mu.RUnlock()

	input := &Input{
		Document: &DocumentInput{
			ObjectID:      doc.ObjectID,
			Kind:          doc.Kind,
			Type:          doc.Type,
			CatalogItemID: doc.CatalogItemID,
			BodySize:      len(doc.Body),
		},
		Context: &EvalContext{
			Timestamp: time.Now(),
			Operation: "restore",
			Strict:    strict,
		},
	}

	var violations []Violation
	var warnings []Violation
	evaluatedPolicies := make([]string, 0, len(g.policies))

	for _, cp := range g.policies {
		if !cp.policy.Enabled {
			continue
		}

		evaluatedPolicies = append(evaluatedPolicies, cp.policy.Name)

		findings, err := g.evaluatePolicy(ctx, cp, input)
		if err != nil {
			g.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Str("object", doc.ObjectID).
				Msg("Policy evaluation failed")
			warnings = append(warnings, Violation{
				Policy:   cp.policy.Name,
				ObjectID: doc.ObjectID,
				Message:  fmt.Sprintf("policy evaluation failed: %v", err),
				Severity: SeverityWarning,
			})
			continue
		}

		for _, f := range findings {
			if f.Severity == SeverityError || f.Severity == SeverityCritical {
				violations = append(violations, f)
			} else {
				warnings = append(warnings, f)
			}
		}
	}

	duration := time.Since(startTime)
	g.logger.Debug().
		Str("object", doc.ObjectID).
		Int("violations", len(violations)).
		Int("warnings", len(warnings)).
		Dur("duration", duration).
		Msg("Document admission evaluated")

	return &Decision{
		Allowed:           len(violations) == 0,
		Violations:        violations,
		Warnings:          warnings,
		EvaluatedAt:       time.Now(),
		EvaluatedPolicies: evaluatedPolicies,
		Duration:          duration,
	}, nil
}

// LoadPolicies loads site policy files in addition to the built-ins.
func (g *Gate) LoadPolicies(ctx context.Context, paths []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	loader := NewLoader(g.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	for i := range policies {
		if err := g.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			g.logger.Error().Err(err).
				Str("policy", policies[i].Name).
				Msg("Failed to compile policy")
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	g.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded successfully")

	return nil
}

// evaluatePolicy evaluates a single compiled policy.
func (g *Gate) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	// Query the deny set from the policy's own package
	packageName := extractPackageName(cp.policy.Rego)
	query := fmt.Sprintf("data.%s.deny", packageName)

	r := rego.New(
		rego.Module(cp.policy.Name, cp.policy.Rego),
		rego.Query(query),
		rego.Input(input),
	)

	results, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var findings []Violation

	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			findings = append(findings, g.createViolation(cp.policy, d, input))
		}
	}

	return findings, nil
}

// extractPackageName extracts the package name from Rego code.
func extractPackageName(rego string) string {
	lines := strings.Split(rego, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "openmast.policies"
}

// createViolation creates a Violation from a policy result.
func (g *Gate) createViolation(policy *Policy, result interface{}, input *Input) Violation {
	v := Violation{
		Policy:   policy.Name,
		Severity: policy.Severity,
	}

	if input.Document != nil {
		v.ObjectID = input.Document.ObjectID
	}

	switch val := result.(type) {
	case string:
		v.Message = val
	case map[string]interface{}:
		if msg, ok := val["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := val["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
		if id, ok := val["object_id"].(string); ok {
			v.ObjectID = id
		}
	default:
		v.Message = fmt.Sprintf("%v", result)
	}

	return v
}

// compileAndStorePolicy compiles a policy and stores it.
func (g *Gate) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	r := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Store(g.store),
		rego.Query("data"),
	)

	// Prepare the query for reuse
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	g.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		module:   module,
		query:    query,
		compiled: time.Now(),
	}

	g.logger.Debug().
		Str("policy", policy.Name).
		Msg("Policy compiled successfully")

	return nil
}

// loadBuiltinPolicies loads the built-in policies.
func (g *Gate) loadBuiltinPolicies(ctx context.Context) error {
	for i := range g.builtinPolicies {
		if err := g.compileAndStorePolicy(ctx, &g.builtinPolicies[i]); err != nil {
			return fmt.Errorf("failed to compile built-in policy %s: %w", g.builtinPolicies[i].Name, err)
		}
	}

	g.logger.Info().
		Int("count", len(g.builtinPolicies)).
		Msg("Built-in policies loaded")

	return nil
}

// GetPolicy returns a policy by name.
func (g *Gate) GetPolicy(name string) (*Policy, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cp, exists := g.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}

	return cp.policy, nil
}

// ListPolicies returns all loaded policies.
func (g *Gate) ListPolicies() []Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()

	policies := make([]Policy, 0, len(g.policies))
	for _, cp := range g.policies {
		policies = append(policies, *cp.policy)
	}

	return policies
}

// WatchPolicies hot-reloads site policies when files under paths change.
// The watcher runs until ctx is done. On every change the site policies are
// recompiled from disk on top of the built-ins; a compile failure keeps the
// previously loaded set.
func (g *Gate) WatchPolicies(ctx context.Context, paths []string) error {
	loader := NewLoader(g.logger)
	return loader.Watch(ctx, paths, func(policies []Policy) error {
		g.mu.Lock()
		defer g.mu.Unlock()

		replacement := make(map[string]*compiledPolicy)
		previous := g.policies
		g.policies = replacement

		for i := range g.builtinPolicies {
			if err := g.compileAndStorePolicy(ctx, &g.builtinPolicies[i]); err != nil {
				g.policies = previous
				return fmt.Errorf("failed to recompile built-in policy %s: %w", g.builtinPolicies[i].Name, err)
			}
		}
		for i := range policies {
			if err := g.compileAndStorePolicy(ctx, &policies[i]); err != nil {
				g.policies = previous
				return fmt.Errorf("failed to recompile policy %s: %w", policies[i].Name, err)
			}
		}

		g.logger.Info().
			Int("count", len(policies)).
			Msg("Site policies reloaded")
		return nil
	})
}

// ReloadPolicies drops all site policies and reloads the built-ins.
func (g *Gate) ReloadPolicies(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.policies = make(map[string]*compiledPolicy)
	return g.loadBuiltinPolicies(ctx)
}

// EnablePolicy enables a policy by name.
func (g *Gate) EnablePolicy(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp, exists := g.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = true
	g.logger.Info().Str("policy", name).Msg("Policy enabled")

	return nil
}

// DisablePolicy disables a policy by name.
func (g *Gate) DisablePolicy(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp, exists := g.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = false
	g.logger.Info().Str("policy", name).Msg("Policy disabled")

	return nil
}
