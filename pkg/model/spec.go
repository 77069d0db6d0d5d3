package model

// Spec describes how to instantiate a new managed object: the implementation
// type plus initial configuration. A spec may carry catalog provenance; if
// it does, the provenance must be resolved to a type-loading context before
// the remaining fields are interpreted, because their types may only be
// loadable through that context.
type Spec struct {
	// Type is the symbolic implementation type to instantiate.
	Type string

	// CatalogItemID records which catalog item this spec was sourced from,
	// or "" if it was built directly.
	CatalogItemID string

	// DisplayName is the name the instantiated object should carry.
	DisplayName string

	// Config holds the initial configuration for the new object.
	Config map[string]any

	// Parameters declare the configurable inputs the spec exposes.
	Parameters []SpecParameter
}

// SpecParameter is one configurable input declared by a spec.
type SpecParameter struct {
	// Name is the config key the parameter binds to.
	Name string

	// Label is the human-readable parameter name.
	Label string

	// Default is the value used when the parameter is not set.
	Default any
}

// Copy returns a deep-enough copy of the spec: the config map and parameter
// slice are copied, values are shared.
func (s *Spec) Copy() *Spec {
	if s == nil {
		return nil
	}
	out := &Spec{
		Type:          s.Type,
		CatalogItemID: s.CatalogItemID,
		DisplayName:   s.DisplayName,
	}
	if s.Config != nil {
		out.Config = make(map[string]any, len(s.Config))
		for k, v := range s.Config {
			out.Config[k] = v
		}
	}
	if len(s.Parameters) > 0 {
		out.Parameters = append([]SpecParameter(nil), s.Parameters...)
	}
	return out
}
