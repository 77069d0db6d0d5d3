package memento

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openmast/openmast/pkg/catalog"
	"github.com/openmast/openmast/pkg/exec"
	"github.com/openmast/openmast/pkg/mgmt"
	"github.com/openmast/openmast/pkg/model"
)

// Codec serializes managed objects to mementos and populates skeletons
// from them. One codec instance serves one management plane; the task
// warning limiter is per instance so tests do not leak state into each
// other.
type Codec struct {
	logger         zerolog.Logger
	types          catalog.TypeRegistry
	converters     map[model.Kind]converter
	bestEffortRefs bool

	// taskWarnOnce limits the in-flight-task serialization warning to
	// once per codec instance.
	taskWarnOnce sync.Once
}

// Option configures a codec.
type Option func(*Codec)

// WithBestEffortRefs makes unknown reference IDs non-fatal: the field is
// left empty and a warning is recorded instead of failing the object.
func WithBestEffortRefs() Option {
	return func(c *Codec) { c.bestEffortRefs = true }
}

// NewCodec creates a codec backed by the given type registry.
func NewCodec(types catalog.TypeRegistry, logger zerolog.Logger, opts ...Option) *Codec {
	c := &Codec{
		logger: logger.With().Str("component", "memento-codec").Logger(),
		types:  types,
	}
	c.converters = map[model.Kind]converter{
		model.KindEntity:      entityConverter{},
		model.KindLocation:    locationConverter{},
		model.KindPolicy:      policyConverter{},
		model.KindEnricher:    enricherConverter{},
		model.KindFeed:        feedConverter{},
		model.KindCatalogItem: catalogItemConverter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode builds the memento for one managed object. Encoding never blocks
// on unresolved references: references are written as (kind, id) only.
func (c *Codec) Encode(obj model.ManagedObject) (*Memento, error) {
	conv, ok := c.converters[obj.Kind()]
	if !ok {
		return nil, fmt.Errorf("no converter for kind %q", obj.Kind())
	}

	fields, err := conv.encode(c, obj)
	if err != nil {
		return nil, fmt.Errorf("encoding %s %s: %w", obj.Kind(), obj.ID(), err)
	}

	if name := obj.DisplayName(); name != "" {
		fields["displayName"] = name
	}
	if tags := obj.Tags(); len(tags) > 0 {
		fields["tags"] = tags
	}

	return &Memento{
		ID:            obj.ID(),
		Kind:          obj.Kind(),
		Type:          obj.TypeName(),
		CatalogItemID: obj.CatalogItemID(),
		Fields:        fields,
	}, nil
}

// Serialize encodes one managed object to its portable byte form.
func (c *Codec) Serialize(obj model.ManagedObject) ([]byte, error) {
	m, err := c.Encode(obj)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling memento for %s: %w", obj.ID(), err)
	}
	return data, nil
}

// DecodeResult reports the outcome of deserializing one memento.
type DecodeResult struct {
	// Object is the populated (possibly still-skeleton-referenced)
	// object.
	Object model.ManagedObject

	// Warnings lists the non-fatal field failures, each with its
	// document position.
	Warnings []string
}

// decodeState tracks per-document decode state: the lookup context, the
// current document path, the type-loading context stack, and accumulated
// warnings.
type decodeState struct {
	lc       LookupContext
	path     pathTracker
	loaders  []catalog.TypeLoadingContext
	warnings []string
}

func (st *decodeState) pushLoader(lc catalog.TypeLoadingContext) {
	st.loaders = append(st.loaders, lc)
}

func (st *decodeState) popLoader() {
	if len(st.loaders) > 0 {
		st.loaders = st.loaders[:len(st.loaders)-1]
	}
}

// resolveType consults the loading-context stack innermost-first.
func (st *decodeState) resolveType(name string) (catalog.Factory, error) {
	for i := len(st.loaders) - 1; i >= 0; i-- {
		if f, err := st.loaders[i].ResolveType(name); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("type %q not resolvable in any active loading context", name)
}

// Deserialize parses a memento and populates the matching skeleton from
// the lookup context. The skeleton is obtained (and thereby registered)
// before any field is populated, so re-entrant lookups during a cyclic
// restore return the partially populated object instead of recursing.
//
// Field-level failures are non-fatal: they are logged with the lookup
// context's description and the document position, and reported as
// warnings. Unresolved references are fatal to the object unless the codec
// was built with WithBestEffortRefs. A missing ID or kind is fatal.
func (c *Codec) Deserialize(data []byte, lc LookupContext) (*DecodeResult, error) {
	var m Memento
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshaling memento: %w", err)
	}
	return c.Restore(&m, lc)
}

// Restore populates the skeleton for an already-parsed memento.
func (c *Codec) Restore(m *Memento, lc LookupContext) (*DecodeResult, error) {
	if m.ID == "" {
		return nil, mgmt.NewInternalError("memento has no object ID", nil)
	}
	if err := m.Kind.Validate(); err != nil {
		return nil, mgmt.NewInternalError("memento has invalid kind", err).WithObject(m.ID)
	}
	conv := c.converters[m.Kind]
	if conv == nil {
		return nil, fmt.Errorf("no converter for kind %q", m.Kind)
	}

	// Register the skeleton before populating anything.
	obj, err := conv.skeleton(lc, m.ID)
	if err != nil {
		return nil, err
	}

	st := &decodeState{lc: lc}
	setter, _ := obj.(baseSetter)

	// The provenance header is resolved before the fields are
	// interpreted; types referenced by the remainder of this document may
	// only be loadable through the resulting context.
	if m.CatalogItemID != "" {
		loader, resolvedID, err := c.resolveProvenance(st, m.CatalogItemID)
		if err != nil {
			return nil, err
		}
		if setter != nil {
			setter.SetCatalogItemID(resolvedID)
		}
		st.pushLoader(loader)
		defer st.popLoader()
	}

	if setter != nil {
		setter.SetTypeName(m.Type)
	}
	c.decodeBase(st, obj, m.Fields)

	if err := conv.decode(c, st, obj, m.Fields); err != nil {
		return nil, err
	}

	return &DecodeResult{Object: obj, Warnings: st.warnings}, nil
}

// baseSetter is the mutable identity surface shared by all skeletons.
type baseSetter interface {
	SetDisplayName(string)
	AddTag(string) bool
	SetTypeName(string)
	SetCatalogItemID(string)
}

// decodeBase restores display name and tags.
func (c *Codec) decodeBase(st *decodeState, obj model.ManagedObject, fields map[string]any) {
	setter, ok := obj.(baseSetter)
	if !ok {
		return
	}
	if name, ok := fields["displayName"].(string); ok {
		setter.SetDisplayName(name)
	}
	if rawTags, ok := fields["tags"].([]any); ok {
		for _, t := range rawTags {
			if tag, ok := t.(string); ok {
				setter.AddTag(tag)
			}
		}
	}
}

// decodeField runs one field's decode function, catching failures. An
// unresolved reference fails the whole object unless best-effort refs are
// enabled; any other error is logged with position context and recorded as
// a warning.
func (c *Codec) decodeField(st *decodeState, name string, fn func() error) error {
	st.path.push(name)
	defer st.path.pop()

	err := fn()
	if err == nil {
		return nil
	}
	if mgmt.IsUnresolvedReference(err) && !c.bestEffortRefs {
		var pe *mgmt.PlaneError
		if ok := asPlaneError(err, &pe); ok {
			return pe.WithPath(st.path.String())
		}
		return err
	}

	msg := fmt.Sprintf("%s at %s: %v", st.lc.Describe(), st.path.String(), err)
	c.logger.Warn().
		Str("lookup_context", st.lc.Describe()).
		Str("path", st.path.String()).
		Err(err).
		Msg("field not restored")
	st.warnings = append(st.warnings, msg)
	return nil
}

// resolveProvenance maps a catalog item ID to its loading context,
// following one superseded-by mapping before failing.
func (c *Codec) resolveProvenance(st *decodeState, id string) (catalog.TypeLoadingContext, string, error) {
	loader, err := c.types.ResolveProvenance(id)
	if err == nil {
		return loader, id, nil
	}

	if newID, ok := c.types.SupersededBy(id); ok {
		loader, err2 := c.types.ResolveProvenance(newID)
		if err2 == nil {
			c.logger.Warn().
				Str("catalog_item", id).
				Str("superseded_by", newID).
				Msg("catalog item no longer resolvable, using superseding item")
			return loader, newID, nil
		}
		return nil, "", mgmt.NewProvenanceError(id, err2)
	}
	return nil, "", mgmt.NewProvenanceError(id, err)
}

// encodeValue converts one field value to its portable form. Managed
// objects become reference nodes, specs become spec nodes, task handles
// are substituted by their resolved result or skipped, and management
// contexts are skipped. The second return is false when the value must be
// omitted entirely.
func (c *Codec) encodeValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case model.ManagedObject:
		return refNode(val), true
	case *model.Spec:
		return c.encodeSpec(val), true
	case *exec.TaskHandle:
		return c.encodeTask(val)
	case model.ManagementContextRef:
		return nil, false
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if enc, ok := c.encodeValue(inner); ok {
				out[k] = enc
			}
		}
		return out, true
	case []any:
		out := make([]any, 0, len(val))
		for _, inner := range val {
			if enc, ok := c.encodeValue(inner); ok {
				out = append(out, enc)
			}
		}
		return out, true
	default:
		return val, true
	}
}

// encodeSpec writes a spec node. The provenance ID leads the node so a
// reader can resolve the loading context before interpreting the rest; the
// in-memory document form has native lookahead, so the ID is written once.
func (c *Codec) encodeSpec(s *model.Spec) map[string]any {
	if s == nil {
		return nil
	}
	node := make(map[string]any)
	if s.CatalogItemID != "" {
		node["catalogItemId"] = s.CatalogItemID
	}
	if s.Type != "" {
		node["type"] = s.Type
	}
	if s.DisplayName != "" {
		node["displayName"] = s.DisplayName
	}
	if len(s.Config) > 0 {
		if cfg, ok := c.encodeValue(s.Config); ok {
			node["config"] = cfg
		}
	}
	if len(s.Parameters) > 0 {
		params := make([]any, 0, len(s.Parameters))
		for _, p := range s.Parameters {
			params = append(params, map[string]any{
				"name":    p.Name,
				"label":   p.Label,
				"default": p.Default,
			})
		}
		node["parameters"] = params
	}
	return map[string]any{specKey: node}
}

// encodeTask substitutes a task-valued field. A successfully finished task
// contributes its resolved result; a failed or still-running task writes
// nothing, with a warning the first time per codec instance.
func (c *Codec) encodeTask(h *exec.TaskHandle) (any, bool) {
	if h == nil {
		return nil, false
	}
	if h.Status() == exec.StatusSucceeded {
		result, _ := h.Result()
		return result, true
	}
	c.taskWarnOnce.Do(func() {
		c.logger.Warn().
			Str("task", h.ID()).
			Str("status", string(h.Status())).
			Msg("task-valued field not persisted; unfinished tasks are not restorable (reported once)")
	})
	return nil, false
}

// decodeValue converts one portable value back to its live form, resolving
// reference nodes through the lookup context and spec nodes through the
// provenance machinery.
func (c *Codec) decodeValue(st *decodeState, v any) (any, error) {
	if kind, id, ok := asRefNode(v); ok {
		return c.lookupRef(st, kind, id)
	}
	if node, ok := asSpecNode(v); ok {
		return c.decodeSpec(st, node)
	}

	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			st.path.push(k)
			dec, err := c.decodeValue(st, inner)
			st.path.pop()
			if err != nil {
				return nil, err
			}
			out[k] = dec
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(val))
		for i, inner := range val {
			st.path.push(fmt.Sprintf("[%d]", i))
			dec, err := c.decodeValue(st, inner)
			st.path.pop()
			if err != nil {
				return nil, err
			}
			out = append(out, dec)
		}
		return out, nil
	default:
		return val, nil
	}
}

// lookupRef resolves a reference node through the matching lookup call.
func (c *Codec) lookupRef(st *decodeState, kind model.Kind, id string) (any, error) {
	switch kind {
	case model.KindEntity:
		return st.lc.LookupEntity(id)
	case model.KindLocation:
		return st.lc.LookupLocation(id)
	case model.KindPolicy:
		return st.lc.LookupPolicy(id)
	case model.KindEnricher:
		return st.lc.LookupEnricher(id)
	case model.KindFeed:
		return st.lc.LookupFeed(id)
	case model.KindCatalogItem:
		return st.lc.LookupCatalogItem(id)
	default:
		return nil, fmt.Errorf("reference with unknown kind %q", kind)
	}
}

// decodeSpec restores a spec node. The provenance ID is peeked first; if
// present it must resolve (directly or via one superseded-by mapping) to a
// loading context before the remaining fields are interpreted.
func (c *Codec) decodeSpec(st *decodeState, node map[string]any) (*model.Spec, error) {
	spec := &model.Spec{}

	if id, ok := node["catalogItemId"].(string); ok && id != "" {
		loader, resolvedID, err := c.resolveProvenance(st, id)
		if err != nil {
			return nil, err
		}
		spec.CatalogItemID = resolvedID
		st.pushLoader(loader)
		defer st.popLoader()
	}

	if t, ok := node["type"].(string); ok {
		spec.Type = t
		if spec.CatalogItemID != "" {
			if _, err := st.resolveType(t); err != nil {
				st.warnings = append(st.warnings,
					fmt.Sprintf("%s at %s: %v", st.lc.Describe(), st.path.String(), err))
			}
		}
	}
	if name, ok := node["displayName"].(string); ok {
		spec.DisplayName = name
	}

	if rawCfg, ok := node["config"].(map[string]any); ok {
		st.path.push("config")
		cfg, err := c.decodeValue(st, rawCfg)
		st.path.pop()
		if err != nil {
			return nil, err
		}
		spec.Config, _ = cfg.(map[string]any)
	}

	if rawParams, ok := node["parameters"].([]any); ok {
		for _, rp := range rawParams {
			pm, ok := rp.(map[string]any)
			if !ok {
				continue
			}
			param := model.SpecParameter{Default: pm["default"]}
			param.Name, _ = pm["name"].(string)
			param.Label, _ = pm["label"].(string)
			spec.Parameters = append(spec.Parameters, param)
		}
	}
	return spec, nil
}

// decodeTask restores a task-valued field: a present value becomes a
// completed handle carrying the resolved result, an absent one stays nil.
func (c *Codec) decodeTask(name string, v any, ok bool) *exec.TaskHandle {
	if !ok || v == nil {
		return nil
	}
	return exec.CompletedHandle(name, v)
}

// asPlaneError is a small errors.As wrapper kept separate for readability.
func asPlaneError(err error, target **mgmt.PlaneError) bool {
	pe, ok := err.(*mgmt.PlaneError)
	if ok {
		*target = pe
	}
	return ok
}
