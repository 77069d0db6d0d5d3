package memento

import (
	"fmt"

	"github.com/openmast/openmast/pkg/model"
)

// converter encodes and decodes one managed-object kind. Dispatch is the
// codec's explicit per-kind table.
type converter interface {
	// skeleton obtains (and thereby registers) the object being restored.
	skeleton(lc LookupContext, id string) (model.ManagedObject, error)

	// encode writes the kind-specific fields.
	encode(c *Codec, obj model.ManagedObject) (map[string]any, error)

	// decode populates the kind-specific fields on the skeleton.
	decode(c *Codec, st *decodeState, obj model.ManagedObject, fields map[string]any) error
}

type entityConverter struct{}

func (entityConverter) skeleton(lc LookupContext, id string) (model.ManagedObject, error) {
	return lc.LookupEntity(id)
}

func (entityConverter) encode(c *Codec, obj model.ManagedObject) (map[string]any, error) {
	e, ok := obj.(*model.Entity)
	if !ok {
		return nil, fmt.Errorf("expected *model.Entity, got %T", obj)
	}
	fields := make(map[string]any)
	if e.Parent != nil {
		fields["parent"] = refNode(e.Parent)
	}
	if len(e.Children) > 0 {
		fields["children"] = refNodes(e.Children)
	}
	if len(e.Locations) > 0 {
		fields["locations"] = refNodes(e.Locations)
	}
	if len(e.Policies) > 0 {
		fields["policies"] = refNodes(e.Policies)
	}
	if len(e.Enrichers) > 0 {
		fields["enrichers"] = refNodes(e.Enrichers)
	}
	if len(e.Feeds) > 0 {
		fields["feeds"] = refNodes(e.Feeds)
	}
	encodeConfig(c, fields, e.Config)
	if e.Spec != nil {
		fields["spec"] = c.encodeSpec(e.Spec)
	}
	if result, ok := c.encodeTask(e.LastTask); ok {
		fields["lastTask"] = result
	}
	return fields, nil
}

func (entityConverter) decode(c *Codec, st *decodeState, obj model.ManagedObject, fields map[string]any) error {
	e := obj.(*model.Entity)

	if err := c.decodeField(st, "parent", func() error {
		parent, err := decodeRefField(c, st, fields["parent"], st.lc.LookupEntity)
		if err != nil {
			return err
		}
		e.Parent = parent
		return nil
	}); err != nil {
		return err
	}

	if err := c.decodeField(st, "children", func() error {
		children, err := decodeRefList(c, st, fields["children"], st.lc.LookupEntity)
		if err != nil {
			return err
		}
		e.Children = children
		return nil
	}); err != nil {
		return err
	}

	if err := c.decodeField(st, "locations", func() error {
		locs, err := decodeRefList(c, st, fields["locations"], st.lc.LookupLocation)
		if err != nil {
			return err
		}
		e.Locations = locs
		return nil
	}); err != nil {
		return err
	}

	if err := c.decodeField(st, "policies", func() error {
		pols, err := decodeRefList(c, st, fields["policies"], st.lc.LookupPolicy)
		if err != nil {
			return err
		}
		e.Policies = pols
		return nil
	}); err != nil {
		return err
	}

	if err := c.decodeField(st, "enrichers", func() error {
		enrs, err := decodeRefList(c, st, fields["enrichers"], st.lc.LookupEnricher)
		if err != nil {
			return err
		}
		e.Enrichers = enrs
		return nil
	}); err != nil {
		return err
	}

	if err := c.decodeField(st, "feeds", func() error {
		feeds, err := decodeRefList(c, st, fields["feeds"], st.lc.LookupFeed)
		if err != nil {
			return err
		}
		e.Feeds = feeds
		return nil
	}); err != nil {
		return err
	}

	if err := decodeConfigInto(c, st, fields, &e.Config); err != nil {
		return err
	}

	if err := c.decodeField(st, "spec", func() error {
		if node, ok := asSpecNode(fields["spec"]); ok {
			spec, err := c.decodeSpec(st, node)
			if err != nil {
				return err
			}
			e.Spec = spec
		}
		return nil
	}); err != nil {
		return err
	}

	v, ok := fields["lastTask"]
	e.LastTask = c.decodeTask("restored", v, ok)

	// Never persisted; satisfied from the restoring context. A skeleton
	// that already carries a lifecycle facade keeps it.
	if e.Context == nil {
		if mc, err := st.lc.LookupManagementContext(); err == nil {
			e.Context = mc
		}
	}
	return nil
}

type locationConverter struct{}

func (locationConverter) skeleton(lc LookupContext, id string) (model.ManagedObject, error) {
	return lc.LookupLocation(id)
}

func (locationConverter) encode(c *Codec, obj model.ManagedObject) (map[string]any, error) {
	l, ok := obj.(*model.Location)
	if !ok {
		return nil, fmt.Errorf("expected *model.Location, got %T", obj)
	}
	fields := make(map[string]any)
	if l.Parent != nil {
		fields["parent"] = refNode(l.Parent)
	}
	if len(l.Children) > 0 {
		fields["children"] = refNodes(l.Children)
	}
	encodeConfig(c, fields, l.Config)
	return fields, nil
}

func (locationConverter) decode(c *Codec, st *decodeState, obj model.ManagedObject, fields map[string]any) error {
	l := obj.(*model.Location)

	if err := c.decodeField(st, "parent", func() error {
		parent, err := decodeRefField(c, st, fields["parent"], st.lc.LookupLocation)
		if err != nil {
			return err
		}
		l.Parent = parent
		return nil
	}); err != nil {
		return err
	}

	if err := c.decodeField(st, "children", func() error {
		children, err := decodeRefList(c, st, fields["children"], st.lc.LookupLocation)
		if err != nil {
			return err
		}
		l.Children = children
		return nil
	}); err != nil {
		return err
	}

	return decodeConfigInto(c, st, fields, &l.Config)
}

type policyConverter struct{}

func (policyConverter) skeleton(lc LookupContext, id string) (model.ManagedObject, error) {
	return lc.LookupPolicy(id)
}

func (policyConverter) encode(c *Codec, obj model.ManagedObject) (map[string]any, error) {
	p, ok := obj.(*model.Policy)
	if !ok {
		return nil, fmt.Errorf("expected *model.Policy, got %T", obj)
	}
	fields := make(map[string]any)
	if p.Entity != nil {
		fields["entity"] = refNode(p.Entity)
	}
	encodeConfig(c, fields, p.Config)
	if p.Suppressed {
		fields["suppressed"] = true
	}
	return fields, nil
}

func (policyConverter) decode(c *Codec, st *decodeState, obj model.ManagedObject, fields map[string]any) error {
	p := obj.(*model.Policy)

	if err := c.decodeField(st, "entity", func() error {
		ent, err := decodeRefField(c, st, fields["entity"], st.lc.LookupEntity)
		if err != nil {
			return err
		}
		p.Entity = ent
		return nil
	}); err != nil {
		return err
	}

	if suppressed, ok := fields["suppressed"].(bool); ok {
		p.Suppressed = suppressed
	}
	return decodeConfigInto(c, st, fields, &p.Config)
}

type enricherConverter struct{}

func (enricherConverter) skeleton(lc LookupContext, id string) (model.ManagedObject, error) {
	return lc.LookupEnricher(id)
}

func (enricherConverter) encode(c *Codec, obj model.ManagedObject) (map[string]any, error) {
	e, ok := obj.(*model.Enricher)
	if !ok {
		return nil, fmt.Errorf("expected *model.Enricher, got %T", obj)
	}
	fields := make(map[string]any)
	if e.Entity != nil {
		fields["entity"] = refNode(e.Entity)
	}
	encodeConfig(c, fields, e.Config)
	if e.Suppressed {
		fields["suppressed"] = true
	}
	return fields, nil
}

func (enricherConverter) decode(c *Codec, st *decodeState, obj model.ManagedObject, fields map[string]any) error {
	e := obj.(*model.Enricher)

	if err := c.decodeField(st, "entity", func() error {
		ent, err := decodeRefField(c, st, fields["entity"], st.lc.LookupEntity)
		if err != nil {
			return err
		}
		e.Entity = ent
		return nil
	}); err != nil {
		return err
	}

	if suppressed, ok := fields["suppressed"].(bool); ok {
		e.Suppressed = suppressed
	}
	return decodeConfigInto(c, st, fields, &e.Config)
}

type feedConverter struct{}

func (feedConverter) skeleton(lc LookupContext, id string) (model.ManagedObject, error) {
	return lc.LookupFeed(id)
}

func (feedConverter) encode(c *Codec, obj model.ManagedObject) (map[string]any, error) {
	f, ok := obj.(*model.Feed)
	if !ok {
		return nil, fmt.Errorf("expected *model.Feed, got %T", obj)
	}
	fields := make(map[string]any)
	if f.Entity != nil {
		fields["entity"] = refNode(f.Entity)
	}
	encodeConfig(c, fields, f.Config)
	if result, ok := c.encodeTask(f.LastTask); ok {
		fields["lastTask"] = result
	}
	return fields, nil
}

func (feedConverter) decode(c *Codec, st *decodeState, obj model.ManagedObject, fields map[string]any) error {
	f := obj.(*model.Feed)

	if err := c.decodeField(st, "entity", func() error {
		ent, err := decodeRefField(c, st, fields["entity"], st.lc.LookupEntity)
		if err != nil {
			return err
		}
		f.Entity = ent
		return nil
	}); err != nil {
		return err
	}

	v, ok := fields["lastTask"]
	f.LastTask = c.decodeTask("restored", v, ok)
	return decodeConfigInto(c, st, fields, &f.Config)
}

type catalogItemConverter struct{}

func (catalogItemConverter) skeleton(lc LookupContext, id string) (model.ManagedObject, error) {
	return lc.LookupCatalogItem(id)
}

func (catalogItemConverter) encode(c *Codec, obj model.ManagedObject) (map[string]any, error) {
	item, ok := obj.(*model.CatalogItem)
	if !ok {
		return nil, fmt.Errorf("expected *model.CatalogItem, got %T", obj)
	}
	fields := make(map[string]any)
	if item.SymbolicName != "" {
		fields["symbolicName"] = item.SymbolicName
	}
	if item.Version != "" {
		fields["version"] = item.Version
	}
	if item.PlanSource != "" {
		fields["planSource"] = item.PlanSource
	}
	return fields, nil
}

func (catalogItemConverter) decode(c *Codec, st *decodeState, obj model.ManagedObject, fields map[string]any) error {
	item := obj.(*model.CatalogItem)
	if name, ok := fields["symbolicName"].(string); ok {
		item.SymbolicName = name
	}
	if version, ok := fields["version"].(string); ok {
		item.Version = version
	}
	if plan, ok := fields["planSource"].(string); ok {
		item.PlanSource = plan
	}
	return nil
}

// refNodes builds reference nodes for a slice of managed objects.
func refNodes[T model.ManagedObject](objs []T) []any {
	out := make([]any, 0, len(objs))
	for _, o := range objs {
		out = append(out, refNode(o))
	}
	return out
}

// decodeRefField resolves one optional reference field through the given
// typed lookup. A missing or non-reference value yields nil.
func decodeRefField[T model.ManagedObject](c *Codec, st *decodeState, v any, lookup func(string) (T, error)) (T, error) {
	var zero T
	kind, id, ok := asRefNode(v)
	if !ok {
		if v != nil {
			return zero, fmt.Errorf("expected reference node, got %T", v)
		}
		return zero, nil
	}
	_ = kind
	return lookup(id)
}

// decodeRefList resolves a list of reference nodes, preserving order.
// Malformed elements fail the list; the caller's decodeField decides
// whether that is fatal.
func decodeRefList[T model.ManagedObject](c *Codec, st *decodeState, v any, lookup func(string) (T, error)) ([]T, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected reference list, got %T", v)
	}
	out := make([]T, 0, len(raw))
	for i, elem := range raw {
		st.path.push(fmt.Sprintf("[%d]", i))
		_, id, isRef := asRefNode(elem)
		if !isRef {
			st.path.pop()
			return nil, fmt.Errorf("element %d is not a reference node", i)
		}
		obj, err := lookup(id)
		st.path.pop()
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// encodeConfig writes the config map if non-empty.
func encodeConfig(c *Codec, fields map[string]any, config map[string]any) {
	if len(config) == 0 {
		return
	}
	if enc, ok := c.encodeValue(config); ok {
		fields["config"] = enc
	}
}

// decodeConfigInto restores the config map, treating failures per the
// codec's field policy.
func decodeConfigInto(c *Codec, st *decodeState, fields map[string]any, dst *map[string]any) error {
	return c.decodeField(st, "config", func() error {
		raw, ok := fields["config"].(map[string]any)
		if !ok {
			return nil
		}
		dec, err := c.decodeValue(st, raw)
		if err != nil {
			return err
		}
		if cfg, ok := dec.(map[string]any); ok {
			*dst = cfg
		}
		return nil
	})
}
