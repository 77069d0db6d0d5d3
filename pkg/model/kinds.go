package model

import "fmt"

// Kind identifies which family of managed object an ID refers to.
type Kind string

const (
	// KindEntity is an application component in the managed graph.
	KindEntity Kind = "entity"

	// KindLocation is a deployment target an entity runs in.
	KindLocation Kind = "location"

	// KindPolicy is an automation rule attached to an entity.
	KindPolicy Kind = "policy"

	// KindEnricher derives new sensor values on an entity.
	KindEnricher Kind = "enricher"

	// KindFeed pushes external monitoring data into an entity.
	KindFeed Kind = "feed"

	// KindCatalogItem is a catalog-sourced type definition.
	KindCatalogItem Kind = "catalog-item"
)

// AllKinds lists every managed-object kind in persistence order.
// Catalog items come first so type definitions are enumerable before the
// objects instantiated from them.
func AllKinds() []Kind {
	return []Kind{
		KindCatalogItem,
		KindLocation,
		KindEntity,
		KindPolicy,
		KindEnricher,
		KindFeed,
	}
}

// Validate checks that the kind is one of the known managed-object kinds.
func (k Kind) Validate() error {
	switch k {
	case KindEntity, KindLocation, KindPolicy, KindEnricher, KindFeed, KindCatalogItem:
		return nil
	default:
		return fmt.Errorf("invalid managed-object kind: %q", string(k))
	}
}
