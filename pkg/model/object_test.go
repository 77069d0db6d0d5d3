package model

import "testing"

func TestNewObjectBaseGeneratesID(t *testing.T) {
	a := NewEntity("")
	b := NewEntity("")
	if a.ID() == "" || b.ID() == "" {
		t.Fatal("expected generated IDs")
	}
	if a.ID() == b.ID() {
		t.Error("expected distinct generated IDs")
	}
	if a.State() != StatePreManagement {
		t.Errorf("expected fresh object in pre-management, got %s", a.State())
	}
}

func TestObjectTags(t *testing.T) {
	e := NewEntity("e-1")

	if !e.AddTag("tier:web") {
		t.Error("expected first AddTag to report true")
	}
	if e.AddTag("tier:web") {
		t.Error("expected duplicate AddTag to report false")
	}
	e.AddTag("env:prod")

	tags := e.Tags()
	if len(tags) != 2 || tags[0] != "env:prod" || tags[1] != "tier:web" {
		t.Errorf("expected sorted tags, got %v", tags)
	}

	if !e.RemoveTag("tier:web") {
		t.Error("expected RemoveTag to report true")
	}
	if e.RemoveTag("tier:web") {
		t.Error("expected second RemoveTag to report false")
	}
}

func TestKindsPerType(t *testing.T) {
	tests := []struct {
		obj  ManagedObject
		want Kind
	}{
		{NewEntity("e"), KindEntity},
		{NewLocation("l"), KindLocation},
		{NewPolicy("p"), KindPolicy},
		{NewEnricher("en"), KindEnricher},
		{NewFeed("f"), KindFeed},
		{NewCatalogItem("c"), KindCatalogItem},
	}
	for _, tt := range tests {
		if got := tt.obj.Kind(); got != tt.want {
			t.Errorf("expected kind %s, got %s", tt.want, got)
		}
		if err := tt.obj.Kind().Validate(); err != nil {
			t.Errorf("expected %s to validate: %v", tt.want, err)
		}
	}

	if err := Kind("widget").Validate(); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestAllKindsOrdering(t *testing.T) {
	kinds := AllKinds()
	if len(kinds) != 6 {
		t.Fatalf("expected 6 kinds, got %d", len(kinds))
	}
	// Type definitions persist before the objects instantiated from them
	if kinds[0] != KindCatalogItem {
		t.Errorf("expected catalog-item first, got %s", kinds[0])
	}
}
