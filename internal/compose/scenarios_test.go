package compose

import (
	"testing"

	"github.com/n9te9/federation-core/internal/ingest"
)

// Scenario A (value type): two subgraphs declare an identical type with no
// @key; composition succeeds and the merged type carries no owner.
func TestScenarioAValueType(t *testing.T) {
	one := mustIngest(t, "geo1", `
type Position {
  x: Int
  y: Int
}
`)
	two := mustIngest(t, "geo2", `
type Position {
  x: Int
  y: Int
}
`)

	sg, errs := Compose([]*ingest.Subgraph{one, two})
	if len(errs) != 0 {
		t.Fatalf("unexpected compose errors: %v", errs)
	}

	pos := sg.Types["Position"]
	if pos == nil {
		t.Fatalf("expected Position to be present in the supergraph")
	}
	if pos.IsEntity {
		t.Fatalf("expected Position to be a value type, not an entity")
	}
	if pos.OwnerSubgraph != "" {
		t.Fatalf("expected a value type to carry no owner subgraph, got %q", pos.OwnerSubgraph)
	}
}

// Scenario E (invalid key rejected): a @key selects a field that resolves to
// a union type declared in a different subgraph, visible only once the two
// subgraphs are composed together.
func TestScenarioEInvalidKeyRejected(t *testing.T) {
	products := mustIngest(t, "products", `
type Product @key(fields: "category") {
  category: Category
  name: String!
}
`)
	categories := mustIngest(t, "categories", `
union Category = Electronics | Books

type Electronics {
  voltage: Int
}

type Books {
  isbn: String
}
`)

	_, errs := Compose([]*ingest.Subgraph{products, categories})
	found := false
	for _, e := range errs {
		if e.Code == CodeKeyFieldsSelectInvalidType {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s, got %v", CodeKeyFieldsSelectInvalidType, errs)
	}
}

// Scenario F (unused external): covered under its spec name here too, as
// TestComposeExternalUnused already exercises the same fixture shape.
func TestScenarioFUnusedExternal(t *testing.T) {
	owner := mustIngest(t, "owner", `
type Product @key(fields: "id") {
  id: ID!
  price: Float!
}
`)
	ext := mustIngest(t, "ext", `
extend type Product @key(fields: "id") {
  id: ID! @external
  unused: Float! @external
  shippingCost: Float!
}
`)

	_, errs := Compose([]*ingest.Subgraph{owner, ext})
	found := false
	for _, e := range errs {
		if e.Code == CodeExternalUnused {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s, got %v", CodeExternalUnused, errs)
	}
}
