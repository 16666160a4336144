package compose

import (
	"testing"

	"github.com/n9te9/federation-core/internal/ingest"
)

func mustIngest(t *testing.T, name, src string) *ingest.Subgraph {
	t.Helper()
	sg, errs := ingest.New(name, "http://"+name, []byte(src))
	if len(errs) != 0 {
		t.Fatalf("ingest %s: unexpected errors: %v", name, errs)
	}
	return sg
}

const usersSDL = `
type User @key(fields: "id") {
  id: ID!
  name: String!
}
`

const reviewsSDL = `
extend type User @key(fields: "id") {
  id: ID! @external
  reviews: [Review!]!
}

type Review @key(fields: "id") {
  id: ID!
  body: String!
  author: User!
}
`

func TestComposeBasicEntity(t *testing.T) {
	users := mustIngest(t, "users", usersSDL)
	reviews := mustIngest(t, "reviews", reviewsSDL)

	sg, errs := Compose([]*ingest.Subgraph{users, reviews})
	if len(errs) != 0 {
		t.Fatalf("unexpected compose errors: %v", errs)
	}

	user := sg.Types["User"]
	if user == nil || !user.IsEntity {
		t.Fatalf("expected User to be an entity")
	}
	if user.OwnerSubgraph != "users" {
		t.Fatalf("expected users to own User, got %q", user.OwnerSubgraph)
	}
	if _, ok := user.Fields["reviews"]; !ok {
		t.Fatalf("expected merged User to carry reviews field from extension")
	}
}

func TestComposeExternalUnused(t *testing.T) {
	owner := mustIngest(t, "owner", `
type Product @key(fields: "id") {
  id: ID!
  price: Float!
}
`)
	ext := mustIngest(t, "ext", `
extend type Product @key(fields: "id") {
  id: ID! @external
  weight: Float! @external
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
		t.Fatalf("expected %s for unreferenced external field, got %v", CodeExternalUnused, errs)
	}
}

func TestComposeRequiresFieldsMissingExternal(t *testing.T) {
	owner := mustIngest(t, "owner", `
type Product @key(fields: "id") {
  id: ID!
  weight: Float!
}
`)
	ext := mustIngest(t, "ext", `
extend type Product @key(fields: "id") {
  id: ID! @external
  shippingCost: Float! @requires(fields: "weight")
}
`)

	_, errs := Compose([]*ingest.Subgraph{owner, ext})
	found := false
	for _, e := range errs {
		if e.Code == CodeRequiresFieldsMissingExt {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s, got %v", CodeRequiresFieldsMissingExt, errs)
	}
}

func TestComposeOverrideTransfersResolution(t *testing.T) {
	legacy := mustIngest(t, "legacy", `
type Product @key(fields: "id") {
  id: ID!
  price: Float!
}
`)
	pricing := mustIngest(t, "pricing", `
extend type Product @key(fields: "id") {
  id: ID! @external
  price: Float! @override(from: "legacy")
}
`)

	sg, errs := Compose([]*ingest.Subgraph{legacy, pricing})
	if len(errs) != 0 {
		t.Fatalf("unexpected compose errors: %v", errs)
	}

	fo := sg.Types["Product"].Fields["price"]
	if fo.CanResolve["legacy"] {
		t.Fatalf("expected @override to strip legacy's ability to resolve price")
	}
	if !fo.CanResolve["pricing"] {
		t.Fatalf("expected pricing to resolve price after @override")
	}
	if _, declared := fo.Declared["legacy"]; !declared {
		t.Fatalf("expected legacy's declaration to remain recorded for printer fidelity")
	}
}

func TestIdentityIsDeterministic(t *testing.T) {
	users := mustIngest(t, "users", usersSDL)
	reviews := mustIngest(t, "reviews", reviewsSDL)

	sg1, _ := Compose([]*ingest.Subgraph{users, reviews})
	users2 := mustIngest(t, "users", usersSDL)
	reviews2 := mustIngest(t, "reviews", reviewsSDL)
	sg2, _ := Compose([]*ingest.Subgraph{users2, reviews2})

	if sg1.Identity() != sg2.Identity() {
		t.Fatalf("expected identical composition to produce the same Identity")
	}
}
