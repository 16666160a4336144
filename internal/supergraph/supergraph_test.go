package supergraph

import (
	"strings"
	"testing"

	"github.com/n9te9/federation-core/internal/compose"
	"github.com/n9te9/federation-core/internal/ingest"
)

func mustCompose(t *testing.T) *compose.Supergraph {
	t.Helper()
	users, errs := ingest.New("users", "http://users", []byte(`
type User @key(fields: "id") {
  id: ID!
  name: String!
}
`))
	if len(errs) != 0 {
		t.Fatalf("ingest users: %v", errs)
	}
	reviews, errs := ingest.New("reviews", "http://reviews", []byte(`
extend type User @key(fields: "id") {
  id: ID! @external
  reviews: [Review!]!
}

type Review @key(fields: "id") {
  id: ID!
  body: String!
}
`))
	if len(errs) != 0 {
		t.Fatalf("ingest reviews: %v", errs)
	}

	sg, cerrs := compose.Compose([]*ingest.Subgraph{users, reviews})
	if len(cerrs) != 0 {
		t.Fatalf("compose: %v", cerrs)
	}
	return sg
}

func TestPrintIncludesJoinMetadata(t *testing.T) {
	sg := mustCompose(t)
	sdl := Print(sg)

	for _, want := range []string{"join__Graph", "@join__owner", "@join__field", "@core"} {
		if !strings.Contains(sdl, want) {
			t.Fatalf("expected rendered CSDL to contain %q, got:\n%s", want, sdl)
		}
	}
}

func TestPrintIsDeterministic(t *testing.T) {
	sg := mustCompose(t)
	a := Print(sg)
	b := Print(sg)
	if a != b {
		t.Fatalf("expected two Print calls to produce identical output")
	}
}

func TestRoundTrip(t *testing.T) {
	sg := mustCompose(t)
	sdl := Print(sg)

	md, errs := Parse(sdl)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}

	user, ok := md.Types["User"]
	if !ok || !user.IsEntity() {
		t.Fatalf("expected User to round-trip as an entity")
	}
	if user.OwnerGraph != "users" {
		t.Fatalf("expected owner graph users, got %q", user.OwnerGraph)
	}
	if _, ok := md.Graphs["users"]; !ok {
		t.Fatalf("expected join__Graph to include users")
	}
	if _, ok := user.Fields["reviews"]; !ok {
		t.Fatalf("expected merged reviews field to round-trip")
	}
}

func TestRoundTripOverrideShareableInaccessible(t *testing.T) {
	legacy, errs := ingest.New("legacy", "http://legacy", []byte(`
type Product @key(fields: "id") {
  id: ID!
  price: Float! @shareable
  legacySku: String! @inaccessible
}
`))
	if len(errs) != 0 {
		t.Fatalf("ingest legacy: %v", errs)
	}
	pricing, errs := ingest.New("pricing", "http://pricing", []byte(`
extend type Product @key(fields: "id") {
  id: ID! @external
  price: Float! @override(from: "legacy")
}
`))
	if len(errs) != 0 {
		t.Fatalf("ingest pricing: %v", errs)
	}

	sg, cerrs := compose.Compose([]*ingest.Subgraph{legacy, pricing})
	if len(cerrs) != 0 {
		t.Fatalf("compose: %v", cerrs)
	}
	sdl := Print(sg)

	md, errs2 := Parse(sdl)
	if len(errs2) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs2)
	}

	product := md.Types["Product"]
	price, ok := product.Fields["price"]
	if !ok {
		t.Fatalf("expected price field to round-trip")
	}
	var legacyJoin, pricingJoin *JoinField
	for i := range price.Joins {
		switch price.Joins[i].Graph {
		case "legacy":
			legacyJoin = &price.Joins[i]
		case "pricing":
			pricingJoin = &price.Joins[i]
		}
	}
	if legacyJoin == nil || !legacyJoin.External {
		t.Fatalf("expected legacy's price join to round-trip as external after @override, got %+v", legacyJoin)
	}
	if pricingJoin == nil || pricingJoin.External || pricingJoin.OverrideFrom != "legacy" {
		t.Fatalf("expected pricing's price join to round-trip as resolving with override: legacy, got %+v", pricingJoin)
	}
	if !legacyJoin.Shareable {
		t.Fatalf("expected legacy's @shareable to round-trip")
	}

	sku, ok := product.Fields["legacySku"]
	if !ok || !sku.Inaccessible {
		t.Fatalf("expected legacySku to round-trip as @inaccessible")
	}
}

func TestUnsupportedFeatureRejected(t *testing.T) {
	_, errs := Parse(`
schema @core(feature: "https://specs.apollo.dev/core/v0.1") @core(feature: "https://specs.apollo.dev/join/v99.9") {
  query: Query
}

type Query {
  hello: String
}
`)
	found := false
	for _, e := range errs {
		if e.Code == CodeUnsupportedFeature {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s, got %v", CodeUnsupportedFeature, errs)
	}
}
