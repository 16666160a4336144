package planner

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/n9te9/federation-core/internal/compose"
	"github.com/n9te9/federation-core/internal/fedast"
	"github.com/n9te9/federation-core/internal/ingest"
	"github.com/n9te9/federation-core/internal/supergraph"
)

func buildMetadata(t *testing.T) *supergraph.Metadata {
	t.Helper()

	users, errs := ingest.New("users", "http://users", []byte(`
type Query {
  user(id: ID!): User
}

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
  author: User! @provides(fields: "id")
}
`))
	if len(errs) != 0 {
		t.Fatalf("ingest reviews: %v", errs)
	}

	sg, cerrs := compose.Compose([]*ingest.Subgraph{users, reviews})
	if len(cerrs) != 0 {
		t.Fatalf("compose: %v", cerrs)
	}

	sdl := supergraph.Print(sg)
	md, perrs := supergraph.Parse(sdl)
	if len(perrs) != 0 {
		t.Fatalf("parse: %v", perrs)
	}
	return md
}

func TestPlanSingleSubgraphQuery(t *testing.T) {
	md := buildMetadata(t)
	doc, err := fedast.ParseDocument(`query { user(id: "1") { id name } }`)
	if err != nil {
		t.Fatalf("parse operation: %v", err)
	}

	plan, err := Plan(md, doc, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.RootNode.Kind != KindFetch {
		t.Fatalf("expected a single Fetch node, got %s", plan.RootNode.Kind)
	}
	if plan.RootNode.Fetch.ServiceName != "users" {
		t.Fatalf("expected users service, got %s", plan.RootNode.Fetch.ServiceName)
	}
}

func TestPlanCrossSubgraphEntityBoundary(t *testing.T) {
	md := buildMetadata(t)
	doc, err := fedast.ParseDocument(`query { user(id: "1") { id name reviews { body } } }`)
	if err != nil {
		t.Fatalf("parse operation: %v", err)
	}

	plan, err := Plan(md, doc, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	if plan.RootNode.Kind != KindSequence {
		t.Fatalf("expected Sequence wrapping root fetch + entity flatten, got %s", plan.RootNode.Kind)
	}

	var sawFlatten bool
	for _, n := range plan.RootNode.Nodes {
		if n.Kind == KindFlatten {
			sawFlatten = true
			if n.Nodes[0].Fetch.ServiceName != "reviews" {
				t.Fatalf("expected flatten fetch to target reviews, got %s", n.Nodes[0].Fetch.ServiceName)
			}
		}
	}
	if !sawFlatten {
		t.Fatalf("expected a Flatten node for the reviews boundary field")
	}
}

func TestPlanDeterministic(t *testing.T) {
	md := buildMetadata(t)
	doc, err := fedast.ParseDocument(`query { user(id: "1") { id name reviews { body } } }`)
	if err != nil {
		t.Fatalf("parse operation: %v", err)
	}

	a, err := Plan(md, doc, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	b, err := Plan(md, doc, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("expected identical plans for repeated Plan calls (-a +b):\n%s", diff)
	}
}

func TestPlanUnknownFieldIsNoResolver(t *testing.T) {
	md := buildMetadata(t)
	doc, err := fedast.ParseDocument(`query { doesNotExist }`)
	if err != nil {
		t.Fatalf("parse operation: %v", err)
	}

	_, err = Plan(md, doc, nil)
	if !errors.Is(err, ErrNoResolver) {
		t.Fatalf("expected ErrNoResolver, got %v", err)
	}
}
