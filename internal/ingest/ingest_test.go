package ingest

import "testing"

const usersSDL = `
type User @key(fields: "id") {
  id: ID!
  name: String!
  email: String! @external
  reviews: [Review!]!
}

type Review @key(fields: "id") {
  id: ID!
  body: String!
  author: User! @provides(fields: "name")
}
`

const extendedUsersSDL = `
extend type User @key(fields: "id") {
  id: ID! @external
  loyaltyPoints: Int! @requires(fields: "id")
}
`

func TestNewObjectEntity(t *testing.T) {
	sg, errs := New("users", "http://users", []byte(usersSDL))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	user, ok := sg.Types["User"]
	if !ok {
		t.Fatalf("User type not found")
	}
	if !user.HasKey() {
		t.Fatalf("expected User to carry a @key")
	}
	if user.Keys[0].FieldsRaw != "id" {
		t.Fatalf("unexpected key fields: %q", user.Keys[0].FieldsRaw)
	}

	email := user.Fields["email"]
	if email == nil || !email.External {
		t.Fatalf("expected email to be external")
	}

	review := sg.Types["Review"]
	author := review.Fields["author"]
	if author == nil || author.ProvidesRaw != "name" {
		t.Fatalf("expected author to provide %q, got %+v", "name", author)
	}
}

func TestNewExtensionRequires(t *testing.T) {
	sg, errs := New("loyalty", "http://loyalty", []byte(extendedUsersSDL))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	user := sg.Types["User"]
	if !user.IsExtension {
		t.Fatalf("expected extension type")
	}
	points := user.Fields["loyaltyPoints"]
	if points == nil || points.RequiresRaw != "id" {
		t.Fatalf("expected loyaltyPoints to require %q, got %+v", "id", points)
	}
}

func TestKeyOnInterfaceRejected(t *testing.T) {
	src := `
interface Node @key(fields: "id") {
  id: ID!
}
`
	_, errs := New("bad", "http://bad", []byte(src))
	if len(errs) == 0 {
		t.Fatalf("expected an error for @key on interface")
	}
	found := false
	for _, e := range errs {
		if e.Code == CodeKeyOnNonObject {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s, got %v", CodeKeyOnNonObject, errs)
	}
}

func TestKeyFieldMissing(t *testing.T) {
	src := `
type Product @key(fields: "sku") {
  id: ID!
  name: String!
}
`
	_, errs := New("catalog", "http://catalog", []byte(src))
	if len(errs) == 0 {
		t.Fatalf("expected an error for missing key field")
	}
	found := false
	for _, e := range errs {
		if e.Code == CodeKeyFieldMissing {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s, got %v", CodeKeyFieldMissing, errs)
	}
}

func TestKeySelectsInvalidType(t *testing.T) {
	src := `
type Product @key(fields: "tags") {
  id: ID!
  tags: [String!]!
}
`
	_, errs := New("catalog", "http://catalog", []byte(src))
	if len(errs) == 0 {
		t.Fatalf("expected an error for list-typed key field")
	}
	found := false
	for _, e := range errs {
		if e.Code == CodeKeySelectsInvalidType {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s, got %v", CodeKeySelectsInvalidType, errs)
	}
}

func TestUnionMembers(t *testing.T) {
	src := `
type Book { id: ID! }
type Movie { id: ID! }
union Media = Book | Movie
`
	sg, errs := New("catalog", "http://catalog", []byte(src))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	media := sg.Types["Media"]
	if media == nil || media.Kind != KindUnion {
		t.Fatalf("expected Media union type")
	}
	if len(media.UnionMembers) != 2 {
		t.Fatalf("expected 2 union members, got %v", media.UnionMembers)
	}
}
