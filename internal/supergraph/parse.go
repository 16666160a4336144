package supergraph

import (
	"fmt"
	"strings"

	"github.com/n9te9/graphql-parser/ast"

	"github.com/n9te9/federation-core/internal/fedast"
)

// Error reports an unsupported or malformed CSDL document, e.g. a @core
// feature this builder does not understand.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("[%s] %s", e.Code, e.Message) }

const CodeUnsupportedFeature = "UNSUPPORTED_FEATURE"

var supportedFeatures = map[string]bool{
	coreFeatureVersion: true,
	joinFeatureVersion: true,
}

// GraphRef describes one join__Graph enum member: a subgraph's stable
// routing name and its service URL.
type GraphRef struct {
	Name string
	URL  string
}

// JoinField is one @join__field annotation on a merged field: which
// subgraph declares it, whether that subgraph can actually resolve it
// (External true means it cannot, either a plain @external or an @override
// loser), any @override source, and any @requires/@provides fieldset
// carried along for the planner.
type JoinField struct {
	Graph        string
	External     bool
	Shareable    bool
	OverrideFrom string
	RequiresRaw  string
	ProvidesRaw  string
}

// Field is the routing-relevant view of one merged field.
type Field struct {
	Name         string
	Type         string
	Inaccessible bool
	Joins        []JoinField
}

// Type is the routing-relevant view of one merged type.
type Type struct {
	Name        string
	Kind        string // OBJECT, INTERFACE, UNION, ENUM, SCALAR, INPUT
	OwnerGraph  string // "" for value types
	Keys        map[string]string // graph name -> key fieldset
	Fields      map[string]*Field
	FieldOrder  []string
	UnionMembers []string
}

// Metadata is the parsed routing metadata extracted from a CSDL document:
// enough to drive query planning without re-running composition.
type Metadata struct {
	Graphs map[string]GraphRef
	Types  map[string]*Type
	Order  []string
}

// Parse parses a CSDL document previously produced by Print and extracts
// its routing metadata. This is the reverse half of the round-trip
// property: parse(build(compose(S))) must be equivalent to compose(S) for
// everything the planner needs (ownership, keys, requires/provides).
func Parse(csdl string) (*Metadata, []*Error) {
	doc, err := fedast.ParseDocument(csdl)
	if err != nil {
		return nil, []*Error{{Code: "PARSE_ERROR", Message: err.Error()}}
	}

	md := &Metadata{
		Graphs: make(map[string]GraphRef),
		Types:  make(map[string]*Type),
	}

	var errs []*Error

	for _, def := range doc.Definitions {
		if sd, ok := def.(*ast.SchemaDefinition); ok {
			errs = append(errs, checkFeatures(sd.Directives)...)
		}
	}

	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.EnumTypeDefinition:
			if d.Name.String() == "join__Graph" {
				parseJoinGraphEnum(d, md)
				continue
			}
			md.addType(&Type{Name: d.Name.String(), Kind: "ENUM", Fields: map[string]*Field{}})
		case *ast.ObjectTypeDefinition:
			md.addType(parseObjectType(d))
		case *ast.InterfaceTypeDefinition:
			t := parseInterfaceType(d)
			md.addType(t)
		case *ast.UnionTypeDefinition:
			members := make([]string, 0, len(d.Types))
			for _, m := range d.Types {
				members = append(members, m.Name.String())
			}
			md.addType(&Type{Name: d.Name.String(), Kind: "UNION", Fields: map[string]*Field{}, UnionMembers: members})
		case *ast.ScalarTypeDefinition:
			md.addType(&Type{Name: d.Name.String(), Kind: "SCALAR", Fields: map[string]*Field{}})
		case *ast.InputObjectTypeDefinition:
			md.addType(&Type{Name: d.Name.String(), Kind: "INPUT", Fields: map[string]*Field{}})
		}
	}

	return md, errs
}

func checkFeatures(directives []*ast.Directive) []*Error {
	var errs []*Error
	for _, d := range directives {
		if d.Name != "core" {
			continue
		}
		feature, ok := fedast.DirectiveArg(d, "feature")
		if !ok {
			continue
		}
		version := featureVersion(feature)
		if !supportedFeatures[version] {
			errs = append(errs, &Error{Code: CodeUnsupportedFeature,
				Message: fmt.Sprintf("unsupported @core feature %q", feature)})
		}
	}
	return errs
}

// featureVersion extracts "core/v0.1" out of
// "https://specs.apollo.dev/core/v0.1".
func featureVersion(feature string) string {
	const prefix = "https://specs.apollo.dev/"
	return strings.TrimPrefix(feature, prefix)
}

func parseJoinGraphEnum(d *ast.EnumTypeDefinition, md *Metadata) {
	for _, v := range d.Values {
		for _, dir := range v.Directives {
			if dir.Name != "join__graph" {
				continue
			}
			name, _ := fedast.DirectiveArg(dir, "name")
			url, _ := fedast.DirectiveArg(dir, "url")
			md.Graphs[name] = GraphRef{Name: name, URL: url}
		}
	}
}

func parseObjectType(d *ast.ObjectTypeDefinition) *Type {
	t := &Type{Name: d.Name.String(), Kind: "OBJECT", Fields: map[string]*Field{}, Keys: map[string]string{}}

	for _, dir := range d.Directives {
		switch dir.Name {
		case "join__owner":
			if graph, ok := fedast.DirectiveArg(dir, "graph"); ok {
				t.OwnerGraph = graph
			}
		case "join__type":
			graph, _ := fedast.DirectiveArg(dir, "graph")
			key, _ := fedast.DirectiveArg(dir, "key")
			if graph != "" {
				t.Keys[graph] = key
			}
		}
	}

	for _, f := range d.Fields {
		field := &Field{Name: f.Name.String(), Type: f.Type.String()}
		field.Inaccessible = fedast.HasDirective(f.Directives, "inaccessible")
		for _, dir := range f.Directives {
			if dir.Name != "join__field" {
				continue
			}
			graph, ok := fedast.DirectiveArg(dir, "graph")
			if !ok || graph == "" {
				continue
			}
			external, _ := fedast.DirectiveArg(dir, "external")
			shareable, _ := fedast.DirectiveArg(dir, "shareable")
			overrideFrom, _ := fedast.DirectiveArg(dir, "override")
			requires, _ := fedast.DirectiveArg(dir, "requires")
			provides, _ := fedast.DirectiveArg(dir, "provides")
			field.Joins = append(field.Joins, JoinField{
				Graph:        graph,
				External:     external == "true",
				Shareable:    shareable == "true",
				OverrideFrom: overrideFrom,
				RequiresRaw:  requires,
				ProvidesRaw:  provides,
			})
		}
		t.Fields[field.Name] = field
		t.FieldOrder = append(t.FieldOrder, field.Name)
	}

	if t.OwnerGraph != "" {
		t.Kind = "OBJECT"
	}
	return t
}

func parseInterfaceType(d *ast.InterfaceTypeDefinition) *Type {
	t := &Type{Name: d.Name.String(), Kind: "INTERFACE", Fields: map[string]*Field{}}
	for _, f := range d.Fields {
		field := &Field{Name: f.Name.String(), Type: f.Type.String()}
		t.Fields[field.Name] = field
		t.FieldOrder = append(t.FieldOrder, field.Name)
	}
	return t
}

func (md *Metadata) addType(t *Type) {
	if _, ok := md.Types[t.Name]; ok {
		return
	}
	md.Types[t.Name] = t
	md.Order = append(md.Order, t.Name)
}

// IsEntity reports whether t carries ownership/key metadata.
func (t *Type) IsEntity() bool { return t.OwnerGraph != "" }
