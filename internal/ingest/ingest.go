// Package ingest implements the Schema Ingest & Normalizer component: it
// parses a single subgraph's SDL, recognizes the federation directive set
// (@key, @external, @requires, @provides, @extends) plus the supplementary
// directives the rest of the pipeline needs (@shareable, @override,
// @inaccessible), strips them from the field's public shape, and records
// them in a per-(type,field) side table.
//
// Grounded on federation/graph/subgraph_v2.go's entity/field extraction,
// generalized to a full TypeDef model covering every schema kind instead of
// only @key-bearing object types.
package ingest

import (
	"fmt"
	"strings"

	"github.com/n9te9/graphql-parser/ast"

	"github.com/n9te9/federation-core/internal/fedast"
)

// Kind classifies a type definition.
type Kind int

const (
	KindObject Kind = iota
	KindInterface
	KindUnion
	KindEnum
	KindScalar
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "OBJECT"
	case KindInterface:
		return "INTERFACE"
	case KindUnion:
		return "UNION"
	case KindEnum:
		return "ENUM"
	case KindScalar:
		return "SCALAR"
	case KindInput:
		return "INPUT"
	default:
		return "UNKNOWN"
	}
}

// Argument is a single field or directive argument declaration.
type Argument struct {
	Name string
	Type string
}

// FieldDef is a single field declaration plus its federation annotations.
type FieldDef struct {
	Name      string
	Type      string // rendered SDL type, e.g. "[Product!]!"
	Arguments []Argument

	External     bool
	Requires     []ast.Selection
	RequiresRaw  string
	Provides     []ast.Selection
	ProvidesRaw  string
	Shareable    bool
	Inaccessible bool
	OverrideFrom string // @override(from: "...") source subgraph, if any
}

// Key is a single `@key(fields: "...")` declaration on an object type.
type Key struct {
	FieldsRaw  string
	Fields     []ast.Selection
	Resolvable bool
}

// TypeDef is the normalized, per-subgraph model of one named type.
type TypeDef struct {
	Name        string
	Kind        Kind
	Fields      map[string]*FieldDef
	FieldOrder  []string
	Keys        []Key
	IsExtension bool

	// UnionMembers is populated only for Kind == KindUnion.
	UnionMembers []string
}

// HasKey reports whether the type declares at least one @key.
func (t *TypeDef) HasKey() bool { return len(t.Keys) > 0 }

// Subgraph is the normalized model of one federated service's schema.
type Subgraph struct {
	Name string
	URL  string

	Types     map[string]*TypeDef
	TypeOrder []string
	Document  *ast.Document // the parsed SDL, directives retained
}

// Error is a Schema Ingest & Normalizer validation failure. Codes are the
// SCHEMA_* family from SPEC_FULL.md §4.1.
type Error struct {
	Code     string
	Message  string
	Subgraph string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: [%s] %s", e.Subgraph, e.Code, e.Message)
}

const (
	CodeUnknownDirective       = "SCHEMA_UNKNOWN_DIRECTIVE"
	CodeKeyOnNonObject         = "SCHEMA_KEY_ON_NON_OBJECT"
	CodeKeyFieldMissing        = "SCHEMA_KEY_FIELD_MISSING"
	CodeKeySelectsInvalidType  = "SCHEMA_KEY_SELECTS_INVALID_TYPE"
	CodeRequiresOnNonEntity    = "SCHEMA_REQUIRES_ON_NON_ENTITY_FIELD"
	CodeProvidesOnNonEntity    = "SCHEMA_PROVIDES_ON_NON_ENTITY_FIELD"
)

// federationDirectives is the recognized directive set; anything else
// encountered on a field that looks like a federation directive
// (conventionally lower-camel, matching none of these) is reported as
// CodeUnknownDirective only when it collides with a reserved join__/core
// namespace the composer depends on — ordinary custom application
// directives are left untouched and re-emitted as-is, matching the spec's
// instruction to strip only the federation set.
var federationDirectives = map[string]bool{
	"key": true, "external": true, "requires": true, "provides": true,
	"extends": true, "shareable": true, "override": true, "inaccessible": true,
}

var reservedDirectivePrefixes = []string{"core__", "join__"}

// New parses src as one subgraph's SDL and returns its normalized model.
// Ingest errors are aggregated, not short-circuited, mirroring the
// composer's aggregation policy (SPEC_FULL.md §4.2) one layer down.
func New(name, url string, src []byte) (*Subgraph, []*Error) {
	doc, err := fedast.ParseDocument(string(src))
	if err != nil {
		return nil, []*Error{{Code: "SCHEMA_PARSE_ERROR", Message: err.Error(), Subgraph: name}}
	}

	sg := &Subgraph{
		Name:     name,
		URL:      url,
		Types:    make(map[string]*TypeDef),
		Document: doc,
	}

	var errs []*Error

	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			td, tdErrs := normalizeObject(name, d.Name.String(), d.Fields, d.Directives, false)
			errs = append(errs, tdErrs...)
			sg.addType(td)
		case *ast.ObjectTypeExtension:
			td, tdErrs := normalizeObject(name, d.Name.String(), d.Fields, d.Directives, true)
			errs = append(errs, tdErrs...)
			sg.addType(td)
		case *ast.InterfaceTypeDefinition:
			td, tdErrs := normalizeObject(name, d.Name.String(), d.Fields, d.Directives, false)
			td.Kind = KindInterface
			errs = append(errs, tdErrs...)
			sg.addType(td)
		case *ast.UnionTypeDefinition:
			sg.addType(&TypeDef{
				Name:         d.Name.String(),
				Kind:         KindUnion,
				Fields:       map[string]*FieldDef{},
				UnionMembers: unionMemberNames(d),
			})
		case *ast.EnumTypeDefinition:
			sg.addType(&TypeDef{Name: d.Name.String(), Kind: KindEnum, Fields: map[string]*FieldDef{}})
		case *ast.ScalarTypeDefinition:
			sg.addType(&TypeDef{Name: d.Name.String(), Kind: KindScalar, Fields: map[string]*FieldDef{}})
		case *ast.InputObjectTypeDefinition:
			sg.addType(&TypeDef{Name: d.Name.String(), Kind: KindInput, Fields: map[string]*FieldDef{}})
		}
	}

	// CodeKeyOnNonObject: @key only ever gets parsed off ObjectType{Definition,Extension}
	// above, but an interface or input can still carry the directive in
	// source; scan interface and input definitions once more for a stray
	// @key. Union, enum and scalar definitions are not scanned.
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.InterfaceTypeDefinition:
			if fedast.HasDirective(d.Directives, "key") {
				errs = append(errs, &Error{Code: CodeKeyOnNonObject, Subgraph: name,
					Message: fmt.Sprintf("interface %q cannot declare @key", d.Name.String())})
			}
		case *ast.InputObjectTypeDefinition:
			if fedast.HasDirective(d.Directives, "key") {
				errs = append(errs, &Error{Code: CodeKeyOnNonObject, Subgraph: name,
					Message: fmt.Sprintf("input %q cannot declare @key", d.Name.String())})
			}
		}
	}

	errs = append(errs, validateKeysAndRequires(name, sg)...)

	return sg, errs
}

func (sg *Subgraph) addType(td *TypeDef) {
	if existing, ok := sg.Types[td.Name]; ok {
		// Same subgraph declaring both `type X` and `extend type X` fields
		// (e.g. base type plus a same-file extension) — union the fields.
		for _, fn := range td.FieldOrder {
			if _, dup := existing.Fields[fn]; !dup {
				existing.FieldOrder = append(existing.FieldOrder, fn)
			}
			existing.Fields[fn] = td.Fields[fn]
		}
		existing.Keys = append(existing.Keys, td.Keys...)
		return
	}
	sg.Types[td.Name] = td
	sg.TypeOrder = append(sg.TypeOrder, td.Name)
}

func normalizeObject(subgraphName, typeName string, fields []*ast.FieldDefinition, directives []*ast.Directive, isExtension bool) (*TypeDef, []*Error) {
	td := &TypeDef{
		Name:        typeName,
		Kind:        KindObject,
		Fields:      make(map[string]*FieldDef),
		IsExtension: isExtension,
	}

	var errs []*Error

	for _, d := range directives {
		if d.Name == "key" {
			key, err := parseKey(d)
			if err != nil {
				errs = append(errs, &Error{Code: CodeKeyFieldMissing, Subgraph: subgraphName,
					Message: fmt.Sprintf("%s.@key: %v", typeName, err)})
				continue
			}
			td.Keys = append(td.Keys, key)
		}
	}

	for _, f := range fields {
		fd := &FieldDef{
			Name: f.Name.String(),
			Type: f.Type.String(),
		}
		for _, arg := range f.Arguments {
			fd.Arguments = append(fd.Arguments, Argument{Name: arg.Name.String(), Type: arg.Type.String()})
		}

		for _, d := range f.Directives {
			switch d.Name {
			case "external":
				fd.External = true
			case "shareable":
				fd.Shareable = true
			case "inaccessible":
				fd.Inaccessible = true
			case "override":
				if from, ok := fedast.DirectiveArg(d, "from"); ok {
					fd.OverrideFrom = from
				}
			case "requires":
				if raw, ok := fedast.DirectiveArg(d, "fields"); ok {
					fd.RequiresRaw = raw
					sels, err := fedast.ParseFieldSet(raw)
					if err != nil {
						errs = append(errs, &Error{Code: CodeKeyFieldMissing, Subgraph: subgraphName,
							Message: fmt.Sprintf("%s.%s: @requires %v", typeName, fd.Name, err)})
					}
					fd.Requires = sels
				}
			case "provides":
				if raw, ok := fedast.DirectiveArg(d, "fields"); ok {
					fd.ProvidesRaw = raw
					sels, err := fedast.ParseFieldSet(raw)
					if err != nil {
						errs = append(errs, &Error{Code: CodeKeyFieldMissing, Subgraph: subgraphName,
							Message: fmt.Sprintf("%s.%s: @provides %v", typeName, fd.Name, err)})
					}
					fd.Provides = sels
				}
			default:
				if !federationDirectives[d.Name] && hasReservedPrefix(d.Name) {
					errs = append(errs, &Error{Code: CodeUnknownDirective, Subgraph: subgraphName,
						Message: fmt.Sprintf("%s.%s: unexpected reserved directive @%s", typeName, fd.Name, d.Name)})
				}
			}
		}

		// CodeRequiresOnNonEntity / CodeProvidesOnNonEntity: within a single
		// subgraph we can only tell a type is "known to be an entity" if it
		// carries @key itself or is an extension (extensions are only ever
		// legal on entities). The full cross-subgraph check runs again in
		// the composer as REQUIRES_FIELDS_MISSING_EXTERNAL/
		// PROVIDES_FIELDS_MISSING_EXTERNAL once every subgraph is visible.
		knownEntity := len(td.Keys) > 0 || isExtension
		if fd.RequiresRaw != "" && !knownEntity {
			errs = append(errs, &Error{Code: CodeRequiresOnNonEntity, Subgraph: subgraphName,
				Message: fmt.Sprintf("%s.%s: @requires on a field of a non-entity type", typeName, fd.Name)})
		}
		if fd.ProvidesRaw != "" && !knownEntity {
			errs = append(errs, &Error{Code: CodeProvidesOnNonEntity, Subgraph: subgraphName,
				Message: fmt.Sprintf("%s.%s: @provides on a field of a non-entity type", typeName, fd.Name)})
		}

		td.Fields[fd.Name] = fd
		td.FieldOrder = append(td.FieldOrder, fd.Name)
	}

	return td, errs
}

func parseKey(d *ast.Directive) (Key, error) {
	key := Key{Resolvable: true}
	for _, arg := range d.Arguments {
		switch arg.Name.String() {
		case "fields":
			key.FieldsRaw = strings.Trim(arg.Value.String(), `"`)
		case "resolvable":
			if arg.Value.String() == "false" {
				key.Resolvable = false
			}
		}
	}
	if key.FieldsRaw == "" {
		return key, fmt.Errorf("missing fields argument")
	}
	sels, err := fedast.ParseFieldSet(key.FieldsRaw)
	if err != nil {
		return key, err
	}
	key.Fields = sels
	return key, nil
}

// validateKeysAndRequires runs the subgraph-local half of the key-soundness
// checks: every key field must resolve against fields declared on that same
// type in this subgraph (requires/provides fields are not checked here), and
// key fields must not
// select a list type (lists, interfaces and unions are forbidden key
// components per spec §4.2 KEY_FIELDS_SELECT_INVALID_TYPE).
func validateKeysAndRequires(subgraphName string, sg *Subgraph) []*Error {
	var errs []*Error

	for _, typeName := range sg.TypeOrder {
		td := sg.Types[typeName]
		if td.Kind != KindObject {
			continue
		}
		for _, key := range td.Keys {
			for _, name := range fedast.FieldNames(key.Fields) {
				fd, ok := td.Fields[name]
				if !ok {
					// An extension's @key often references a field declared
					// only on the owner (not repeated here); that is
					// resolved at composition. Only flag as ingest-time
					// error when the field is absent AND the type is not an
					// extension (a plain typo within a non-extension declaration).
					if !td.IsExtension {
						errs = append(errs, &Error{Code: CodeKeyFieldMissing, Subgraph: subgraphName,
							Message: fmt.Sprintf("%s.@key references missing field %q", typeName, name)})
					}
					continue
				}
				if isListType(fd.Type) {
					errs = append(errs, &Error{Code: CodeKeySelectsInvalidType, Subgraph: subgraphName,
						Message: fmt.Sprintf("%s.@key field %q is a list, which cannot be a key component", typeName, name)})
				}
				if refType, ok := sg.Types[stripWrappers(fd.Type)]; ok {
					if refType.Kind == KindInterface || refType.Kind == KindUnion {
						errs = append(errs, &Error{Code: CodeKeySelectsInvalidType, Subgraph: subgraphName,
							Message: fmt.Sprintf("%s.@key field %q resolves to %s, which cannot be a key component", typeName, name, refType.Kind)})
					}
				}
			}
		}
	}

	return errs
}

func isListType(t string) bool {
	return strings.Contains(strings.TrimSuffix(t, "!"), "[")
}

func stripWrappers(t string) string {
	t = strings.TrimSuffix(t, "!")
	t = strings.TrimPrefix(t, "[")
	t = strings.TrimSuffix(t, "]")
	t = strings.TrimSuffix(t, "!")
	return t
}

func hasReservedPrefix(name string) bool {
	for _, p := range reservedDirectivePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func unionMemberNames(d *ast.UnionTypeDefinition) []string {
	names := make([]string, 0, len(d.Types))
	for _, t := range d.Types {
		names = append(names, t.Name.String())
	}
	return names
}
