// Package fedast centralizes the module's only dependency on the external
// GraphQL lexer/parser/AST (github.com/n9te9/graphql-parser). Every package
// that needs to turn source text into an AST, or an AST fragment back into
// text, goes through here so the rest of the module speaks in terms of
// *ast.Document and ast.Selection rather than repeating lexer/parser
// plumbing at every call site.
package fedast

import (
	"fmt"
	"strings"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

// ParseDocument parses an SDL document or operation document and returns the
// resulting AST. Parser errors are joined into a single error value.
func ParseDocument(src string) (*ast.Document, error) {
	l := lexer.New(src)
	p := parser.New(l)
	doc := p.ParseDocument()
	if errs := p.Errors(); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, fmt.Sprint(e))
		}
		return nil, fmt.Errorf("parse error: %s", strings.Join(msgs, "; "))
	}
	return doc, nil
}

// ParseFieldSet parses a `@key`/`@requires`/`@provides` fields argument as a
// selection set. Per the design note to "reuse the same operation parser"
// rather than writing a bespoke FieldSet grammar, the fieldset text is
// wrapped as an anonymous query (`{ <fields> }`) and fed back through
// ParseDocument; the resulting operation's SelectionSet is the FieldSet.
// This supports nested selections and inline fragments on abstract types,
// unlike a plain whitespace split of the fieldset string.
func ParseFieldSet(fields string) ([]ast.Selection, error) {
	fields = strings.TrimSpace(fields)
	if fields == "" {
		return nil, nil
	}

	doc, err := ParseDocument("{ " + fields + " }")
	if err != nil {
		return nil, fmt.Errorf("invalid field set %q: %w", fields, err)
	}

	op := FirstOperation(doc)
	if op == nil {
		return nil, fmt.Errorf("invalid field set %q: no selections", fields)
	}
	return op.SelectionSet, nil
}

// FirstOperation returns the first OperationDefinition in a document, or nil.
func FirstOperation(doc *ast.Document) *ast.OperationDefinition {
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok {
			return op
		}
	}
	return nil
}

// FragmentDefinitions collects every named fragment definition in a document.
func FragmentDefinitions(doc *ast.Document) map[string]*ast.FragmentDefinition {
	frags := make(map[string]*ast.FragmentDefinition)
	for _, def := range doc.Definitions {
		if frag, ok := def.(*ast.FragmentDefinition); ok {
			frags[frag.Name.String()] = frag
		}
	}
	return frags
}

// NamedType unwraps NonNull/List wrappers and returns the innermost named
// type's name (e.g. "[Product!]!" -> "Product").
func NamedType(t ast.Type) string {
	switch typ := t.(type) {
	case *ast.NamedType:
		return typ.Name.String()
	case *ast.ListType:
		return NamedType(typ.Type)
	case *ast.NonNullType:
		return NamedType(typ.Type)
	default:
		return ""
	}
}

// FieldSetString renders a parsed FieldSet back to the flattened
// space-separated field-name form used in `fields: "..."` directive
// arguments. Nested selections are rendered with braces so round-tripping
// through ParseFieldSet reproduces the same shape.
func FieldSetString(sels []ast.Selection) string {
	var sb strings.Builder
	writeFieldSet(&sb, sels)
	return sb.String()
}

func writeFieldSet(sb *strings.Builder, sels []ast.Selection) {
	for i, sel := range sels {
		if i > 0 {
			sb.WriteString(" ")
		}
		switch s := sel.(type) {
		case *ast.Field:
			sb.WriteString(s.Name.String())
			if len(s.SelectionSet) > 0 {
				sb.WriteString(" { ")
				writeFieldSet(sb, s.SelectionSet)
				sb.WriteString(" }")
			}
		case *ast.InlineFragment:
			sb.WriteString("... on ")
			sb.WriteString(s.TypeCondition.Name.String())
			sb.WriteString(" { ")
			writeFieldSet(sb, s.SelectionSet)
			sb.WriteString(" }")
		}
	}
}

// FieldNames returns the top-level field names referenced in a FieldSet,
// flattening inline fragments (used for simple composite-key splitting).
func FieldNames(sels []ast.Selection) []string {
	var names []string
	for _, sel := range sels {
		switch s := sel.(type) {
		case *ast.Field:
			names = append(names, s.Name.String())
		case *ast.InlineFragment:
			names = append(names, FieldNames(s.SelectionSet)...)
		}
	}
	return names
}

// NewName builds a synthetic *ast.Name for AST nodes constructed by the
// composer/planner rather than parsed from source (e.g. an injected
// "__typename" selection).
func NewName(value string) *ast.Name {
	return &ast.Name{Value: value}
}

// NewField builds a synthetic leaf *ast.Field selection.
func NewField(name string) *ast.Field {
	return &ast.Field{Name: NewName(name)}
}

// DirectiveArg returns the string value of a directive argument, with
// surrounding quotes trimmed, or "" if absent.
func DirectiveArg(d *ast.Directive, name string) (string, bool) {
	for _, arg := range d.Arguments {
		if arg.Name.String() == name {
			return strings.Trim(arg.Value.String(), `"`), true
		}
	}
	return "", false
}

// HasDirective reports whether name appears in directives.
func HasDirective(directives []*ast.Directive, name string) bool {
	return GetDirective(directives, name) != nil
}

// GetDirective returns the first directive named name, or nil.
func GetDirective(directives []*ast.Directive, name string) *ast.Directive {
	for _, d := range directives {
		if d.Name == name {
			return d
		}
	}
	return nil
}
