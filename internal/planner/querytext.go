package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/n9te9/graphql-parser/ast"
)

// renderOperation stringifies a root-level Fetch's selection set, grounded
// on federation/executor/query_builder_v2.go's buildRootQuery/writeSelection
// walk. Variable declarations are omitted here: the planner does not carry
// schema-level argument types across the CSDL boundary the way the
// teacher's live SubGraphV2.Schema does, so operationString is rendered as
// an anonymous operation and argument values are written literally/as
// variable references — a host dispatching the fetch supplies the
// surrounding operation header from its own transport layer.
func renderOperation(opType string, selections []ast.Selection) string {
	var sb strings.Builder
	sb.WriteString(opType)
	sb.WriteString(" {\n")
	for _, sel := range selections {
		writeSelection(&sb, sel, "  ")
	}
	sb.WriteString("}")
	return sb.String()
}

// renderEntityOperation stringifies an _entities fetch the way
// buildEntityQuery does.
func renderEntityOperation(typeName string, selections []ast.Selection) string {
	var sb strings.Builder
	sb.WriteString("query($representations: [_Any!]!) {\n")
	sb.WriteString("  _entities(representations: $representations) {\n")
	sb.WriteString("    ... on ")
	sb.WriteString(typeName)
	sb.WriteString(" {\n")
	for _, sel := range selections {
		writeSelection(&sb, sel, "      ")
	}
	sb.WriteString("    }\n  }\n}")
	return sb.String()
}

func writeSelection(sb *strings.Builder, sel ast.Selection, indent string) {
	switch s := sel.(type) {
	case *ast.Field:
		sb.WriteString(indent)
		if s.Alias != nil && s.Alias.String() != "" {
			sb.WriteString(s.Alias.String())
			sb.WriteString(": ")
		}
		sb.WriteString(s.Name.String())
		if len(s.Arguments) > 0 {
			sb.WriteString("(")
			for i, arg := range s.Arguments {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(arg.Name.String())
				sb.WriteString(": ")
				writeValue(sb, arg.Value)
			}
			sb.WriteString(")")
		}
		if len(s.SelectionSet) > 0 {
			sb.WriteString(" {\n")
			for _, child := range s.SelectionSet {
				writeSelection(sb, child, indent+"  ")
			}
			sb.WriteString(indent)
			sb.WriteString("}")
		}
		sb.WriteString("\n")
	case *ast.InlineFragment:
		sb.WriteString(indent)
		sb.WriteString("... on ")
		sb.WriteString(s.TypeCondition.Name.String())
		sb.WriteString(" {\n")
		for _, child := range s.SelectionSet {
			writeSelection(sb, child, indent+"  ")
		}
		sb.WriteString(indent)
		sb.WriteString("}\n")
	case *ast.FragmentSpread:
		sb.WriteString(indent)
		sb.WriteString("...")
		sb.WriteString(s.Name.String())
		sb.WriteString("\n")
	}
}

// collectVariableUsages returns the sorted, deduplicated set of operation
// variable names referenced anywhere in selections, grounded on
// federation/executor/query_builder_v2.go's collectVariables/
// collectVariablesRecursive/collectVariablesFromValue walk.
func collectVariableUsages(selections []ast.Selection) []string {
	seen := map[string]bool{}
	collectVariableUsagesRecursive(selections, seen)
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collectVariableUsagesRecursive(selections []ast.Selection, seen map[string]bool) {
	for _, sel := range selections {
		switch s := sel.(type) {
		case *ast.Field:
			for _, arg := range s.Arguments {
				collectVariablesFromValue(arg.Value, seen)
			}
			if len(s.SelectionSet) > 0 {
				collectVariableUsagesRecursive(s.SelectionSet, seen)
			}
		case *ast.InlineFragment:
			if len(s.SelectionSet) > 0 {
				collectVariableUsagesRecursive(s.SelectionSet, seen)
			}
		}
	}
}

func collectVariablesFromValue(val ast.Value, seen map[string]bool) {
	switch v := val.(type) {
	case *ast.Variable:
		seen[v.Name] = true
	case *ast.ListValue:
		for _, item := range v.Values {
			collectVariablesFromValue(item, seen)
		}
	case *ast.ObjectValue:
		for _, f := range v.Fields {
			collectVariablesFromValue(f.Value, seen)
		}
	}
}

func writeValue(sb *strings.Builder, val ast.Value) {
	switch v := val.(type) {
	case *ast.StringValue:
		fmt.Fprintf(sb, "%q", v.Value)
	case *ast.IntValue:
		fmt.Fprintf(sb, "%d", v.Value)
	case *ast.FloatValue:
		fmt.Fprintf(sb, "%f", v.Value)
	case *ast.BooleanValue:
		fmt.Fprintf(sb, "%t", v.Value)
	case *ast.Variable:
		sb.WriteString("$")
		sb.WriteString(v.Name)
	case *ast.ListValue:
		sb.WriteString("[")
		for i, item := range v.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, item)
		}
		sb.WriteString("]")
	case *ast.ObjectValue:
		sb.WriteString("{")
		for i, f := range v.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name.String())
			sb.WriteString(": ")
			writeValue(sb, f.Value)
		}
		sb.WriteString("}")
	case *ast.EnumValue:
		sb.WriteString(v.Value)
	default:
		sb.WriteString("null")
	}
}
