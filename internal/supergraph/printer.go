// Package supergraph renders a composed Supergraph to a portable Core
// Schema (CSDL) document — `@core`, the `join__Graph` enum, and
// `@join__owner`/`@join__type`/`@join__field` annotations — and parses that
// CSDL back into routing metadata.
//
// Grounded on roderm-graphql-go/federation/schema_printer.go's sorted,
// deterministic printer style (explicit sort.Strings/sort.Slice over map
// keys, strings.Builder output, one print function per type kind),
// generalized from graphql-go/graphql's reflective type model to the
// compose.Supergraph model and extended with the join__ directive family
// this spec's CSDL needs that a plain SDL printer has no use for.
package supergraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/n9te9/federation-core/internal/compose"
	"github.com/n9te9/federation-core/internal/ingest"
)

const (
	coreFeatureVersion = "core/v0.1"
	joinFeatureVersion = "join/v0.1"
)

// Print renders sg as a portable CSDL document. Output is fully
// deterministic: two calls on an equivalent Supergraph always produce
// byte-identical text, satisfying the round-trip property
// parse(build(compose(S))) == compose(S).
func Print(sg *compose.Supergraph) string {
	var out strings.Builder

	out.WriteString(`schema @core(feature: "https://specs.apollo.dev/core/v0.1") @core(feature: "https://specs.apollo.dev/join/v0.1") {` + "\n")
	out.WriteString("  query: Query\n")
	out.WriteString("}\n\n")

	printJoinGraphEnum(sg, &out)

	for _, typeName := range sg.TypeOrder {
		t := sg.Types[typeName]
		switch t.Kind {
		case ingest.KindObject:
			printObject(sg, t, &out)
		case ingest.KindInterface:
			printInterface(t, &out)
		case ingest.KindUnion:
			printUnion(t, &out)
		case ingest.KindEnum:
			printEnum(t, &out)
		case ingest.KindScalar:
			printScalar(t, &out)
		case ingest.KindInput:
			printInput(t, &out)
		}
	}

	return strings.TrimSpace(out.String()) + "\n"
}

func printJoinGraphEnum(sg *compose.Supergraph, out *strings.Builder) {
	names := make([]string, 0, len(sg.Subgraphs))
	for _, s := range sg.Subgraphs {
		names = append(names, s.Name)
	}
	sort.Strings(names)

	out.WriteString("enum join__Graph {\n")
	for _, name := range names {
		var url string
		for _, s := range sg.Subgraphs {
			if s.Name == name {
				url = s.URL
			}
		}
		fmt.Fprintf(out, "  %s @join__graph(name: %q, url: %q)\n", enumSafeName(name), name, url)
	}
	out.WriteString("}\n\n")
}

// enumSafeName maps a subgraph name onto a valid join__Graph enum value
// token. It only sanitizes characters the Name grammar rejects (hyphens,
// dots) — it deliberately does not change case, so a round trip through
// Print/Parse recovers the original subgraph name for plain identifiers
// like "products" or "inventory", which is what the routing layer keys its
// dispatch table on.
func enumSafeName(subgraphName string) string {
	return strings.NewReplacer("-", "_", ".", "_").Replace(subgraphName)
}

func printObject(sg *compose.Supergraph, t *compose.Type, out *strings.Builder) {
	fmt.Fprintf(out, "type %s", t.Name)
	if t.IsEntity {
		fmt.Fprintf(out, " @join__owner(graph: %s)", enumSafeName(t.OwnerSubgraph))
		for _, sub := range sg.Subgraphs {
			std, ok := sub.Types[t.Name]
			if !ok {
				continue
			}
			for _, key := range std.Keys {
				fmt.Fprintf(out, " @join__type(graph: %s, key: %q)", enumSafeName(sub.Name), key.FieldsRaw)
			}
		}
	}
	out.WriteString(" {\n")

	fields := append([]string(nil), t.Order...)
	sort.Strings(fields)
	for _, fieldName := range fields {
		fo := t.Fields[fieldName]
		fmt.Fprintf(out, "  %s: %s", fieldName, fo.Field.Type)

		graphs := make([]string, 0, len(fo.Declared))
		for g := range fo.Declared {
			graphs = append(graphs, g)
		}
		sort.Strings(graphs)
		for _, g := range graphs {
			fd := fo.Declared[g]
			attrs := []string{"graph: " + enumSafeName(g)}
			if !fo.CanResolve[g] {
				// Declared here but not resolvable: either @external, or
				// resolution was taken over by another graph's @override.
				attrs = append(attrs, "external: true")
			}
			if fd.Shareable {
				attrs = append(attrs, "shareable: true")
			}
			if fd.OverrideFrom != "" {
				attrs = append(attrs, fmt.Sprintf("override: %q", fd.OverrideFrom))
			}
			// requires/provides are this graph's own fieldset, not a single
			// canonical one shared across every declaring graph.
			if fd.Requires != nil {
				attrs = append(attrs, fmt.Sprintf("requires: %q", fd.RequiresRaw))
			}
			if fd.Provides != nil {
				attrs = append(attrs, fmt.Sprintf("provides: %q", fd.ProvidesRaw))
			}
			fmt.Fprintf(out, " @join__field(%s)", strings.Join(attrs, ", "))
		}

		if fo.Field.Inaccessible {
			out.WriteString(" @inaccessible")
		}
		out.WriteString("\n")
	}

	out.WriteString("}\n\n")
}

func printInterface(t *compose.Type, out *strings.Builder) {
	fmt.Fprintf(out, "interface %s {\n", t.Name)
	fields := append([]string(nil), t.Order...)
	sort.Strings(fields)
	for _, fieldName := range fields {
		fmt.Fprintf(out, "  %s: %s\n", fieldName, t.Fields[fieldName].Field.Type)
	}
	out.WriteString("}\n\n")
}

func printUnion(t *compose.Type, out *strings.Builder) {
	members := append([]string(nil), t.UnionMembers...)
	sort.Strings(members)
	fmt.Fprintf(out, "union %s = %s\n\n", t.Name, strings.Join(members, " | "))
}

func printEnum(t *compose.Type, out *strings.Builder) {
	fmt.Fprintf(out, "enum %s {\n", t.Name)
	out.WriteString("}\n\n")
}

func printScalar(t *compose.Type, out *strings.Builder) {
	fmt.Fprintf(out, "scalar %s\n\n", t.Name)
}

func printInput(t *compose.Type, out *strings.Builder) {
	fmt.Fprintf(out, "input %s {\n", t.Name)
	fields := append([]string(nil), t.Order...)
	sort.Strings(fields)
	for _, fieldName := range fields {
		fmt.Fprintf(out, "  %s: %s\n", fieldName, t.Fields[fieldName].Field.Type)
	}
	out.WriteString("}\n\n")
}
