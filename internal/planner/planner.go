// Package planner implements the Query Planner: given routing metadata
// parsed from a supergraph's CSDL and a single GraphQL operation, it
// produces a deterministic Fetch/Flatten/Sequence/Parallel plan tree.
//
// Grounded on federation/planner/planner_v2.go's fetch-group construction
// and entity-boundary detection (findAndBuildEntitySteps,
// ensureAndInjectKeyFields), federation/planner/planner_v2_optimized.go's
// @provides shortcut, and federation/graph/weighted_graph.go's cost model
// for preferring a same-subgraph resolution over a cross-subgraph entity
// fetch. The teacher's flat StepV2/PlanV2 list is reworked here into the
// nested Fetch/Flatten/Sequence/Parallel tree the spec's data model names,
// per SPEC_FULL.md §4.4 ("Keep HOW, replace WHAT").
package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/n9te9/graphql-parser/ast"

	"github.com/n9te9/federation-core/internal/fedast"
	"github.com/n9te9/federation-core/internal/supergraph"
)

// Sentinel errors, comparable with errors.Is.
var (
	ErrNoResolver            = errors.New("NO_RESOLVER")
	ErrUnsatisfiableRequires = errors.New("UNSATISFIABLE_REQUIRES")
)

// NodeKind is the plan tree node discriminator (spec §3).
type NodeKind string

const (
	KindFetch    NodeKind = "Fetch"
	KindFlatten  NodeKind = "Flatten"
	KindSequence NodeKind = "Sequence"
	KindParallel NodeKind = "Parallel"
)

// Fetch is a single request to one subgraph.
type Fetch struct {
	ServiceName        string   `json:"serviceName"`
	OperationName      string   `json:"operationName,omitempty"`
	OperationString    string   `json:"operationString"`
	ParentType         string   `json:"parentType,omitempty"` // set for entity (_entities) fetches
	RepresentationKeys []string `json:"representationKeys,omitempty"`
	// VariableUsages is the sorted set of operation variable names referenced
	// anywhere in this fetch's selection set; only these are included in the
	// subgraph request's variable map at execution time.
	VariableUsages []string `json:"variableUsages,omitempty"`
}

// Node is one node of the plan tree. Exactly one of Fetch or Nodes/Path is
// populated depending on Kind.
type Node struct {
	Kind  NodeKind `json:"kind"`
	Fetch *Fetch   `json:"fetch,omitempty"`
	Path  []string `json:"path,omitempty"`  // Flatten only
	Nodes []*Node  `json:"nodes,omitempty"` // Sequence/Parallel/Flatten(single child)
}

// Plan is the root of a query execution plan.
type Plan struct {
	OperationType string `json:"operationType"`
	RootNode      *Node  `json:"rootNode"`
}

type planner struct {
	md          *supergraph.Metadata
	fragments   map[string]*ast.FragmentDefinition
	nextFetchID int
}

// Plan builds a deterministic plan tree for operation doc against md.
// Plan holds no shared mutable state and is safe to call concurrently from
// multiple goroutines (spec §5).
func Plan(md *supergraph.Metadata, doc *ast.Document, variables map[string]any) (*Plan, error) {
	op := fedast.FirstOperation(doc)
	if op == nil {
		return nil, errors.New("no operation found")
	}
	if len(op.SelectionSet) == 0 {
		return nil, errors.New("empty selection set")
	}

	opType := string(op.Operation)
	rootTypeName := rootTypeNameFor(opType)

	if opType == "subscription" {
		graphs := map[string]bool{}
		for _, sel := range op.SelectionSet {
			f, ok := sel.(*ast.Field)
			if !ok {
				continue
			}
			field, ok := md.Types[rootTypeName].Fields[f.Name.String()]
			if !ok || !hasResolver(field.Joins) {
				return nil, fmt.Errorf("%w: %s.%s", ErrNoResolver, rootTypeName, f.Name.String())
			}
			graphs[bestGraph(field.Joins)] = true
		}
		if len(graphs) > 1 {
			return nil, fmt.Errorf("subscriptions must resolve within a single subgraph")
		}
	}

	pl := &planner{md: md, fragments: fedast.FragmentDefinitions(doc)}

	groups, err := pl.groupRootFields(rootTypeName, op.SelectionSet)
	if err != nil {
		return nil, err
	}

	rootNames := make([]string, 0, len(groups))
	for name := range groups {
		rootNames = append(rootNames, name)
	}
	sort.Strings(rootNames)

	var topNodes []*Node
	for _, graphName := range rootNames {
		fields := groups[graphName]
		node, err := pl.buildRootFetch(graphName, rootTypeName, opType, fields)
		if err != nil {
			return nil, err
		}
		topNodes = append(topNodes, node)
	}

	var root *Node
	switch {
	case len(topNodes) == 1:
		root = topNodes[0]
	case opType == "mutation":
		root = &Node{Kind: KindSequence, Nodes: topNodes}
	default:
		root = &Node{Kind: KindParallel, Nodes: topNodes}
	}

	if variables != nil {
		if missing := missingVariables(root, variables); len(missing) > 0 {
			return nil, fmt.Errorf("operation references undeclared variable(s): %s", strings.Join(missing, ", "))
		}
	}

	return &Plan{OperationType: opType, RootNode: root}, nil
}

// missingVariables walks every Fetch in the plan tree and reports, sorted,
// any VariableUsages name absent from the supplied variables map — mirroring
// inferVariableType's variables-map membership check in
// federation/executor/query_builder_v2.go, applied here at plan time instead
// of at query-build time since variableUsages is now itself planner output.
func missingVariables(n *Node, variables map[string]any) []string {
	seen := map[string]bool{}
	var walk func(*Node)
	walk = func(n *Node) {
		if n.Fetch != nil {
			for _, v := range n.Fetch.VariableUsages {
				if _, ok := variables[v]; !ok {
					seen[v] = true
				}
			}
		}
		for _, c := range n.Nodes {
			walk(c)
		}
	}
	walk(n)
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func rootTypeNameFor(opType string) string {
	switch opType {
	case "mutation":
		return "Mutation"
	case "subscription":
		return "Subscription"
	default:
		return "Query"
	}
}

// groupRootFields buckets root selection fields by the subgraph that
// resolves each one (step 1-2 of §4.4: field-resolution graph, fetch-group
// formation). Fields with more than one resolving graph (@shareable) pick
// the lexicographically-first graph name, which keeps planning
// deterministic without needing a live cost model for the root level.
func (pl *planner) groupRootFields(rootTypeName string, selections []ast.Selection) (map[string][]ast.Selection, error) {
	groups := make(map[string][]ast.Selection)
	rootType, ok := pl.md.Types[rootTypeName]
	if !ok {
		return nil, fmt.Errorf("%w: root type %s not found", ErrNoResolver, rootTypeName)
	}

	for _, sel := range pl.expand(selections) {
		field, ok := sel.(*ast.Field)
		if !ok {
			continue
		}
		name := field.Name.String()
		if name == "__typename" {
			continue
		}
		fd, ok := rootType.Fields[name]
		if !ok || !hasResolver(fd.Joins) {
			return nil, fmt.Errorf("%w: %s.%s", ErrNoResolver, rootTypeName, name)
		}
		graphName := bestGraph(fd.Joins)
		groups[graphName] = append(groups[graphName], field)
	}
	return groups, nil
}

// hasResolver reports whether at least one join can actually resolve the
// field — a field declared only via @external (or overridden away from
// every declaring graph) carries joins but has no resolver.
func hasResolver(joins []supergraph.JoinField) bool {
	for _, j := range joins {
		if !j.External {
			return true
		}
	}
	return false
}

// bestGraph deterministically picks the resolving graph for a field with
// more than one @shareable declaration: alphabetically first by name.
// Callers must check hasResolver first.
func bestGraph(joins []supergraph.JoinField) string {
	names := make([]string, 0, len(joins))
	for _, j := range joins {
		if j.External {
			continue
		}
		names = append(names, j.Graph)
	}
	sort.Strings(names)
	return names[0]
}

// expand inlines fragment spreads and inline fragments, matching
// expandFragmentsInSelections's flattening behavior.
func (pl *planner) expand(selections []ast.Selection) []ast.Selection {
	var out []ast.Selection
	for _, sel := range selections {
		switch s := sel.(type) {
		case *ast.Field:
			out = append(out, s)
		case *ast.InlineFragment:
			out = append(out, pl.expand(s.SelectionSet)...)
		case *ast.FragmentSpread:
			if frag, ok := pl.fragments[s.Name.String()]; ok {
				out = append(out, pl.expand(frag.SelectionSet)...)
			}
		}
	}
	return out
}

// buildRootFetch builds the root Fetch node for one subgraph's slice of
// root fields, plus any Sequence/Flatten entity-boundary children hanging
// off it (steps 3-6 of §4.4).
func (pl *planner) buildRootFetch(graphName, rootTypeName, opType string, fields []ast.Selection) (*Node, error) {
	owned, err := pl.filterOwned(graphName, rootTypeName, fields)
	if err != nil {
		return nil, err
	}

	fetch := &Fetch{ServiceName: graphName}
	fetchNode := &Node{Kind: KindFetch, Fetch: fetch}

	children, err := pl.buildEntitySteps(graphName, rootTypeName, fields, nil, owned)
	if err != nil {
		return nil, err
	}

	fetch.OperationString = renderOperation(opType, owned)
	fetch.VariableUsages = collectVariableUsages(owned)

	if len(children) == 0 {
		return fetchNode, nil
	}

	nodes := []*Node{fetchNode}
	nodes = append(nodes, children...)
	return &Node{Kind: KindSequence, Nodes: nodes}, nil
}

// filterOwned builds a filtered copy of fields containing only the
// sub-selections this subgraph can resolve, recursively, auto-injecting
// __typename on composite fields the way buildStepSelections does so
// entity boundary detection always has a type discriminator to key off of.
func (pl *planner) filterOwned(graphName, parentType string, fields []ast.Selection) ([]ast.Selection, error) {
	var out []ast.Selection
	hasTypename := false

	for _, sel := range pl.expand(fields) {
		field := sel.(*ast.Field)
		name := field.Name.String()

		if name == "__typename" {
			hasTypename = true
			out = append(out, field)
			continue
		}

		parent, ok := pl.md.Types[parentType]
		if !ok {
			return nil, fmt.Errorf("%w: unknown type %s", ErrNoResolver, parentType)
		}
		fd, ok := parent.Fields[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrNoResolver, parentType, name)
		}

		owner := resolvableIn(fd, graphName)
		if !owner {
			continue
		}

		newField := &ast.Field{Alias: field.Alias, Name: field.Name, Arguments: field.Arguments}

		if len(field.SelectionSet) > 0 {
			childType := stripType(fd.Type)
			children, err := pl.filterOwned(graphName, childType, field.SelectionSet)
			if err != nil {
				return nil, err
			}
			if len(children) == 0 {
				children = []ast.Selection{fedast.NewField("__typename")}
			}
			newField.SelectionSet = children
		}

		out = append(out, newField)
	}

	if parentType != "Query" && parentType != "Mutation" && parentType != "Subscription" && !hasTypename && len(out) > 0 {
		out = append([]ast.Selection{fedast.NewField("__typename")}, out...)
	}

	return out, nil
}

func resolvableIn(fd *supergraph.Field, graphName string) bool {
	for _, j := range fd.Joins {
		if j.Graph == graphName && !j.External {
			return true
		}
	}
	return false
}

func stripType(t string) string {
	out := make([]byte, 0, len(t))
	for _, r := range t {
		if r == '!' || r == '[' || r == ']' {
			continue
		}
		out = append(out, byte(r))
	}
	return string(out)
}

// buildEntitySteps implements steps 3-5 of §4.4: it walks the ORIGINAL
// (unfiltered) field selections looking for boundary fields — fields owned
// by a different subgraph than graphName, or fields whose return type is an
// entity owned elsewhere — and produces a Flatten(path, entity Fetch) for
// each one, injecting key fields into owned (the already
// filtered parent selection set) so the parent fetch can build
// representations.
func (pl *planner) buildEntitySteps(graphName, parentType string, fields []ast.Selection, path []string, owned []ast.Selection) ([]*Node, error) {
	var nodes []*Node

	for _, sel := range pl.expand(fields) {
		field := sel.(*ast.Field)
		name := field.Name.String()
		if name == "__typename" {
			continue
		}

		parent, ok := pl.md.Types[parentType]
		if !ok {
			return nil, fmt.Errorf("%w: unknown type %s", ErrNoResolver, parentType)
		}
		fd, ok := parent.Fields[name]
		if !ok || !hasResolver(fd.Joins) {
			return nil, fmt.Errorf("%w: %s.%s", ErrNoResolver, parentType, name)
		}

		fieldType := stripType(fd.Type)
		fieldOwnerGraph := bestGraph(fd.Joins)
		entityType, isEntityType := pl.md.Types[fieldType]
		entityOwner := ""
		if isEntityType && entityType.IsEntity() {
			entityOwner = entityType.OwnerGraph
		}

		boundary := fieldOwnerGraph != graphName || (entityOwner != "" && entityOwner != graphName)
		if !boundary {
			if len(field.SelectionSet) > 0 {
				children, err := pl.buildEntitySteps(graphName, fieldType, field.SelectionSet, append(path, name), owned)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, children...)
			}
			continue
		}

		// @provides shortcut (step 5): if the parent subgraph's field
		// declaration already provides every requested child selection,
		// fold them straight into the parent fetch instead of spawning a
		// new entity fetch. filterOwned already dropped these children
		// (they are not ordinarily resolvable in graphName), so they are
		// re-injected here under the boundary field itself.
		if providesSatisfies(fd, fieldOwnerGraph, field.SelectionSet) {
			injectProvidedSelections(owned, append(path, name), field.SelectionSet)
			continue
		}

		// A field owned here whose return type is an entity owned elsewhere
		// opens an entity fetch on that return type, keyed under the field
		// itself. A field owned by another subgraph is instead selected on
		// its parent entity in that subgraph, keyed by the parent's
		// representation (collected as siblings of the field).
		target := entityOwner
		resolveType := fieldType
		entityPath := append(append([]string{}, path...), name)
		wanted := field.SelectionSet
		if fieldOwnerGraph != graphName {
			target = fieldOwnerGraph
			resolveType = parentType
			entityPath = append([]string{}, path...)
			wanted = []ast.Selection{field}
		}

		keyFields, err := pl.keyFieldsFor(resolveType, target)
		if err != nil {
			return nil, err
		}

		childSelections, err := pl.filterOwned(target, resolveType, wanted)
		if err != nil {
			return nil, err
		}

		// Step 4 (apply @requires): the boundary field itself may declare
		// @requires against sibling fields on the ancestor entity. Those
		// fields must travel in the _entities representation alongside the
		// key, but only if the ancestor subgraph (graphName) can actually
		// resolve them — a @requires fieldset naming a field no ancestor
		// fetch can supply is unsatisfiable.
		for _, rf := range requiredFieldsFor(fd, target) {
			rfd, ok := parent.Fields[rf]
			if !ok || !resolvableIn(rfd, graphName) {
				return nil, fmt.Errorf("%w: %s.%s requires %q, which %s cannot resolve on %s",
					ErrUnsatisfiableRequires, resolveType, name, rf, graphName, parentType)
			}
			keyFields = append(keyFields, rf)
		}

		// entityPath names the selection that holds the entity being
		// represented: for a field owned elsewhere that is the selection set
		// directly containing the boundary field, so the key fields become
		// its siblings and the parent fetch never selects a field (e.g.
		// reviews) that its own subgraph does not implement.
		injectKeyFields(owned, entityPath, keyFields)

		entityFetch := &Fetch{
			ServiceName:        target,
			ParentType:         resolveType,
			RepresentationKeys: keyFields,
			OperationString:    renderEntityOperation(resolveType, childSelections),
			VariableUsages:     collectVariableUsages(childSelections),
		}
		flatten := &Node{Kind: KindFlatten, Path: entityPath, Nodes: []*Node{{Kind: KindFetch, Fetch: entityFetch}}}
		nodes = append(nodes, flatten)
	}

	return nodes, nil
}

// providesSatisfies reports whether fd carries a @provides fieldset (on
// graphName's join) covering every top-level name in wanted.
func providesSatisfies(fd *supergraph.Field, graphName string, wanted []ast.Selection) bool {
	if len(wanted) == 0 {
		return false
	}
	var providesRaw string
	for _, j := range fd.Joins {
		if j.Graph == graphName && j.ProvidesRaw != "" {
			providesRaw = j.ProvidesRaw
		}
	}
	if providesRaw == "" {
		return false
	}
	provided := map[string]bool{}
	for _, n := range strings.Fields(providesRaw) {
		provided[n] = true
	}
	for _, sel := range wanted {
		f, ok := sel.(*ast.Field)
		if !ok {
			continue
		}
		if !provided[f.Name.String()] {
			return false
		}
	}
	return true
}

func (pl *planner) keyFieldsFor(typeName, graphName string) ([]string, error) {
	t, ok := pl.md.Types[typeName]
	if !ok || !t.IsEntity() {
		return []string{"__typename"}, nil
	}
	key, ok := t.Keys[graphName]
	if !ok {
		for _, k := range t.Keys {
			key = k
			ok = true
			break
		}
		if !ok {
			return nil, fmt.Errorf("%w: no @key available to resolve %s on %s", ErrUnsatisfiableRequires, typeName, graphName)
		}
	}
	fields := strings.Fields(key)
	out := append([]string{"__typename"}, fields...)
	return out, nil
}

// requiredFieldsFor collects the deduplicated @requires fieldset fd declares
// for its resolution in target, so it can be folded into the entity
// representation alongside the key fields.
func requiredFieldsFor(fd *supergraph.Field, target string) []string {
	seen := map[string]bool{}
	var out []string
	for _, j := range fd.Joins {
		if j.Graph != target || j.RequiresRaw == "" {
			continue
		}
		for _, rf := range strings.Fields(j.RequiresRaw) {
			if !seen[rf] {
				seen[rf] = true
				out = append(out, rf)
			}
		}
	}
	return out
}

// injectKeyFields ensures every field along path exists in owned (creating
// it if necessary) and adds keyFields as children of the final field,
// mirroring ensureAndInjectKeyFields.
func injectKeyFields(owned []ast.Selection, path []string, keyFields []string) {
	if len(path) == 0 {
		return
	}
	ensureAndInject(&owned, path, keyFields)
}

func ensureAndInject(selections *[]ast.Selection, path []string, keyFields []string) {
	name := path[0]
	var target *ast.Field
	for _, sel := range *selections {
		if f, ok := sel.(*ast.Field); ok && f.Name.String() == name {
			target = f
			break
		}
	}
	if target == nil {
		target = &ast.Field{Name: fedast.NewName(name)}
		*selections = append(*selections, target)
	}

	if len(path) == 1 {
		existing := map[string]bool{}
		for _, sel := range target.SelectionSet {
			if f, ok := sel.(*ast.Field); ok {
				existing[f.Name.String()] = true
			}
		}
		for _, kf := range keyFields {
			if !existing[kf] {
				target.SelectionSet = append(target.SelectionSet, fedast.NewField(kf))
			}
		}
		return
	}

	ensureAndInject(&target.SelectionSet, path[1:], keyFields)
}

// injectProvidedSelections ensures every field along path exists in owned
// and merges provided as children of the final field, by field name, so a
// @provides-covered selection is folded into the parent fetch instead of
// being silently dropped by filterOwned's ownership check.
func injectProvidedSelections(owned []ast.Selection, path []string, provided []ast.Selection) {
	if len(path) == 0 {
		return
	}
	ensureAndInjectSelections(&owned, path, provided)
}

func ensureAndInjectSelections(selections *[]ast.Selection, path []string, provided []ast.Selection) {
	name := path[0]
	var target *ast.Field
	for _, sel := range *selections {
		if f, ok := sel.(*ast.Field); ok && f.Name.String() == name {
			target = f
			break
		}
	}
	if target == nil {
		target = &ast.Field{Name: fedast.NewName(name)}
		*selections = append(*selections, target)
	}

	if len(path) == 1 {
		existing := map[string]bool{}
		for _, sel := range target.SelectionSet {
			if f, ok := sel.(*ast.Field); ok {
				existing[f.Name.String()] = true
			}
		}
		for _, sel := range provided {
			f, ok := sel.(*ast.Field)
			if !ok || existing[f.Name.String()] {
				continue
			}
			target.SelectionSet = append(target.SelectionSet, f)
		}
		return
	}

	ensureAndInjectSelections(&target.SelectionSet, path[1:], provided)
}
