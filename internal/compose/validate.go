package compose

import (
	"sort"
	"strings"

	"github.com/n9te9/federation-core/internal/fedast"
	"github.com/n9te9/federation-core/internal/ingest"
)

// validateExternal implements EXTERNAL_UNUSED, EXTERNAL_MISSING_ON_BASE and
// EXTERNAL_TYPE_MISMATCH: every @external declaration must (a) have a
// non-external declaration of the same field in some subgraph (the field's
// owner), (b) agree with that declaration's type string, and
// (c) be referenced by at least one @key/@requires/@provides fieldset in
// the declaring subgraph — an @external field nobody references is dead
// weight the composer flags rather than silently drops.
func (sg *Supergraph) validateExternal() []*GraphQLError {
	var errs []*GraphQLError

	for _, typeName := range sg.TypeOrder {
		t := sg.Types[typeName]
		if t.Kind != ingest.KindObject {
			continue
		}

		for _, sub := range sg.Subgraphs {
			std, ok := sub.Types[typeName]
			if !ok {
				continue
			}
			for _, fieldName := range std.FieldOrder {
				fd := std.Fields[fieldName]
				if !fd.External {
					continue
				}

				baseField := sg.baseField(t, typeName, fieldName)
				if baseField == nil {
					errs = append(errs, newErr(CodeExternalMissingOnBase,
						"external field has no resolving declaration in any subgraph", typeName, fieldName))
					continue
				}
				if baseField.Type != fd.Type {
					errs = append(errs, newErr(CodeExternalTypeMismatch,
						"external field type does not match base declaration ("+fd.Type+" vs "+baseField.Type+")",
						typeName, fieldName))
				}

				if !sg.externalIsReferenced(sub, typeName, fieldName) {
					errs = append(errs, newErr(CodeExternalUnused,
						"external field is not referenced by any @key, @requires or @provides in "+sub.Name,
						typeName, fieldName))
				}
			}
		}
	}

	return errs
}

// baseField returns the canonical (non-external) field declaration for
// typeName.fieldName across every subgraph, or nil.
func (sg *Supergraph) baseField(t *Type, typeName, fieldName string) *ingest.FieldDef {
	for _, sub := range sg.Subgraphs {
		std, ok := sub.Types[typeName]
		if !ok {
			continue
		}
		fd, ok := std.Fields[fieldName]
		if !ok || fd.External {
			continue
		}
		return fd
	}
	return nil
}

// externalIsReferenced reports whether typeName.fieldName (external in sub)
// is referenced by a @key on typeName itself, by a @requires/@provides
// fieldset declared on a sibling field of typeName (e.g. shippingEstimate
// @requires(fields: "weight") justifies weight being external on the same
// Product type), or by a @requires/@provides fieldset declared anywhere in
// sub on a field whose return type is typeName (e.g. Review.author: User
// @provides(fields: "username") justifies User.username being external in
// the same subgraph).
func (sg *Supergraph) externalIsReferenced(sub *ingest.Subgraph, typeName, fieldName string) bool {
	std, ok := sub.Types[typeName]
	if !ok {
		return false
	}
	for _, key := range std.Keys {
		for _, n := range fedast.FieldNames(key.Fields) {
			if n == fieldName {
				return true
			}
		}
	}
	for _, fd := range std.Fields {
		for _, n := range fedast.FieldNames(fd.Requires) {
			if n == fieldName {
				return true
			}
		}
		for _, n := range fedast.FieldNames(fd.Provides) {
			if n == fieldName {
				return true
			}
		}
	}
	for otherName, otherType := range sub.Types {
		if otherName == typeName {
			continue
		}
		for _, fd := range otherType.Fields {
			if stripType(fd.Type) != typeName {
				continue
			}
			for _, n := range fedast.FieldNames(fd.Requires) {
				if n == fieldName {
					return true
				}
			}
			for _, n := range fedast.FieldNames(fd.Provides) {
				if n == fieldName {
					return true
				}
			}
		}
	}
	return false
}

// validateKeys implements KEY_FIELDS_MISSING_ON_BASE and
// KEY_FIELDS_SELECT_INVALID_TYPE at the cross-subgraph level: a @key
// fieldset must resolve entirely against fields declared (in any subgraph)
// on the owning type, and none of those fields may resolve to a list,
// interface, or union type.
func (sg *Supergraph) validateKeys() []*GraphQLError {
	var errs []*GraphQLError

	for _, typeName := range sg.TypeOrder {
		t := sg.Types[typeName]
		if t.Kind != ingest.KindObject {
			continue
		}

		for _, sub := range sg.Subgraphs {
			std, ok := sub.Types[typeName]
			if !ok {
				continue
			}
			for _, key := range std.Keys {
				for _, name := range fedast.FieldNames(key.Fields) {
					fo, ok := t.Fields[name]
					if !ok {
						errs = append(errs, newErr(CodeKeyFieldsMissingOnBase,
							"key field is not declared on "+typeName+" in any subgraph", typeName, name))
						continue
					}
					if strings.Contains(fo.Field.Type, "[") {
						errs = append(errs, newErr(CodeKeyFieldsSelectInvalidType,
							"key field is a list, which cannot be a key component", typeName, name))
					}
					if refType, ok := sg.Types[stripType(fo.Field.Type)]; ok {
						if refType.Kind == ingest.KindInterface || refType.Kind == ingest.KindUnion {
							errs = append(errs, newErr(CodeKeyFieldsSelectInvalidType,
								"key field resolves to "+refType.Kind.String()+", which cannot be a key component",
								typeName, name))
						}
					}
				}
			}
		}
	}

	return errs
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

// validateRequiresProvides implements REQUIRES_FIELDS_MISSING_EXTERNAL,
// PROVIDES_FIELDS_MISSING_EXTERNAL and PROVIDES_NOT_ON_ENTITY.
func (sg *Supergraph) validateRequiresProvides() []*GraphQLError {
	var errs []*GraphQLError

	for _, typeName := range sg.TypeOrder {
		t := sg.Types[typeName]
		if t.Kind != ingest.KindObject {
			continue
		}

		for _, sub := range sg.Subgraphs {
			std, ok := sub.Types[typeName]
			if !ok {
				continue
			}
			for _, fieldName := range std.FieldOrder {
				fd := std.Fields[fieldName]

				if fd.RequiresRaw != "" {
					for _, n := range fedast.FieldNames(fd.Requires) {
						if !sg.isExternalSomewhere(std, n) {
							errs = append(errs, newErr(CodeRequiresFieldsMissingExt,
								"@requires field "+n+" is not declared @external in "+sub.Name,
								typeName, fieldName))
						}
					}
				}

				if fd.ProvidesRaw != "" {
					returnType := stripType(fd.Type)
					target, ok := sg.Types[returnType]
					if !ok || !target.IsEntity {
						errs = append(errs, newErr(CodeProvidesNotOnEntity,
							"@provides used on a field whose type "+returnType+" is not an entity",
							typeName, fieldName))
						continue
					}
					for _, n := range fedast.FieldNames(fd.Provides) {
						tfo, ok := target.Fields[n]
						if !ok {
							errs = append(errs, newErr(CodeProvidesFieldsMissingExt,
								"@provides field "+n+" is not declared on "+returnType, typeName, fieldName))
							continue
						}
						if len(tfo.CanResolve) == 0 {
							errs = append(errs, newErr(CodeProvidesFieldsMissingExt,
								"@provides field "+n+" on "+returnType+" is never resolvable, so there is nothing external to shortcut",
								typeName, fieldName))
						}
						if local, ok := sub.Types[returnType]; !ok || local.Fields[n] == nil || !local.Fields[n].External {
							errs = append(errs, newErr(CodeProvidesFieldsMissingExt,
								"@provides field "+n+" is not declared @external on "+returnType+" in "+sub.Name,
								typeName, fieldName))
						}
					}
				}
			}
		}
	}

	return errs
}

func (sg *Supergraph) isExternalSomewhere(std *ingest.TypeDef, fieldName string) bool {
	fd, ok := std.Fields[fieldName]
	return ok && fd.External
}

// validateValueTypes implements VALUE_TYPE_NO_ENTITY and
// VALUE_TYPE_UNION_TYPES_IDENTICAL. A non-entity object type cannot be
// declared as an `extend type` anywhere (extensions only make sense on
// entities), and a union type declared in more than one subgraph must list
// exactly the same member set everywhere it appears — federation has no
// notion of a partial union merge.
func (sg *Supergraph) validateValueTypes() []*GraphQLError {
	var errs []*GraphQLError

	for _, typeName := range sg.TypeOrder {
		t := sg.Types[typeName]

		if t.Kind == ingest.KindObject && !t.IsEntity {
			for _, sub := range sg.Subgraphs {
				std, ok := sub.Types[typeName]
				if ok && std.IsExtension {
					errs = append(errs, newErr(CodeValueTypeNoEntity,
						"extend type on "+typeName+" requires it to be an entity (declare @key somewhere)",
						typeName))
				}
			}
		}

		if t.Kind == ingest.KindUnion && len(t.DeclaredIn) > 1 {
			var first []string
			mismatched := false
			for _, sub := range sg.Subgraphs {
				std, ok := sub.Types[typeName]
				if !ok || std.Kind != ingest.KindUnion {
					continue
				}
				members := append([]string(nil), std.UnionMembers...)
				sort.Strings(members)
				if first == nil {
					first = members
					continue
				}
				if !equalStrings(first, members) {
					mismatched = true
				}
			}
			if mismatched {
				errs = append(errs, newErr(CodeValueTypeUnionTypesIdentical,
					"union "+typeName+" declares different member sets across subgraphs", typeName))
			}
		}
	}

	return errs
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
