package compose

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// supergraphNamespace roots the deterministic Identity() hash. It is a
// fixed, arbitrary UUID, not derived from anything at runtime — changing it
// would change every previously computed Identity().
var supergraphNamespace = uuid.MustParse("a14a2d27-1df1-4b3e-9d2b-2b7c7f2a5d10")

// Identity returns a deterministic handle for this supergraph, derived from
// a canonical (sorted, whitespace-normalized) rendering of its type and
// field names. Composing the same set of subgraph SDLs always yields the
// same Identity, and composing a different set never collides by accident
// the way a random UUID could. This is not a content hash of the rendered
// CSDL text — it only needs to be stable and collision-resistant, not
// reversible.
//
// uuid.New() is never used anywhere in this module: composition and
// planning output must be reproducible across runs, and a random UUID
// would break that on every invocation.
func (sg *Supergraph) Identity() uuid.UUID {
	return uuid.NewSHA1(supergraphNamespace, []byte(sg.canonicalFingerprint()))
}

func (sg *Supergraph) canonicalFingerprint() string {
	var sb strings.Builder
	for _, typeName := range sg.TypeOrder {
		t := sg.Types[typeName]
		sb.WriteString(typeName)
		sb.WriteString(":")
		sb.WriteString(t.Kind.String())
		sb.WriteString("[")

		fields := append([]string(nil), t.Order...)
		sort.Strings(fields)
		for i, fieldName := range fields {
			if i > 0 {
				sb.WriteString(",")
			}
			fo := t.Fields[fieldName]
			sb.WriteString(fieldName)
			sb.WriteString(":")
			sb.WriteString(fo.Field.Type)
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}
