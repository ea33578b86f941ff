// Package idmap resolves external identifiers to internal indices and back
// for query entities and concepts.
package idmap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/papercomputeco/rxrank/pkg/artifact"
)

// ErrUnknownID is returned when a query id does not resolve.
var ErrUnknownID = errors.New("unknown id")

// Alias priority, highest first.
var (
	QueryAliases   = []string{artifact.AliasPidToIdx, artifact.AliasPatientToIdx}
	ConceptAliases = []string{artifact.AliasCuiToIdx, artifact.AliasConceptToIdx, artifact.AliasIdxToConcept}
)

// Synthesized marks a side whose ids were generated rather than read.
const Synthesized = "synthesized"

// Resolver is read-only after Build and safe for concurrent use.
type Resolver struct {
	queryByExternal map[string]int
	queryExternal   map[int]string
	queryOrder      []string

	conceptExternal map[int]string

	queryAlias   string
	conceptAlias string
	collisions   int
}

// Build resolves the alias sections of m once into lookup tables. queryRows
// sizes the synthesized query map when no query alias is present.
func Build(m *artifact.MappingTables, queryRows int) (*Resolver, error) {
	if queryRows < 0 {
		return nil, fmt.Errorf("negative query row count %d", queryRows)
	}

	r := &Resolver{
		queryByExternal: map[string]int{},
		queryExternal:   map[int]string{},
		conceptExternal: map[int]string{},
		queryAlias:      Synthesized,
		conceptAlias:    Synthesized,
	}

	if alias, entries, ok := pick(m, QueryAliases); ok {
		r.queryAlias = alias
		for _, e := range entries {
			r.addQuery(e.External, e.Index)
		}
	} else {
		for i := range queryRows {
			r.addQuery(strconv.Itoa(i), i)
		}
	}

	if alias, entries, ok := pick(m, ConceptAliases); ok {
		r.conceptAlias = alias
		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			if _, taken := r.conceptExternal[e.Index]; taken || seen[e.External] {
				r.collisions++
				continue
			}
			seen[e.External] = true
			r.conceptExternal[e.Index] = e.External
		}
	}

	return r, nil
}

func pick(m *artifact.MappingTables, aliases []string) (string, []artifact.Entry, bool) {
	for _, a := range aliases {
		if entries, ok := m.Section(a); ok {
			return a, entries, true
		}
	}
	return "", nil, false
}

// addQuery registers a pair unless either side is already taken. The first
// registration wins in both directions.
func (r *Resolver) addQuery(external string, idx int) {
	if _, taken := r.queryByExternal[external]; taken {
		r.collisions++
		return
	}
	if _, taken := r.queryExternal[idx]; taken {
		r.collisions++
		return
	}
	r.queryByExternal[external] = idx
	r.queryExternal[idx] = external
	r.queryOrder = append(r.queryOrder, external)
}

// ResolveQuery maps an external query id to its internal index, trying the
// exact id first and then the whitespace-trimmed id.
func (r *Resolver) ResolveQuery(id string) (int, error) {
	if idx, ok := r.queryByExternal[id]; ok {
		return idx, nil
	}
	if trimmed := strings.TrimSpace(id); trimmed != id {
		if idx, ok := r.queryByExternal[trimmed]; ok {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownID, id)
}

// QueryExternal returns the external id registered for a query index.
func (r *Resolver) QueryExternal(idx int) (string, bool) {
	s, ok := r.queryExternal[idx]
	return s, ok
}

// ExternalForCandidate returns the external id for a global concept index,
// synthesizing one when the mapping has none. It never fails.
func (r *Resolver) ExternalForCandidate(global int) string {
	if s, ok := r.conceptExternal[global]; ok {
		return s
	}
	return SynthesizeConcept(global)
}

// SynthesizeConcept formats the fallback concept id for a global index.
func SynthesizeConcept(global int) string {
	return fmt.Sprintf("C%07d", global)
}

// SampleQueryIDs returns up to n external query ids in registration order.
func (r *Resolver) SampleQueryIDs(n int) []string {
	n = max(0, min(n, len(r.queryOrder)))
	return append([]string(nil), r.queryOrder[:n]...)
}

// QueryCount returns the number of registered query ids.
func (r *Resolver) QueryCount() int { return len(r.queryOrder) }

// ConceptCount returns the number of mapped concept ids.
func (r *Resolver) ConceptCount() int { return len(r.conceptExternal) }

// Collisions returns how many duplicate entries Build dropped.
func (r *Resolver) Collisions() int { return r.collisions }

// Aliases reports which section was used for each side, or Synthesized.
func (r *Resolver) Aliases() (query, concept string) {
	return r.queryAlias, r.conceptAlias
}
