package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Mapping artifact section names.
const (
	AliasPidToIdx     = "pid_to_idx"
	AliasPatientToIdx = "patient_to_idx"
	AliasCuiToIdx     = "cui_to_idx"
	AliasConceptToIdx = "concept_to_idx"
	AliasIdxToConcept = "idx_to_concept"
)

// knownAliases maps each recognized section to whether it is keyed by internal index.
var knownAliases = map[string]bool{
	AliasPidToIdx:     false,
	AliasPatientToIdx: false,
	AliasCuiToIdx:     false,
	AliasConceptToIdx: false,
	AliasIdxToConcept: true,
}

// DecodeMappings decodes a mapping artifact, keeping each recognized
// section's entries in document order. Unrecognized sections are skipped.
//
// Sections are objects ({"P1": 0} or, for idx_to_concept, {"0": "C1"}) or
// arrays of external ids whose position is the index.
func DecodeMappings(r io.Reader) (*MappingTables, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	m := &MappingTables{Sections: map[string][]Entry{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, decodeErr(err)
		}
		key, _ := tok.(string)

		indexKeyed, known := knownAliases[key]
		if !known {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, decodeErr(err)
			}
			continue
		}

		entries, err := decodeSection(dec, key, indexKeyed)
		if err != nil {
			return nil, err
		}
		if _, dup := m.Sections[key]; !dup {
			m.Sections[key] = entries
		}
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeSection(dec *json.Decoder, key string, indexKeyed bool) ([]Entry, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, decodeErr(err)
	}

	entries := []Entry{}
	switch tok {
	case json.Delim('['):
		for pos := 0; dec.More(); pos++ {
			v, err := dec.Token()
			if err != nil {
				return nil, decodeErr(err)
			}
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d]: expected a string id, got %v", ErrDecode, key, pos, v)
			}
			entries = append(entries, Entry{External: s, Index: pos})
		}
		return entries, expectDelim(dec, ']')

	case json.Delim('{'):
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, decodeErr(err)
			}
			vt, err := dec.Token()
			if err != nil {
				return nil, decodeErr(err)
			}

			k, _ := kt.(string)
			var e Entry
			if indexKeyed {
				idx, err := parseIndex(k)
				if err != nil {
					return nil, fmt.Errorf("%w: %s key %q: %w", ErrDecode, key, k, err)
				}
				s, ok := vt.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %s[%q]: expected a string id, got %v", ErrDecode, key, k, vt)
				}
				e = Entry{External: s, Index: idx}
			} else {
				idx, err := parseIndex(vt)
				if err != nil {
					return nil, fmt.Errorf("%w: %s[%q]: %w", ErrDecode, key, k, err)
				}
				e = Entry{External: k, Index: idx}
			}
			entries = append(entries, e)
		}
		return entries, expectDelim(dec, '}')

	default:
		return nil, fmt.Errorf("%w: %s: expected an object or array", ErrDecode, key)
	}
}

// parseIndex accepts JSON numbers and numeric strings.
func parseIndex(v any) (int, error) {
	var (
		n   int64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		n, err = t.Int64()
	case string:
		n, err = strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("expected an index, got %v", v)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid index %v", v)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative index %d", n)
	}
	return int(n), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return decodeErr(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrDecode, want, tok)
	}
	return nil
}

func decodeErr(err error) error {
	return fmt.Errorf("%w: mappings json: %w", ErrDecode, err)
}
