package testutils

// CandidateSet is a Candidates implementation over a fixed set of global
// concept indices.
type CandidateSet map[int]bool

func NewCandidateSet(globals ...int) CandidateSet {
	s := CandidateSet{}
	for _, g := range globals {
		s[g] = true
	}
	return s
}

func (s CandidateSet) IsCandidate(global int) bool {
	return s[global]
}
