package testutils

import (
	"context"

	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/idmap"
	"github.com/papercomputeco/rxrank/pkg/recommend"
	"github.com/papercomputeco/rxrank/pkg/store"
)

// ScenarioTables is a dimension-4 store: patients 10006 and 10011 are stored
// and concepts 0..2 are candidates. Patient 10099 is mapped but has no row.
func ScenarioTables() (*artifact.EmbeddingTables, *artifact.MappingTables) {
	emb := &artifact.EmbeddingTables{
		Version: "scenario",
		Query: [][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
		},
		Concept: [][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0.5, 0.5, 0, 0},
		},
		CandidateIndices: []int{0, 1, 2},
		HasIndices:       true,
	}

	maps := &artifact.MappingTables{Sections: map[string][]artifact.Entry{
		artifact.AliasPidToIdx: {
			{External: "10006", Index: 0},
			{External: "10011", Index: 1},
			{External: "10099", Index: 9},
		},
		artifact.AliasCuiToIdx: {
			{External: "C0004057", Index: 0},
			{External: "C0019134", Index: 1},
		},
	}}
	return emb, maps
}

// ScenarioEngine builds an Engine over ScenarioTables without a fallback.
func ScenarioEngine(opts ...recommend.Option) (*recommend.Engine, error) {
	emb, maps := ScenarioTables()
	st, err := store.Load(emb)
	if err != nil {
		return nil, err
	}
	res, err := idmap.Build(maps, st.QueryCount())
	if err != nil {
		return nil, err
	}
	return recommend.New(st, res, opts...)
}

// ScenarioRegistry wraps ScenarioEngine in a Registry.
func ScenarioRegistry(opts ...recommend.Option) *recommend.Registry {
	return recommend.NewRegistry(func(context.Context) (*recommend.Engine, error) {
		return ScenarioEngine(opts...)
	})
}
