package neo4j_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rxrank/pkg/logger"
	"github.com/papercomputeco/rxrank/pkg/records"
	recordsneo4j "github.com/papercomputeco/rxrank/pkg/records/neo4j"
)

type fakeRunner struct {
	rows    map[string][]map[string]any
	err     error
	queries []string
	params  []map[string]any
}

func (f *fakeRunner) Read(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.queries = append(f.queries, cypher)
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	for rel, rows := range f.rows {
		if strings.Contains(cypher, rel) {
			return rows, nil
		}
	}
	return nil, nil
}

var _ = Describe("Reader", func() {
	var (
		ctx    context.Context
		runner *fakeRunner
		reader *recordsneo4j.Reader
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = &fakeRunner{rows: map[string][]map[string]any{
			"PRESCRIBED": {
				{"code": "RX1", "name": "aspirin"},
				{"code": "RX1", "name": "aspirin dup"},
				{"code": "", "name": "missing code"},
				{"code": "RX2", "name": nil},
			},
			"DIAGNOSED_AS": {{"code": "I10", "name": "hypertension"}},
			"ADMITTED":     {{"code": "H1", "name": "urgent"}},
		}}
		reader = recordsneo4j.NewReader(runner, nil, logger.Nop())
	})

	It("reads one kind with a numeric id parameter", func() {
		out, err := reader.Records(ctx, "10006", records.KindDrug, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([]records.Record{
			{Code: "RX1", Name: "aspirin", Kind: records.KindDrug, Source: "neo4j"},
			{Code: "RX2", Name: "", Kind: records.KindDrug, Source: "neo4j"},
		}))

		Expect(runner.queries).To(HaveLen(1))
		Expect(runner.params[0]).To(HaveKeyWithValue("id", int64(10006)))
	})

	It("reads every kind in order when none is given", func() {
		out, err := reader.Records(ctx, "10006", "", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.queries).To(HaveLen(3))
		Expect(out).To(HaveLen(4))
		Expect(out[2].Kind).To(Equal(records.KindDiagnosis))
		Expect(out[3].Kind).To(Equal(records.KindAdmission))
	})

	It("keeps a drug and an encounter that share an id", func() {
		runner.rows = map[string][]map[string]any{
			"PRESCRIBED": {{"code": "1", "name": "aspirin"}},
			"ADMITTED":   {{"code": "1", "name": "emergency"}},
		}
		out, err := reader.Records(ctx, "10006", "", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([]records.Record{
			{Code: "1", Name: "aspirin", Kind: records.KindDrug, Source: "neo4j"},
			{Code: "1", Name: "emergency", Kind: records.KindAdmission, Source: "neo4j"},
		}))
	})

	It("rejects non-numeric ids before querying", func() {
		_, err := reader.Records(ctx, "P-1", records.KindDrug, 10)
		Expect(err).To(MatchError(records.ErrInvalidID))
		Expect(runner.queries).To(BeEmpty())
	})

	It("wraps driver errors", func() {
		runner.err = errors.New("connection reset")
		_, err := reader.Records(ctx, "1", records.KindDrug, 10)
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
	})

	It("runs the closer", func() {
		closed := false
		r := recordsneo4j.NewReader(runner, func() error { closed = true; return nil }, logger.Nop())
		Expect(r.Close()).To(Succeed())
		Expect(closed).To(BeTrue())
	})
})

var _ = Describe("Reader visit lookups", func() {
	var (
		ctx    context.Context
		runner *fakeRunner
		reader *recordsneo4j.Reader
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = &fakeRunner{rows: map[string][]map[string]any{
			"[r:DIAGNOSED]":      {{"code": "I10", "name": "hypertension"}},
			"[r:PRESCRIBED_FOR]": {{"code": "RX1", "name": "aspirin"}, {"code": "RX1", "name": "aspirin dup"}},
			"AS visit":           {{"visit": "31"}, {"visit": int64(200)}, {"visit": nil}},
		}}
		reader = recordsneo4j.NewReader(runner, nil, logger.Nop())
	})

	It("reads diagnoses then the drugs prescribed for them", func() {
		out, err := reader.VisitRecords(ctx, "200", "", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([]records.Record{
			{Code: "I10", Name: "hypertension", Kind: records.KindDiagnosis, Source: "neo4j"},
			{Code: "RX1", Name: "aspirin", Kind: records.KindDrug, Source: "neo4j"},
		}))
		Expect(runner.queries).To(HaveLen(2))
		Expect(runner.queries[0]).To(ContainSubstring("(e:Encounter {id: $id})"))
		Expect(runner.params[1]).To(HaveKeyWithValue("id", int64(200)))
	})

	It("reads one visit kind", func() {
		out, err := reader.VisitRecords(ctx, "200", records.KindDrug, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(runner.queries).To(HaveLen(1))
	})

	It("rejects admissions and bad ids before querying", func() {
		_, err := reader.VisitRecords(ctx, "200", records.KindAdmission, 10)
		Expect(err).To(MatchError(records.ErrInvalidKind))
		_, err = reader.VisitRecords(ctx, "E-1", "", 10)
		Expect(err).To(MatchError(records.ErrInvalidID))
		Expect(runner.queries).To(BeEmpty())
	})

	It("lists visits with the default limit", func() {
		visits, err := reader.Visits(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(visits).To(Equal([]string{"31", "200"}))
		Expect(runner.params[0]).To(HaveKeyWithValue("limit", int64(records.DefaultVisitsLimit)))
	})

	It("wraps driver errors when listing visits", func() {
		runner.err = errors.New("connection reset")
		_, err := reader.Visits(ctx, 3)
		Expect(err).To(MatchError(ContainSubstring("reading visits")))
	})
})
