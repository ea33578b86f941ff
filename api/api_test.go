package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/logger"
	"github.com/papercomputeco/rxrank/pkg/recommend"
	"github.com/papercomputeco/rxrank/pkg/records"
	"github.com/papercomputeco/rxrank/pkg/records/inmemory"
	testutils "github.com/papercomputeco/rxrank/pkg/utils/test"
)

func decode[T any](resp *http.Response) T {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())

	var v T
	Expect(json.Unmarshal(body, &v)).To(Succeed(), string(body))
	return v
}

type unreachableReader struct{}

var errUnreachable = errors.New("neo4j: connect to bolt://graph.internal:7687: i/o timeout")

func (unreachableReader) Records(context.Context, string, records.Kind, int) ([]records.Record, error) {
	return nil, errUnreachable
}

func (unreachableReader) VisitRecords(context.Context, string, records.Kind, int) ([]records.Record, error) {
	return nil, errUnreachable
}

func (unreachableReader) Visits(context.Context, int) ([]string, error) {
	return nil, errUnreachable
}

func (unreachableReader) Close() error { return nil }

var _ = Describe("Server", func() {
	var (
		server *Server
		reg    *recommend.Registry
	)

	BeforeEach(func() {
		reader, err := inmemory.New(&artifact.RecordTables{Records: []artifact.RecordRow{
			{PatientID: "10006", Kind: "drug", Code: "RX1", Name: "aspirin"},
			{PatientID: "10006", Kind: "drug", Code: "RX1", Name: "aspirin 81mg"},
			{PatientID: "10006", Kind: "drug", Code: "RX2", Name: "heparin"},
			{PatientID: "10006", Kind: "admission", Code: "H1", Name: "urgent"},
			{PatientID: "10011", VisitID: "200", Kind: "diagnosis", Code: "I10", Name: "hypertension"},
			{PatientID: "10011", VisitID: "200", Kind: "drug", Code: "RX1", Name: "aspirin"},
			{PatientID: "10011", VisitID: "31", Kind: "diagnosis", Code: "E11", Name: "diabetes"},
		}})
		Expect(err).NotTo(HaveOccurred())

		reg = testutils.ScenarioRegistry()
		server, err = NewServer(Config{ListenAddr: ":0"}, reg, reader, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	do := func(req *http.Request) *http.Response {
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("GET /api/health", func() {
		It("reports healthy before the model is loaded", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body := decode[map[string]any](resp)
			Expect(body).To(HaveKeyWithValue("status", "healthy"))
			Expect(body).To(HaveKeyWithValue("service", "rxrank"))
			Expect(body).To(HaveKeyWithValue("loaded", false))
		})
	})

	Describe("request ids", func() {
		It("generates one when absent", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
			Expect(resp.Header.Get(RequestIDHeader)).To(HaveLen(36))
		})

		It("echoes the caller's id", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			req.Header.Set(RequestIDHeader, "trace-123")
			Expect(do(req).Header.Get(RequestIDHeader)).To(Equal("trace-123"))
		})
	})

	Describe("POST /api/recommend", func() {
		post := func(body string) *http.Response {
			req := httptest.NewRequest(http.MethodPost, "/api/recommend", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			return do(req)
		}

		It("returns ranked recommendations", func() {
			resp := post(`{"query_id":"10006","k":2}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body := decode[recommend.Response](resp)
			Expect(body.QueryID).To(Equal("10006"))
			Expect(body.Source).To(Equal(recommend.SourceStore))
			Expect(body.Recommendations).To(Equal([]recommend.Recommendation{
				{ExternalID: "C0004057", Score: 1, GlobalConceptIndex: 0},
				{ExternalID: "C0000002", Score: 0.5, GlobalConceptIndex: 2},
			}))
		})

		It("accepts the patient_id and top_k aliases", func() {
			body := decode[recommend.Response](post(`{"patient_id":"10011","top_k":1}`))
			Expect(body.Recommendations).To(HaveLen(1))
			Expect(body.Recommendations[0].ExternalID).To(Equal("C0019134"))
		})

		It("returns a not found payload with sample ids", func() {
			resp := post(`{"query_id":"99999"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			body := decode[ErrorResponse](resp)
			Expect(body.ErrorKind).To(Equal("not_found"))
			Expect(body.QueryID).To(Equal("99999"))
			Expect(body.SampleValidIDs).To(Equal([]string{"10006", "10011", "10099"}))
		})

		It("rejects k above the maximum", func() {
			resp := post(`{"query_id":"10006","k":100000}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode[ErrorResponse](resp).ErrorKind).To(Equal("validation"))
		})

		It("rejects a malformed body", func() {
			resp := post(`{"query_id":`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("hides internal details", func() {
			resp := post(`{"query_id":"10099"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			body := decode[ErrorResponse](resp)
			Expect(body.ErrorKind).To(Equal("internal"))
			Expect(body.Message).To(Equal("internal error"))
		})
	})

	Describe("GET /api/recommend/:id", func() {
		It("uses the k query parameter", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/recommend/10006?k=3", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode[recommend.Response](resp).Recommendations).To(HaveLen(3))
		})
	})

	Describe("GET /api/patients", func() {
		It("lists ids and the total", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/patients?n=2", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode[recommend.Listing](resp)).To(Equal(recommend.Listing{IDs: []string{"10006", "10011"}, Total: 3}))
			Expect(reg.Loaded()).To(BeTrue())
		})
	})

	Describe("GET /api/patients/:id/records", func() {
		It("returns deduplicated records of one kind", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/patients/10006/records?kind=drug", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body := decode[RecordsResponse](resp)
			Expect(body.Records).To(HaveLen(2))
			Expect(body.Records[0].Name).To(Equal("aspirin"))
		})

		It("applies the limit", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/patients/10006/records?limit=1", nil))
			Expect(decode[RecordsResponse](resp).Records).To(HaveLen(1))
		})

		It("returns an empty list for an unknown patient", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/patients/77/records", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode[RecordsResponse](resp).Records).To(BeEmpty())
		})

		It("rejects unknown kinds", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/patients/10006/records?kind=lab", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/visits", func() {
		It("lists visit ids in order", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/visits", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode[VisitsResponse](resp).Visits).To(Equal([]string{"31", "200"}))
		})

		It("applies n", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/visits?n=1", nil))
			Expect(decode[VisitsResponse](resp).Visits).To(Equal([]string{"31"}))
		})
	})

	Describe("GET /api/visits/:id/records", func() {
		It("returns diagnoses then drugs", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/visits/200/records", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body := decode[VisitRecordsResponse](resp)
			Expect(body.VisitID).To(Equal("200"))
			Expect(body.Records).To(HaveLen(2))
			Expect(body.Records[0].Code).To(Equal("I10"))
			Expect(body.Records[1].Code).To(Equal("RX1"))
		})

		It("filters by kind", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/visits/200/records?kind=drug", nil))
			Expect(decode[VisitRecordsResponse](resp).Records).To(HaveLen(1))
		})

		It("rejects admission lookups", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/visits/200/records?kind=admission", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode[ErrorResponse](resp).ErrorKind).To(Equal("validation"))
		})

		It("rejects non-numeric visit ids", func() {
			resp := do(httptest.NewRequest(http.MethodGet, "/api/visits/E-1/records", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("record backend failures", func() {
		BeforeEach(func() {
			var err error
			server, err = NewServer(Config{ListenAddr: ":0"}, reg, unreachableReader{}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("hide the driver error",
			func(path string) {
				resp := do(httptest.NewRequest(http.MethodGet, path, nil))
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

				body := decode[ErrorResponse](resp)
				Expect(body.Message).To(Equal("internal error"))
				Expect(body.Message).NotTo(ContainSubstring("graph.internal"))
			},
			Entry("patient records", "/api/patients/10006/records"),
			Entry("visit records", "/api/visits/200/records"),
			Entry("visit listing", "/api/visits"),
		)
	})

	Describe("load failures", func() {
		It("returns 503", func() {
			failing := recommend.NewRegistry(func(context.Context) (*recommend.Engine, error) {
				return nil, errors.New("embeddings.json: no such file")
			})
			s, err := NewServer(Config{DisableMCP: true}, failing, nil, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/patients", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(decode[ErrorResponse](resp).ErrorKind).To(Equal("load"))
		})
	})
})
