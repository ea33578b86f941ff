package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/rxrank/pkg/recommend"
	"github.com/papercomputeco/rxrank/pkg/records"
)

const defaultRecordsLimit = 10

// RecommendRequest is the POST /api/recommend body. patient_id and top_k
// are accepted as aliases of query_id and k.
type RecommendRequest struct {
	QueryID   string `json:"query_id"`
	PatientID string `json:"patient_id,omitempty"`
	K         int    `json:"k,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
}

func (r RecommendRequest) normalize() recommend.Request {
	req := recommend.Request{QueryID: r.QueryID, K: r.K}
	if req.QueryID == "" {
		req.QueryID = r.PatientID
	}
	if req.K == 0 {
		req.K = r.TopK
	}
	return req
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	ErrorKind      string   `json:"error_kind"`
	Message        string   `json:"message"`
	QueryID        string   `json:"query_id,omitempty"`
	SampleValidIDs []string `json:"sample_valid_ids,omitempty"`
}

// RecordsResponse lists the records of one patient.
type RecordsResponse struct {
	QueryID string           `json:"query_id"`
	Records []records.Record `json:"records"`
}

// VisitRecordsResponse lists the diagnoses and drugs of one visit.
type VisitRecordsResponse struct {
	VisitID string           `json:"visit_id"`
	Records []records.Record `json:"records"`
}

// VisitsResponse lists known visit ids.
type VisitsResponse struct {
	Visits []string `json:"visits"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "rxrank",
		"loaded":  s.registry.Loaded(),
	})
}

func (s *Server) handleRecommendPost(c *fiber.Ctx) error {
	var body RecommendRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			ErrorKind: recommend.KindValidation.String(),
			Message:   "invalid request body",
		})
	}
	return s.recommend(c, body.normalize())
}

func (s *Server) handleRecommendGet(c *fiber.Ctx) error {
	return s.recommend(c, recommend.Request{
		QueryID: c.Params("id"),
		K:       c.QueryInt("k", 0),
	})
}

func (s *Server) recommend(c *fiber.Ctx, req recommend.Request) error {
	engine, err := s.registry.Get(c.UserContext())
	if err != nil {
		return s.writeError(c, err)
	}

	resp, err := engine.Recommend(c.UserContext(), req)
	if err != nil {
		return s.writeError(c, err)
	}

	s.log(c).Debug("recommendation served",
		"query_id", resp.QueryID,
		"source", resp.Source,
		"results", len(resp.Recommendations),
	)
	return c.JSON(resp)
}

// handleListPatients returns a sample of valid query ids.
func (s *Server) handleListPatients(c *fiber.Ctx) error {
	engine, err := s.registry.Get(c.UserContext())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(engine.ListQueryIDs(c.QueryInt("n", recommend.DefaultListSize)))
}

// handlePatientRecords returns the deduplicated records of one patient.
func (s *Server) handlePatientRecords(c *fiber.Ctx) error {
	id := c.Params("id")

	kind, err := records.ParseKind(c.Query("kind"))
	if err != nil {
		return s.writeError(c, err)
	}

	limit := c.QueryInt("limit", defaultRecordsLimit)
	recs, err := s.records.Records(c.UserContext(), id, kind, limit)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(RecordsResponse{QueryID: id, Records: recs})
}

// handleListVisits returns up to n visit ids in ascending order.
func (s *Server) handleListVisits(c *fiber.Ctx) error {
	visits, err := s.records.Visits(c.UserContext(), c.QueryInt("n", records.DefaultVisitsLimit))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(VisitsResponse{Visits: visits})
}

// handleVisitRecords returns the diagnoses of one visit and the drugs
// prescribed for them.
func (s *Server) handleVisitRecords(c *fiber.Ctx) error {
	id := c.Params("id")

	kind, err := records.ParseVisitKind(c.Query("kind"))
	if err != nil {
		return s.writeError(c, err)
	}

	recs, err := s.records.VisitRecords(c.UserContext(), id, kind, c.QueryInt("limit", defaultRecordsLimit))
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(VisitRecordsResponse{VisitID: id, Records: recs})
}

// writeError maps an error to its status code and body. Internal details are
// logged, not returned.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	var nf *recommend.NotFoundError
	if errors.As(err, &nf) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			ErrorKind:      recommend.KindNotFound.String(),
			Message:        nf.Message,
			QueryID:        nf.QueryID,
			SampleValidIDs: nf.SampleIDs,
		})
	}

	if errors.Is(err, records.ErrInvalidID) || errors.Is(err, records.ErrInvalidKind) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			ErrorKind: recommend.KindValidation.String(),
			Message:   err.Error(),
		})
	}

	kind := recommend.KindOf(err)
	resp := ErrorResponse{ErrorKind: kind.String(), Message: recommend.PublicMessage(err)}

	var status int
	switch kind {
	case recommend.KindValidation:
		status = fiber.StatusBadRequest
	case recommend.KindEncode, recommend.KindLoad:
		status = fiber.StatusServiceUnavailable
	default:
		status = fiber.StatusInternalServerError
	}

	s.log(c).Error("request failed",
		"path", c.Path(),
		"error_kind", kind.String(),
		"error", err,
	)
	return c.Status(status).JSON(resp)
}
