package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/rxrank/pkg/recommend"
	"github.com/papercomputeco/rxrank/pkg/records"
)

var (
	recommendToolName    = "recommend_drugs"
	recommendDescription = "Recommend drugs for a patient by ranking precomputed embeddings. Patients without a stored embedding are served from an encoded sample of their graph neighborhood. Unknown ids return sample valid ids."

	listPatientsToolName    = "list_patients"
	listPatientsDescription = "List valid patient ids that recommend_drugs accepts, with the total count."

	patientRecordsToolName    = "patient_records"
	patientRecordsDescription = "Look up a patient's clinical records (drug, diagnosis or admission), deduplicated per kind by code."

	visitRecordsToolName    = "visit_records"
	visitRecordsDescription = "Look up the diagnoses recorded in one visit and the drugs prescribed for them, diagnoses first."

	listVisitsToolName    = "list_visits"
	listVisitsDescription = "List visit ids that visit_records accepts, in ascending order."
)

// RecommendInput represents the input arguments for the recommend_drugs tool.
type RecommendInput struct {
	QueryID string `json:"query_id" jsonschema:"the external patient id"`
	K       int    `json:"k,omitempty" jsonschema:"number of drugs to return (default: 5)"`
}

// RecommendOutput represents the output of the recommend_drugs tool.
type RecommendOutput struct {
	QueryID         string                     `json:"query_id"`
	Source          string                     `json:"source,omitempty"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
	SampleValidIDs  []string                   `json:"sample_valid_ids,omitempty"`
}

// ListPatientsInput represents the input arguments for the list_patients tool.
type ListPatientsInput struct {
	N int `json:"n,omitempty" jsonschema:"maximum number of ids to return (default: 20)"`
}

// PatientRecordsInput represents the input arguments for the patient_records tool.
type PatientRecordsInput struct {
	QueryID string `json:"query_id" jsonschema:"the external patient id"`
	Kind    string `json:"kind,omitempty" jsonschema:"drug, diagnosis or admission; empty for all"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of records (default: 10)"`
}

// PatientRecordsOutput represents the output of the patient_records tool.
type PatientRecordsOutput struct {
	QueryID string           `json:"query_id"`
	Records []records.Record `json:"records"`
	Count   int              `json:"count"`
}

// VisitRecordsInput represents the input arguments for the visit_records tool.
type VisitRecordsInput struct {
	VisitID string `json:"visit_id" jsonschema:"the visit (encounter) id"`
	Kind    string `json:"kind,omitempty" jsonschema:"diagnosis or drug; empty for both"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of records per kind (default: 10)"`
}

// VisitRecordsOutput represents the output of the visit_records tool.
type VisitRecordsOutput struct {
	VisitID string           `json:"visit_id"`
	Records []records.Record `json:"records"`
	Count   int              `json:"count"`
}

// ListVisitsInput represents the input arguments for the list_visits tool.
type ListVisitsInput struct {
	N int `json:"n,omitempty" jsonschema:"maximum number of visit ids to return (default: 10)"`
}

// ListVisitsOutput represents the output of the list_visits tool.
type ListVisitsOutput struct {
	Visits []string `json:"visits"`
}

func (s *Server) handleRecommend(ctx context.Context, _ *mcp.CallToolRequest, input RecommendInput) (*mcp.CallToolResult, RecommendOutput, error) {
	s.config.Logger.Debug("MCP recommend request", "query_id", input.QueryID, "k", input.K)

	engine, err := s.config.Registry.Get(ctx)
	if err != nil {
		return s.failure("Recommendation", err, "query_id", input.QueryID), RecommendOutput{}, nil
	}

	resp, err := engine.Recommend(ctx, recommend.Request{QueryID: input.QueryID, K: input.K})
	if err != nil {
		var nf *recommend.NotFoundError
		if errors.As(err, &nf) {
			out := RecommendOutput{
				QueryID:         nf.QueryID,
				Recommendations: []recommend.Recommendation{},
				SampleValidIDs:  nf.SampleIDs,
			}
			res := textResult(out)
			res.IsError = true
			return res, out, nil
		}

		return s.failure("Recommendation", err, "query_id", input.QueryID), RecommendOutput{}, nil
	}

	out := RecommendOutput{
		QueryID:         resp.QueryID,
		Source:          resp.Source,
		Recommendations: resp.Recommendations,
	}
	return textResult(out), out, nil
}

func (s *Server) handleListPatients(ctx context.Context, _ *mcp.CallToolRequest, input ListPatientsInput) (*mcp.CallToolResult, recommend.Listing, error) {
	engine, err := s.config.Registry.Get(ctx)
	if err != nil {
		return s.failure("Patient listing", err), recommend.Listing{}, nil
	}

	out := engine.ListQueryIDs(input.N)
	return textResult(out), out, nil
}

func (s *Server) handlePatientRecords(ctx context.Context, _ *mcp.CallToolRequest, input PatientRecordsInput) (*mcp.CallToolResult, PatientRecordsOutput, error) {
	kind, err := records.ParseKind(input.Kind)
	if err != nil {
		return toolError("%v", err), PatientRecordsOutput{}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	recs, err := s.config.Records.Records(ctx, input.QueryID, kind, limit)
	if err != nil {
		return s.recordsFailure(err, "query_id", input.QueryID), PatientRecordsOutput{}, nil
	}

	out := PatientRecordsOutput{QueryID: input.QueryID, Records: recs, Count: len(recs)}
	return textResult(out), out, nil
}

func (s *Server) handleVisitRecords(ctx context.Context, _ *mcp.CallToolRequest, input VisitRecordsInput) (*mcp.CallToolResult, VisitRecordsOutput, error) {
	kind, err := records.ParseVisitKind(input.Kind)
	if err != nil {
		return toolError("%v", err), VisitRecordsOutput{}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	recs, err := s.config.Records.VisitRecords(ctx, input.VisitID, kind, limit)
	if err != nil {
		return s.recordsFailure(err, "visit_id", input.VisitID), VisitRecordsOutput{}, nil
	}

	out := VisitRecordsOutput{VisitID: input.VisitID, Records: recs, Count: len(recs)}
	return textResult(out), out, nil
}

func (s *Server) handleListVisits(ctx context.Context, _ *mcp.CallToolRequest, input ListVisitsInput) (*mcp.CallToolResult, ListVisitsOutput, error) {
	n := input.N
	if n <= 0 {
		n = records.DefaultVisitsLimit
	}

	visits, err := s.config.Records.Visits(ctx, n)
	if err != nil {
		return s.recordsFailure(err), ListVisitsOutput{}, nil
	}

	out := ListVisitsOutput{Visits: visits}
	return textResult(out), out, nil
}

// textResult serializes the structured output as JSON in a TextContent block
// as well, for clients that ignore structured content.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError("Failed to serialize output: %v", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}
}

// failure logs err with attrs and returns a tool error carrying only the
// public message for its kind.
func (s *Server) failure(what string, err error, attrs ...any) *mcp.CallToolResult {
	kind := recommend.KindOf(err)
	s.config.Logger.Error("MCP tool failed",
		append(attrs, "tool_op", what, "error_kind", kind.String(), "error", err)...)
	return toolError("%s failed (%s): %s", what, kind, recommend.PublicMessage(err))
}

// recordsFailure reports bad ids and kinds as given and masks reader errors.
func (s *Server) recordsFailure(err error, attrs ...any) *mcp.CallToolResult {
	if errors.Is(err, records.ErrInvalidID) || errors.Is(err, records.ErrInvalidKind) {
		return toolError("%v", err)
	}
	return s.failure("Records lookup", err, attrs...)
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}
