// Package recommendcmder provides the recommend command for ranking drugs
// for a patient.
package recommendcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rxrank/api"
	"github.com/papercomputeco/rxrank/cmd/rxrank/cmdenv"
	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/cliui"
	"github.com/papercomputeco/rxrank/pkg/config"
	"github.com/papercomputeco/rxrank/pkg/rank"
	"github.com/papercomputeco/rxrank/pkg/recommend"
	"github.com/papercomputeco/rxrank/pkg/recommend/recommendutils"
)

type recommendCommander struct {
	k        int
	remote   bool
	jsonOut  bool
	override struct {
		embeddings, mappings, graph, graphProvider, apiTarget string
	}

	cfg    *config.Config
	logger *slog.Logger
}

var flagKeys = []string{
	config.FlagEmbeddings,
	config.FlagMappings,
	config.FlagGraphArtifact,
	config.FlagGraphProvider,
	config.FlagAPITarget,
}

const recommendLongDesc string = `Rank drugs for a patient.

By default the artifacts are loaded in-process. Use --remote to query a
running rxrank API server at client.api_target instead.

Unknown patient ids fail with a short list of valid ids.

Examples:
  rxrank recommend 10006
  rxrank recommend 10006 -k 10
  rxrank recommend 10006 --remote --api-target http://localhost:8001
  rxrank recommend 10006 --json`

const recommendShortDesc string = "Rank drugs for a patient"

func NewRecommendCmd() *cobra.Command {
	cmder := &recommendCommander{}

	cmd := &cobra.Command{
		Use:   "recommend <patient-id>",
		Short: recommendShortDesc,
		Long:  recommendLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cmdenv.Load(cmd, flagKeys)
			if err != nil {
				return err
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := cmdenv.Logger(cmd, cmder.cfg)
			if err != nil {
				return err
			}
			defer closeLog()
			cmder.logger = logger

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().IntVarP(&cmder.k, "top", "k", rank.DefaultK, "Number of recommendations to return")
	cmd.Flags().BoolVar(&cmder.remote, "remote", false, "Query the API server instead of loading artifacts locally")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the response as JSON")
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddings, &cmder.override.embeddings)
	config.AddStringFlag(cmd, config.Flags, config.FlagMappings, &cmder.override.mappings)
	config.AddStringFlag(cmd, config.Flags, config.FlagGraphArtifact, &cmder.override.graph)
	config.AddStringFlag(cmd, config.Flags, config.FlagGraphProvider, &cmder.override.graphProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.override.apiTarget)

	return cmd
}

func (c *recommendCommander) run(ctx context.Context, w io.Writer, queryID string) error {
	var (
		resp *recommend.Response
		err  error
	)
	if c.remote {
		resp, err = RecommendAPI(ctx, c.cfg.Client.APITarget, queryID, c.k)
	} else {
		resp, err = c.local(ctx, queryID)
	}

	var nf *recommend.NotFoundError
	if errors.As(err, &nf) {
		printNotFound(w, nf)
		return err
	}
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printResponse(w, resp)
	return nil
}

func (c *recommendCommander) local(ctx context.Context, queryID string) (*recommend.Response, error) {
	opener := artifact.NewOpener(artifact.WithLogger(c.logger))

	engine, err := recommendutils.Build(ctx, c.cfg, opener, c.logger)
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	return engine.Recommend(ctx, recommend.Request{QueryID: queryID, K: c.k})
}

// RecommendAPI calls GET /api/recommend/:id on the rxrank API server. A 404
// is returned as a *recommend.NotFoundError carrying the server's sample ids.
func RecommendAPI(ctx context.Context, apiTarget, queryID string, k int) (*recommend.Response, error) {
	u, err := url.Parse(strings.TrimRight(apiTarget, "/") + "/api/recommend/" + url.PathEscape(queryID))
	if err != nil {
		return nil, fmt.Errorf("invalid API target: %w", err)
	}
	if k > 0 {
		u.RawQuery = url.Values{"k": {fmt.Sprint(k)}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot reach API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp.StatusCode, body, queryID)
	}

	var out recommend.Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return &out, nil
}

func decodeAPIError(status int, body []byte, queryID string) error {
	var apiErr api.ErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.ErrorKind == "" {
		return fmt.Errorf("API error (HTTP %d): %s", status, bytes.TrimSpace(body))
	}

	if apiErr.ErrorKind == recommend.KindNotFound.String() {
		return &recommend.NotFoundError{
			QueryID:   queryID,
			Message:   apiErr.Message,
			SampleIDs: apiErr.SampleValidIDs,
		}
	}

	return fmt.Errorf("API error (HTTP %d, %s): %s", status, apiErr.ErrorKind, apiErr.Message)
}

func printResponse(w io.Writer, resp *recommend.Response) {
	fmt.Fprintf(w, "\n  %s %s  %s\n\n",
		cliui.KeyStyle.Render("Patient:"),
		cliui.ValueStyle.Render(resp.QueryID),
		cliui.DimStyle.Render("("+resp.Source+")"),
	)

	if len(resp.Recommendations) == 0 {
		fmt.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render("No recommendations."))
		return
	}

	rows := make([]cliui.Row, 0, len(resp.Recommendations))
	for _, r := range resp.Recommendations {
		rows = append(rows, cliui.Row{
			Label: r.ExternalID,
			Score: r.Score,
			Note:  fmt.Sprintf("concept %d", r.GlobalConceptIndex),
		})
	}
	cliui.RankedList(w, rows)
	fmt.Fprintln(w)
}

func printNotFound(w io.Writer, nf *recommend.NotFoundError) {
	fmt.Fprintf(w, "\n  %s %s\n", cliui.FailMark, nf.Message)
	if len(nf.SampleIDs) > 0 {
		fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("Try one of:"),
			cliui.ValueStyle.Render(strings.Join(nf.SampleIDs, ", ")))
	}
	fmt.Fprintln(w)
}
