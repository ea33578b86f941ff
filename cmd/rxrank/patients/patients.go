// Package patientscmder provides the patients command for listing known
// patient ids.
package patientscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rxrank/cmd/rxrank/cmdenv"
	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/cliui"
	"github.com/papercomputeco/rxrank/pkg/config"
	"github.com/papercomputeco/rxrank/pkg/recommend"
	"github.com/papercomputeco/rxrank/pkg/recommend/recommendutils"
)

type patientsCommander struct {
	n      int
	remote bool
	quiet  bool

	embeddings, mappings, apiTarget string

	cfg    *config.Config
	logger *slog.Logger
}

var flagKeys = []string{
	config.FlagEmbeddings,
	config.FlagMappings,
	config.FlagAPITarget,
}

const patientsLongDesc string = `List patient ids with a stored embedding.

Ids are listed in mapping file order. Use --quiet to print one id per line,
which is handy for piping into "rxrank recommend".

Examples:
  rxrank patients
  rxrank patients -n 50 --quiet
  rxrank patients --remote`

const patientsShortDesc string = "List known patient ids"

func NewPatientsCmd() *cobra.Command {
	cmder := &patientsCommander{}

	cmd := &cobra.Command{
		Use:   "patients",
		Short: patientsShortDesc,
		Long:  patientsLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cmdenv.Load(cmd, flagKeys)
			if err != nil {
				return err
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, closeLog, err := cmdenv.Logger(cmd, cmder.cfg)
			if err != nil {
				return err
			}
			defer closeLog()
			cmder.logger = logger

			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&cmder.n, "number", "n", recommend.DefaultListSize, "Number of ids to list")
	cmd.Flags().BoolVar(&cmder.remote, "remote", false, "Query the API server instead of loading artifacts locally")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Print only ids, one per line")
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddings, &cmder.embeddings)
	config.AddStringFlag(cmd, config.Flags, config.FlagMappings, &cmder.mappings)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

func (c *patientsCommander) run(ctx context.Context, w io.Writer) error {
	var (
		listing recommend.Listing
		err     error
	)
	if c.remote {
		listing, err = PatientsAPI(ctx, c.cfg.Client.APITarget, c.n)
	} else {
		listing, err = c.local(ctx)
	}
	if err != nil {
		return err
	}

	if c.quiet {
		for _, id := range listing.IDs {
			fmt.Fprintln(w, id)
		}
		return nil
	}

	fmt.Fprintf(w, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Patients:"),
		cliui.DimStyle.Render(fmt.Sprintf("showing %d of %d", len(listing.IDs), listing.Total)),
	)
	for _, id := range listing.IDs {
		fmt.Fprintf(w, "  %s\n", cliui.ValueStyle.Render(id))
	}
	fmt.Fprintln(w)

	return nil
}

func (c *patientsCommander) local(ctx context.Context) (recommend.Listing, error) {
	// Listing never samples, so skip building the graph source.
	cfg := *c.cfg
	cfg.Fallback.Enabled = false

	engine, err := recommendutils.Build(ctx, &cfg, artifact.NewOpener(artifact.WithLogger(c.logger)), c.logger)
	if err != nil {
		return recommend.Listing{}, err
	}
	defer engine.Close()

	return engine.ListQueryIDs(c.n), nil
}

// PatientsAPI calls GET /api/patients on the rxrank API server.
func PatientsAPI(ctx context.Context, apiTarget string, n int) (recommend.Listing, error) {
	var out recommend.Listing

	u, err := url.Parse(strings.TrimRight(apiTarget, "/") + "/api/patients")
	if err != nil {
		return out, fmt.Errorf("invalid API target: %w", err)
	}
	u.RawQuery = url.Values{"n": {fmt.Sprint(n)}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return out, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("cannot reach API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("API error (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("parsing response: %w", err)
	}

	return out, nil
}
