package recordscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rxrank/cmd/rxrank/cmdenv"
	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/cliui"
	"github.com/papercomputeco/rxrank/pkg/config"
	"github.com/papercomputeco/rxrank/pkg/records"
)

type visitsCommander struct {
	n       int
	jsonOut bool

	recordsArtifact, provider, dsn, neo4jURI string

	cfg    *config.Config
	logger *slog.Logger
}

const visitsLongDesc string = `List visit ids known to the records reader, in ascending order.

Pass any of them to "rxrank records <visit-id> --visit".

Examples:
  rxrank records visits
  rxrank records visits -n 50 --json`

func newVisitsCmd() *cobra.Command {
	cmder := &visitsCommander{}

	cmd := &cobra.Command{
		Use:   "visits",
		Short: "List visit ids",
		Long:  visitsLongDesc,
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

	cmd.Flags().IntVarP(&cmder.n, "n", "n", records.DefaultVisitsLimit, "Maximum visit ids to show")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print visit ids as JSON")
	addReaderFlags(cmd, &cmder.recordsArtifact, &cmder.provider, &cmder.dsn, &cmder.neo4jURI)

	return cmd
}

func (c *visitsCommander) run(ctx context.Context, w io.Writer) error {
	reader, closeReader, err := cmdenv.RecordsReader(ctx, c.cfg, artifact.NewOpener(artifact.WithLogger(c.logger)), c.logger)
	if err != nil {
		return err
	}
	defer closeReader()

	visits, err := reader.Visits(ctx, c.n)
	if err != nil {
		return err
	}

	if c.jsonOut {
		return json.NewEncoder(w).Encode(visits)
	}

	if len(visits) == 0 {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No visits."))
		return nil
	}

	fmt.Fprintln(w)
	for _, v := range visits {
		fmt.Fprintf(w, "  %s\n", cliui.ValueStyle.Render(v))
	}
	fmt.Fprintln(w)

	return nil
}
