// Package recordscmder provides the records command for reading and
// importing clinical records.
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
	"github.com/papercomputeco/rxrank/pkg/utils"
)

const maxNameWidth = 60

type recordsCommander struct {
	kind    string
	limit   int
	visit   bool
	jsonOut bool

	recordsArtifact, provider, dsn, neo4jURI string

	cfg    *config.Config
	logger *slog.Logger
}

var flagKeys = []string{
	config.FlagRecordsArt,
	config.FlagRecordsProv,
	config.FlagRecordsDSN,
	config.FlagNeo4jURI,
}

const recordsLongDesc string = `Show the clinical records of a patient or visit.

Records come from the reader selected by records.provider (file, sqlite,
postgres or neo4j). Rows are deduplicated per kind by code.

With --visit the argument is a visit id and the output lists the diagnoses
recorded in that visit followed by the drugs prescribed for them.

Examples:
  rxrank records 10006
  rxrank records 10006 --kind drug --limit 20
  rxrank records 200 --visit
  rxrank records visits -n 5
  rxrank records import records.json --records-provider sqlite`

const recordsShortDesc string = "Show the clinical records of a patient or visit"

func NewRecordsCmd() *cobra.Command {
	cmder := &recordsCommander{}

	cmd := &cobra.Command{
		Use:   "records <patient-id | visit-id>",
		Short: recordsShortDesc,
		Long:  recordsLongDesc,
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

	cmd.Flags().StringVar(&cmder.kind, "kind", "", "Only show one kind (drug, diagnosis, admission)")
	cmd.Flags().IntVar(&cmder.limit, "limit", 10, "Maximum records to show")
	cmd.Flags().BoolVar(&cmder.visit, "visit", false, "Treat the argument as a visit id")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print records as JSON")
	addReaderFlags(cmd, &cmder.recordsArtifact, &cmder.provider, &cmder.dsn, &cmder.neo4jURI)

	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newVisitsCmd())

	return cmd
}

func addReaderFlags(cmd *cobra.Command, art, provider, dsn, neo4jURI *string) {
	config.AddStringFlag(cmd, config.Flags, config.FlagRecordsArt, art)
	config.AddStringFlag(cmd, config.Flags, config.FlagRecordsProv, provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagRecordsDSN, dsn)
	config.AddStringFlag(cmd, config.Flags, config.FlagNeo4jURI, neo4jURI)
}

func (c *recordsCommander) run(ctx context.Context, w io.Writer, id string) error {
	parse, label := records.ParseKind, "Patient:"
	if c.visit {
		parse, label = records.ParseVisitKind, "Visit:"
	}
	kind, err := parse(c.kind)
	if err != nil {
		return err
	}

	reader, closeReader, err := cmdenv.RecordsReader(ctx, c.cfg, artifact.NewOpener(artifact.WithLogger(c.logger)), c.logger)
	if err != nil {
		return err
	}
	defer closeReader()

	var recs []records.Record
	if c.visit {
		recs, err = reader.VisitRecords(ctx, id, kind, c.limit)
	} else {
		recs, err = reader.Records(ctx, id, kind, c.limit)
	}
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	fmt.Fprintf(w, "\n  %s %s\n\n", cliui.KeyStyle.Render(label), cliui.ValueStyle.Render(id))
	if len(recs) == 0 {
		fmt.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render("No records."))
		return nil
	}

	for _, r := range recs {
		fmt.Fprintf(w, "  %-10s %s  %s\n",
			cliui.DimStyle.Render(string(r.Kind)),
			cliui.KeyStyle.Render(r.Code),
			cliui.ValueStyle.Render(utils.Truncate(r.Name, maxNameWidth)),
		)
	}
	fmt.Fprintln(w)

	return nil
}
