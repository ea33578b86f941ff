package recordscmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rxrank/cmd/rxrank/cmdenv"
	"github.com/papercomputeco/rxrank/cmd/rxrank/sqlitepath"
	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/cliui"
	"github.com/papercomputeco/rxrank/pkg/config"
	"github.com/papercomputeco/rxrank/pkg/records/recordsutils"
)

type importCommander struct {
	recordsArtifact, provider, dsn, neo4jURI string

	cfg    *config.Config
	logger *slog.Logger
}

const importLongDesc string = `Import a records artifact into the sqlite or postgres reader.

The artifact is a JSON (optionally compressed) document with a "records"
array of {patient_id, visit_id, kind, code, name, source} rows; visit_id
is optional. The import runs in a
single transaction. For sqlite, the database defaults to .rxrank/records.db.

Examples:
  rxrank records import records.json --records-provider sqlite
  rxrank records import s3://bucket/records.json.zst --records-provider postgres --records-dsn postgres://localhost/rxrank`

const importShortDesc string = "Import a records artifact"

func newImportCmd() *cobra.Command {
	cmder := &importCommander{}

	cmd := &cobra.Command{
		Use:   "import <artifact>",
		Short: importShortDesc,
		Long:  importLongDesc,
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

			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), args[0], configDir)
		},
	}

	addReaderFlags(cmd, &cmder.recordsArtifact, &cmder.provider, &cmder.dsn, &cmder.neo4jURI)

	return cmd
}

func (c *importCommander) run(ctx context.Context, w io.Writer, location, configDir string) error {
	dsn := c.cfg.Records.DSN
	if c.cfg.Records.Provider == recordsutils.ProviderSQLite && dsn == "" {
		dsn = sqlitepath.DefaultPath(configDir)
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return fmt.Errorf("creating records directory: %w", err)
		}
	}

	opener := artifact.NewOpener(artifact.WithLogger(c.logger))

	var tables *artifact.RecordTables
	err := cliui.Step(w, "Reading "+location, func() error {
		var err error
		tables, err = opener.LoadRecords(ctx, location)
		return err
	})
	if err != nil {
		return err
	}

	imp, err := recordsutils.NewImporter(ctx, &recordsutils.NewReaderOpts{
		ProviderType: c.cfg.Records.Provider,
		DSN:          dsn,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	defer imp.Close()

	start := time.Now()
	var n int
	err = cliui.Step(w, fmt.Sprintf("Importing %d records", len(tables.Records)), func() error {
		var ierr error
		n, ierr = imp.Import(ctx, tables.Records)
		return ierr
	})
	if err != nil {
		return err
	}

	c.logger.Info("records imported", "provider", c.cfg.Records.Provider, "rows", n, "duration", time.Since(start))

	fmt.Fprintf(w, "\n  %s Imported %s rows into %s %s\n\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(fmt.Sprint(n)),
		cliui.KeyStyle.Render(c.cfg.Records.Provider),
		cliui.DimStyle.Render("in "+cliui.FormatDuration(time.Since(start))),
	)
	return nil
}
