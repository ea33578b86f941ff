// Package inspectcmder provides the inspect command for summarizing the
// loaded embedding store and id mappings.
package inspectcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rxrank/cmd/rxrank/cmdenv"
	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/cliui"
	"github.com/papercomputeco/rxrank/pkg/config"
	"github.com/papercomputeco/rxrank/pkg/recommend"
	"github.com/papercomputeco/rxrank/pkg/recommend/recommendutils"
)

type inspectCommander struct {
	plain bool

	embeddings, mappings, graph, graphProvider string

	cfg    *config.Config
	logger *slog.Logger
}

var flagKeys = []string{
	config.FlagEmbeddings,
	config.FlagMappings,
	config.FlagGraphArtifact,
	config.FlagGraphProvider,
}

const inspectLongDesc string = `Load the artifacts and print a summary of the embedding store.

Reports the model version, dimension, table sizes, mapping aliases, id
collisions and whether the cold-start fallback is available.

Examples:
  rxrank inspect
  rxrank inspect --embeddings model/embeddings.db --mappings model/mappings.json
  rxrank inspect --plain`

const inspectShortDesc string = "Summarize the embedding store"

func NewInspectCmd() *cobra.Command {
	cmder := &inspectCommander{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: inspectShortDesc,
		Long:  inspectLongDesc,
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

	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print raw markdown instead of rendering it")
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddings, &cmder.embeddings)
	config.AddStringFlag(cmd, config.Flags, config.FlagMappings, &cmder.mappings)
	config.AddStringFlag(cmd, config.Flags, config.FlagGraphArtifact, &cmder.graph)
	config.AddStringFlag(cmd, config.Flags, config.FlagGraphProvider, &cmder.graphProvider)

	return cmd
}

func (c *inspectCommander) run(ctx context.Context, w io.Writer) error {
	engine, err := recommendutils.Build(ctx, c.cfg, artifact.NewOpener(artifact.WithLogger(c.logger)), c.logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	md := Summary(engine)
	if c.plain || !cliui.IsTerminal(w) {
		_, err := io.WriteString(w, md)
		return err
	}

	rendered, err := cliui.RenderMarkdown(md)
	if err != nil {
		c.logger.Debug("markdown render failed", "error", err)
	}
	_, err = io.WriteString(w, rendered)
	return err
}

// Summary renders the store statistics of e as a markdown document.
func Summary(e *recommend.Engine) string {
	st := e.Store()
	res := e.Resolver()
	queryAlias, conceptAlias := res.Aliases()

	version := st.Version()
	if version == "" {
		version = "unversioned"
	}

	var b strings.Builder
	b.WriteString("# Embedding store\n\n")
	b.WriteString("| Property | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Version | %s |\n", version)
	fmt.Fprintf(&b, "| Dimension | %d |\n", st.Dimension())
	fmt.Fprintf(&b, "| Query rows | %d |\n", st.QueryCount())
	fmt.Fprintf(&b, "| Concept rows | %d |\n", st.ConceptCount())
	fmt.Fprintf(&b, "| Candidates | %d |\n", st.CandidateCount())
	fmt.Fprintf(&b, "| Mapped query ids | %d |\n", res.QueryCount())
	fmt.Fprintf(&b, "| Mapped concept ids | %d |\n", res.ConceptCount())
	fmt.Fprintf(&b, "| Query alias | `%s` |\n", queryAlias)
	fmt.Fprintf(&b, "| Concept alias | `%s` |\n", conceptAlias)
	fmt.Fprintf(&b, "| Id collisions | %d |\n", res.Collisions())
	fmt.Fprintf(&b, "| Cold-start fallback | %t |\n", e.FallbackEnabled())

	listing := e.ListQueryIDs(5)
	if len(listing.IDs) > 0 {
		b.WriteString("\n## Sample query ids\n\n")
		for _, id := range listing.IDs {
			fmt.Fprintf(&b, "- `%s`\n", id)
		}
	}

	return b.String()
}
