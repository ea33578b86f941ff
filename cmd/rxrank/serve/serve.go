// Package servecmder provides the rxrank API server cobra command.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rxrank/api"
	"github.com/papercomputeco/rxrank/cmd/rxrank/cmdenv"
	"github.com/papercomputeco/rxrank/pkg/artifact"
	"github.com/papercomputeco/rxrank/pkg/config"
	"github.com/papercomputeco/rxrank/pkg/recommend"
	"github.com/papercomputeco/rxrank/pkg/recommend/recommendutils"
)

type serveCommander struct {
	flags serveFlags

	disableMCP bool

	cfg    *config.Config
	logger *slog.Logger
}

type serveFlags struct {
	embeddings      string
	mappings        string
	graph           string
	records         string
	listen          string
	graphProvider   string
	recordsProvider string
	recordsDSN      string
	encoder         string
	encoderTarget   string
	fanout          string
	timeout         string
	maxConcurrent   uint
	neo4jURI        string
	logJSON         bool
}

// FlagKeys lists the registry flags the serve command binds.
var FlagKeys = []string{
	config.FlagEmbeddings,
	config.FlagMappings,
	config.FlagGraphArtifact,
	config.FlagRecordsArt,
	config.FlagAPIListen,
	config.FlagGraphProvider,
	config.FlagRecordsProv,
	config.FlagRecordsDSN,
	config.FlagEncoder,
	config.FlagEncoderTarget,
	config.FlagFanout,
	config.FlagFallbackTmout,
	config.FlagMaxConcurrent,
	config.FlagNeo4jURI,
	config.FlagLogJSON,
}

const serveLongDesc string = `Run the rxrank API server.

The embedding store and id mappings are loaded once before the listener
starts. A load failure is fatal. Cold-start sampling is enabled when
fallback.enabled is set and a graph provider is configured.

Routes:
  GET  /api/health
  POST /api/recommend
  GET  /api/recommend/:id
  GET  /api/patients
  GET  /api/patients/:id/records
  POST /mcp

Example:
  rxrank serve --embeddings model/embeddings.json.zst --mappings model/mappings.json
  rxrank serve --graph-provider neo4j --neo4j-uri neo4j://localhost:7687`

const serveShortDesc string = "Run the rxrank API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cmdenv.Load(cmd, FlagKeys)
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

			return cmder.run(cmd.Context())
		},
	}

	addFlags(cmd, &cmder.flags)
	cmd.Flags().BoolVar(&cmder.disableMCP, "disable-mcp", false, "Do not mount the MCP endpoint")

	return cmd
}

func addFlags(cmd *cobra.Command, f *serveFlags) {
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddings, &f.embeddings)
	config.AddStringFlag(cmd, config.Flags, config.FlagMappings, &f.mappings)
	config.AddStringFlag(cmd, config.Flags, config.FlagGraphArtifact, &f.graph)
	config.AddStringFlag(cmd, config.Flags, config.FlagRecordsArt, &f.records)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &f.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagGraphProvider, &f.graphProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagRecordsProv, &f.recordsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagRecordsDSN, &f.recordsDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagEncoder, &f.encoder)
	config.AddStringFlag(cmd, config.Flags, config.FlagEncoderTarget, &f.encoderTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagFanout, &f.fanout)
	config.AddStringFlag(cmd, config.Flags, config.FlagFallbackTmout, &f.timeout)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxConcurrent, &f.maxConcurrent)
	config.AddStringFlag(cmd, config.Flags, config.FlagNeo4jURI, &f.neo4jURI)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLogJSON, &f.logJSON)
}

func (c *serveCommander) run(ctx context.Context) error {
	if c.cfg.Artifacts.Embeddings == "" || c.cfg.Artifacts.Mappings == "" {
		return errors.New("both artifacts.embeddings and artifacts.mappings must be set (use --embeddings and --mappings)")
	}

	opener := artifact.NewOpener(artifact.WithLogger(c.logger))

	registry := recommend.NewRegistry(recommendutils.NewLoader(c.cfg, opener, c.logger))
	defer func() {
		if err := registry.Close(); err != nil {
			c.logger.Error("closing engine", "error", err)
		}
	}()

	if _, err := registry.Get(ctx); err != nil {
		return err
	}

	reader, closeReader, err := cmdenv.RecordsReader(ctx, c.cfg, opener, c.logger)
	if err != nil {
		return err
	}
	defer closeReader()

	server, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
		DisableMCP: c.disableMCP,
	}, registry, reader, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
