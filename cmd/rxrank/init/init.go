// Package initcmder provides the init command for initializing a local
// .rxrank directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rxrank/pkg/cliui"
	"github.com/papercomputeco/rxrank/pkg/config"
	"github.com/papercomputeco/rxrank/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .rxrank/ directory in the current working directory.

Creates a local .rxrank/ directory that takes precedence over the default
~/.rxrank/ directory for configuration and the sqlite records database.

Use --preset to also write a config.toml for a common deployment:
  local     file graph and file records next to the artifacts
  neo4j     graph and records served from neo4j
  sidecar   file graph with the http encoder sidecar

Examples:
  rxrank init
  rxrank init --preset local`

const initShortDesc string = "Initialize a local .rxrank/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Write a preset config.toml (local, neo4j, sidecar)")

	return cmd
}

func (c *initCommander) run(w io.Writer) error {
	var preset *config.Config
	if c.preset != "" {
		var err error
		preset, err = config.PresetConfig(c.preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	existed := isDir(filepath.Join(cwd, ".rxrank"))

	dir, err := dotdir.NewManager().Init(cwd)
	if err != nil {
		return err
	}

	if existed {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
	} else {
		fmt.Fprintf(w, "%s Initialized .rxrank directory: %s\n", cliui.SuccessMark, dir)
	}

	if preset == nil {
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if _, err := os.Stat(cfger.GetTarget()); err == nil {
		return errors.New("config.toml already exists; use \"rxrank config set\" to change it")
	}

	if err := cfger.SaveConfig(preset); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Wrote %s preset: %s\n", cliui.SuccessMark, c.preset, cfger.GetTarget())
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
