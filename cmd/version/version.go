// Package versioncmder provides the version command shared by the rxrank
// binaries.
package versioncmder

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rxrank/pkg/cliui"
	"github.com/papercomputeco/rxrank/pkg/utils"
)

type versionCommander struct {
	short bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the rxrank version",
		Long:  "Print the version, commit and build time of this rxrank binary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.run(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().BoolVar(&cmder.short, "short", false, "Print only the version")

	return cmd
}

func (c *versionCommander) run(w io.Writer) {
	if c.short {
		fmt.Fprintln(w, utils.Version)
		return
	}

	cliui.KeyValue(w, "Version", utils.Version)
	cliui.KeyValue(w, "Sha", utils.Sha)
	cliui.KeyValue(w, "Built at", utils.Buildtime)
	cliui.KeyValue(w, "Go", runtime.Version())
}
