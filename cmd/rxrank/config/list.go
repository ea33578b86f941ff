package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rxrank/pkg/config"
)

const listLongDesc string = `List configuration values.

Prints every key with its effective value, or only the keys of one
config.toml section when a section name is given. Keys whose value
differs from the built-in default are marked with "*"; --changed
prints only those.

Examples:
  rxrank config list
  rxrank config list fallback
  rxrank config list --changed`

const listShortDesc string = "List configuration values"

type listCommander struct {
	changed bool
}

func newListCmd() *cobra.Command {
	lc := &listCommander{}
	cmd := &cobra.Command{
		Use:       "list [section]",
		Short:     listShortDesc,
		Long:      listLongDesc,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: sections(),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			section := ""
			if len(args) == 1 {
				section = args[0]
			}
			return lc.run(cmd.OutOrStdout(), configDir, section)
		},
	}
	cmd.Flags().BoolVar(&lc.changed, "changed", false, "Only list keys that differ from their default")

	return cmd
}

func (lc *listCommander) run(w io.Writer, configDir, section string) error {
	keys := config.ValidConfigKeys()
	if section != "" {
		var filtered []string
		for _, k := range keys {
			if strings.HasPrefix(k, section+".") {
				filtered = append(filtered, k)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("unknown config section: %q (available: %s)", section, strings.Join(sections(), ", "))
		}
		keys = filtered
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	defaults := config.NewDefaultConfig()
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "# %s\n", target)
	} else {
		fmt.Fprintln(w, "# no config file, built-in defaults")
	}

	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	for _, k := range keys {
		value, _ := config.KeyValue(cfg, k)
		def, _ := config.KeyValue(defaults, k)
		mark := " "
		if value != def {
			mark = "*"
		} else if lc.changed {
			continue
		}

		shown := "<not set>"
		if value != "" {
			shown = fmt.Sprintf("%q", value)
		}
		fmt.Fprintf(w, "%s %-*s = %s\n", mark, width, k, shown)
	}

	return nil
}

// sections returns the distinct leading segments of the config keys.
func sections() []string {
	var out []string
	for _, k := range config.ValidConfigKeys() {
		s, _, _ := strings.Cut(k, ".")
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}
