// Package rxrankcmder wires the rxrank command tree.
package rxrankcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/rxrank/cmd/rxrank/config"
	initcmder "github.com/papercomputeco/rxrank/cmd/rxrank/init"
	inspectcmder "github.com/papercomputeco/rxrank/cmd/rxrank/inspect"
	patientscmder "github.com/papercomputeco/rxrank/cmd/rxrank/patients"
	recommendcmder "github.com/papercomputeco/rxrank/cmd/rxrank/recommend"
	recordscmder "github.com/papercomputeco/rxrank/cmd/rxrank/records"
	servecmder "github.com/papercomputeco/rxrank/cmd/rxrank/serve"
	versioncmder "github.com/papercomputeco/rxrank/cmd/version"
)

const rxrankLongDesc string = `rxrank ranks drugs for patients from a trained embedding model.

Recommendations are dot-product rankings of a patient's embedding against
drug concept embeddings. Patients without a stored embedding are encoded
on the fly from their two-hop graph neighborhood.

Get started:
  rxrank init --preset local          Create .rxrank/config.toml
  rxrank inspect                      Summarize the embedding store
  rxrank recommend <patient-id>       Rank drugs for a patient
  rxrank serve                        Run the API server`

const rxrankShortDesc string = "rxrank - drug recommendation retrieval"

func NewRxrankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "rxrank",
		Short:        rxrankShortDesc,
		Long:         rxrankLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .rxrank/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(recommendcmder.NewRecommendCmd())
	cmd.AddCommand(patientscmder.NewPatientsCmd())
	cmd.AddCommand(recordscmder.NewRecordsCmd())
	cmd.AddCommand(inspectcmder.NewInspectCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
