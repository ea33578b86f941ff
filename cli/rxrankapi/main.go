package main

import (
	"os"

	servecmder "github.com/papercomputeco/rxrank/cmd/rxrank/serve"
	versioncmder "github.com/papercomputeco/rxrank/cmd/version"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "rxrankapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .rxrank/ config directory")
	cmd.AddCommand(versioncmder.NewVersionCmd())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
