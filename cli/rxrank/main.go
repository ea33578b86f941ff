package main

import (
	"os"

	rxrankcmder "github.com/papercomputeco/rxrank/cmd/rxrank"
)

func main() {
	cmd := rxrankcmder.NewRxrankCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
