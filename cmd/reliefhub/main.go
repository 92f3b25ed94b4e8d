// Command reliefhub runs the inventory and dispatch control service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// serviceName names the config file and tags every log line
const serviceName = "reliefhub"

func main() {
	root := &cobra.Command{
		Use:           "reliefhub",
		Short:         "ReliefHub inventory and dispatch control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newTokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
