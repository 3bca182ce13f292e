// Command salesreport runs cached analytical reports over a sales database.
package main

import (
	"os"

	"github.com/satishbabariya/salesreport/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
