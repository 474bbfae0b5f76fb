package main

import (
	"os"

	"github.com/tonimelisma/globus-transfer/internal/flow"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Guidance for rejected submissions is already on stdout.
		if flow.IsSubmitError(err) {
			os.Exit(1)
		}

		exitOnError(err)
	}
}
