package main

import (
	"os"

	"ledgerdesk/cmd/ledgerctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
