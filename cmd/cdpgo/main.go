package main

import (
	"os"

	"github.com/wirebird/cdpgo/cmd/cdpgo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
