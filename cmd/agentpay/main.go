package main

import (
	"os"

	"agentpay/cmd/agentpay/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
