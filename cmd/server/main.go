package main

import (
	"os"

	"github.com/dkeye/Classroom/cmd/server/commands"
)

var version = "dev"

func main() {
	commands.SetVersion(version)
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
