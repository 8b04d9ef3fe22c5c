package main

import (
	"os"

	"github.com/chanctl/chanctl/cmd/chanctl/commands"
	"github.com/chanctl/chanctl/internal/errors"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, buildTime)
	os.Exit(errors.ExitCode(commands.Execute()))
}
