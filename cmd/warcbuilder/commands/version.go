package commands

import (
	"fmt"
	"os"

	"git.home.luguber.info/inful/warcbuilder/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (VersionCmd) Run(_ *Global, _ *CLI) error {
	_, _ = fmt.Fprintf(os.Stdout, "%s (commit %s, built %s)\n", version.Software(), version.GitCommit, version.BuildTime)
	return nil
}
