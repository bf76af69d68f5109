package commands

import (
	"fmt"
	"io"
	"os"

	"git.home.luguber.info/inful/warcbuilder/internal/config"
	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
)

// DefaultConfigFile is written by init when no --config path is given.
const DefaultConfigFile = "warcbuilder.yaml"

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	path := root.Config
	if path == "" {
		path = DefaultConfigFile
	}
	return RunInit(os.Stdout, path, i.Force)
}

// RunInit writes the example configuration to configPath.
func RunInit(out io.Writer, configPath string, force bool) error {
	if err := config.Init(configPath, force); err != nil {
		return derrors.ConfigInvalid(err).WithContext("path", configPath)
	}
	_, _ = fmt.Fprintf(out, "Wrote example configuration to %s\n", configPath)
	return nil
}
