package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/warcbuilder/cmd/warcbuilder/commands"
	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
	"git.home.luguber.info/inful/warcbuilder/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("warcbuilder"),
		kong.Description("Assemble WARC archives from local files, directories and zip files."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)

	err := ctx.Run(&commands.Global{Logger: slog.Default()}, &cli)
	derrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
