package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
	"git.home.luguber.info/inful/warcbuilder/internal/warc"
)

// InspectCmd implements the 'inspect' command.
type InspectCmd struct {
	File string `arg:"" help:"WARC file to list (plain or gzip compressed)" type:"existingfile"`
}

func (i *InspectCmd) Run(_ *Global, _ *CLI) error {
	return RunInspect(os.Stdout, i.File)
}

// RunInspect prints type, target URI, date and content type of every record
// in path, followed by a count.
func RunInspect(out io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return derrors.FileSystemError("open "+path, err)
	}
	defer func() { _ = f.Close() }()

	rd, err := warc.NewReader(f)
	if err != nil {
		return derrors.FileSystemError("read "+path, err)
	}
	defer func() { _ = rd.Close() }()
	rd.SkipBodies = true

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TYPE\tURI\tDATE\tCONTENT-TYPE")
	n := 0
	for rec, err := range rd.All() {
		if err != nil {
			_ = tw.Flush()
			return derrors.FileSystemError("read "+path, err)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			rec.Type(), dash(rec.Get("WARC-Target-URI")), rec.Get("WARC-Date"), dash(rec.Get("Content-Type")))
		n++
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%d records\n", n)
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
