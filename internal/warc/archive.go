package warc

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/warcbuilder/internal/config"
	derrors "git.home.luguber.info/inful/warcbuilder/internal/errors"
)

// ArchiveName derives the output file name. An explicit name has up to two
// extensions removed ("site.warc.gz" becomes "site"); without one the base
// name of the first input is used. The .warc or .warc.gz suffix is added.
func ArchiveName(name, firstInput string, compress bool) string {
	if name != "" {
		for range 2 {
			name = strings.TrimSuffix(name, filepath.Ext(name))
		}
	} else {
		trimmed := strings.TrimRight(filepath.FromSlash(firstInput), string(os.PathSeparator))
		name = filepath.Base(trimmed)
		if trimmed == "" || name == "." || name == string(os.PathSeparator) {
			name = "warcbuilder"
		}
	}
	if compress {
		return name + ".warc.gz"
	}
	return name + ".warc"
}

// OpenArchive opens path for writing according to mode. In create mode an
// existing file is an OutputExists error.
func OpenArchive(path string, mode config.WriteMode) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	switch mode {
	case config.WriteModeAppend:
		flags |= os.O_APPEND
	case config.WriteModeOverwrite:
		flags |= os.O_TRUNC
	default:
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, derrors.OutputExists(path, err)
		}
		return nil, derrors.FileSystemError(fmt.Sprintf("open %s", path), err)
	}
	return f, nil
}
