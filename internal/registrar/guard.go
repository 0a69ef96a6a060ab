// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registrar

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/pdiddy/registrar-json/pkg/types"
)

// CheckPreconditions verifies that a conversion from csvPath to jsonPath is
// safe to start and returns the source file info. On success the parent
// directory of jsonPath exists. On failure nothing has been written.
//
// The source must be a regular file strictly larger than
// cfg.MinSourceBytes. The destination must not exist unless cfg.Overwrite
// is set, and may never be a directory.
func CheckPreconditions(cfg types.ConversionConfig, csvPath, jsonPath string) (fs.FileInfo, error) {
	src, err := os.Stat(csvPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		e := newError(SourceMissingOrTooSmall, "source %s does not exist", csvPath)
		e.Path = csvPath
		return nil, e
	case err != nil:
		e := wrapError(err, FilesystemError, "checking source %s", csvPath)
		e.Path = csvPath
		return nil, e
	case !src.Mode().IsRegular():
		e := newError(SourceMissingOrTooSmall, "source %s is not a regular file", csvPath)
		e.Path = csvPath
		return nil, e
	case src.Size() <= cfg.MinSourceBytes:
		e := newError(SourceMissingOrTooSmall, "source %s is %s, expected more than %s",
			csvPath, humanize.Bytes(uint64(src.Size())), humanize.Bytes(uint64(max(cfg.MinSourceBytes, 0))))
		e.Path = csvPath
		return nil, e
	}

	dst, err := os.Stat(jsonPath)
	switch {
	case err == nil && dst.IsDir():
		e := newError(FilesystemError, "destination %s is a directory", jsonPath)
		e.Path = jsonPath
		return nil, e
	case err == nil && !cfg.Overwrite:
		e := newError(UnsafeDestination, "destination %s already exists (use --force to overwrite)", jsonPath)
		e.Path = jsonPath
		return nil, e
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		e := wrapError(err, FilesystemError, "checking destination %s", jsonPath)
		e.Path = jsonPath
		return nil, e
	}

	dir := filepath.Dir(jsonPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		e := wrapError(err, FilesystemError, "creating output directory %s", dir)
		e.Path = dir
		return nil, e
	}

	return src, nil
}
