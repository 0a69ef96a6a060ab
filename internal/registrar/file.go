// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registrar

import (
	"io"
	"os"
	"path/filepath"
)

// outputMode is the permission of a finished document.
const outputMode = 0o644

// withWriteFile runs writeFn against a temporary file in the directory of
// path and renames it over path only if writeFn succeeds. On any failure
// the temporary file is removed and path is left as it was.
//
// Errors returned by writeFn are passed through unchanged; failures of the
// file operations themselves are FilesystemError.
func withWriteFile(path string, writeFn func(w io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return wrapError(err, FilesystemError, "creating temporary file for %s", path)
	}
	tmp := f.Name()

	if err := writeFn(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return wrapError(err, FilesystemError, "syncing %s", tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return wrapError(err, FilesystemError, "closing %s", tmp)
	}
	if err := os.Chmod(tmp, outputMode); err != nil {
		os.Remove(tmp)
		return wrapError(err, FilesystemError, "setting permissions on %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return wrapError(err, FilesystemError, "moving output into place at %s", path)
	}
	return nil
}
