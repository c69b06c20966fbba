package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const DefaultUploadDir = "data_upload"

var (
	ErrUploadDirMissing = errors.New("upload directory not found")
	ErrNoDescription    = errors.New("no .txt problem description found")
	ErrTooManyFiles     = errors.New("too many upload files")
)

// UploadError lists the offending files alongside a hint for the user.
type UploadError struct {
	Dir   string
	Files []string
	Hint  string
	Err   error
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("%v in %s", e.Err, e.Dir)
	if len(e.Files) > 0 {
		msg += ": " + strings.Join(e.Files, ", ")
	}
	if e.Hint != "" {
		msg += ". " + e.Hint
	}
	return msg
}

func (e *UploadError) Unwrap() error { return e.Err }

// Uploads are the user's input files. CSV is empty in text-only mode.
type Uploads struct {
	Description string
	CSV         string
}

// DiscoverUploads finds exactly one .txt description and at most one .csv
// data file directly inside dir.
func DiscoverUploads(dir string) (Uploads, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Uploads{}, &UploadError{Dir: dir, Hint: "Create it and place your .txt file inside.", Err: ErrUploadDirMissing}
	}
	fsys := os.DirFS(dir)
	txt, err := glob(fsys, dir, "*.txt")
	if err != nil {
		return Uploads{}, err
	}
	csv, err := glob(fsys, dir, "*.csv")
	if err != nil {
		return Uploads{}, err
	}
	switch {
	case len(txt) == 0:
		return Uploads{}, &UploadError{Dir: dir, Hint: "Place your problem description as a .txt file.", Err: ErrNoDescription}
	case len(txt) > 1:
		return Uploads{}, &UploadError{Dir: dir, Files: txt, Hint: "Keep only one .txt file (the problem description).", Err: fmt.Errorf("%w: multiple .txt files", ErrTooManyFiles)}
	case len(csv) > 1:
		return Uploads{}, &UploadError{Dir: dir, Files: csv, Hint: "Keep at most one .csv file (the parameter data).", Err: fmt.Errorf("%w: multiple .csv files", ErrTooManyFiles)}
	}
	up := Uploads{Description: txt[0]}
	if len(csv) == 1 {
		up.CSV = csv[0]
	}
	return up, nil
}

func glob(fsys fs.FS, dir, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(matches)
	for i, m := range matches {
		matches[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	return matches, nil
}
