package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	DefaultDir         = "current_query"
	DefaultHistoryDir  = "query_history"
	DefaultMaxArchives = 20

	archiveLayout = "2006-01-02_150405"
)

// Workspace is the working directory of one pipeline run together with the
// archive of earlier runs.
type Workspace struct {
	Dir        string
	HistoryDir string
	// MaxArchives caps the archive; zero or less keeps everything.
	MaxArchives int
	Logger      *slog.Logger
	Now         func() time.Time
}

// New returns a workspace with the default archive location and cap.
func New(dir string) *Workspace {
	return &Workspace{Dir: dir, HistoryDir: DefaultHistoryDir, MaxArchives: DefaultMaxArchives}
}

// Prepare archives the previous run when archive is set, applies the cap
// and clears every file under Dir while keeping its directory tree. It
// returns the archive path, or "" when nothing was archived.
func (w *Workspace) Prepare(archive bool) (string, error) {
	var archived string
	if archive {
		var err error
		if archived, err = w.Archive(); err != nil {
			return "", err
		}
		if _, err := w.EnforceLimit(); err != nil {
			return archived, err
		}
	}
	return archived, w.Clear()
}

// HasContent reports whether Dir holds at least one file at any depth.
func (w *Workspace) HasContent() (bool, error) {
	found := false
	err := filepath.WalkDir(w.Dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return found, err
}

// Archive copies Dir into a timestamped folder under HistoryDir. Colliding
// timestamps get a numeric suffix.
func (w *Workspace) Archive() (string, error) {
	ok, err := w.HasContent()
	if err != nil || !ok {
		return "", err
	}
	if err := os.MkdirAll(w.historyDir(), 0o755); err != nil {
		return "", err
	}
	base := filepath.Join(w.historyDir(), w.now().Format(archiveLayout))
	dest := base
	for i := 1; exists(dest); i++ {
		dest = fmt.Sprintf("%s_%d", base, i)
	}
	if err := copyTree(w.Dir, dest); err != nil {
		return "", fmt.Errorf("archive %s: %w", w.Dir, err)
	}
	w.logger().Info("archived previous query", "path", dest)
	return dest, nil
}

// EnforceLimit removes the oldest archives, by name, beyond MaxArchives.
func (w *Workspace) EnforceLimit() ([]string, error) {
	if w.MaxArchives <= 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(w.historyDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var archives []string
	for _, e := range entries {
		if e.IsDir() {
			archives = append(archives, e.Name())
		}
	}
	sort.Strings(archives)
	var removed []string
	for len(archives) > w.MaxArchives {
		oldest := filepath.Join(w.historyDir(), archives[0])
		archives = archives[1:]
		if err := os.RemoveAll(oldest); err != nil {
			return removed, err
		}
		w.logger().Info("removed old archive", "path", oldest)
		removed = append(removed, oldest)
	}
	return removed, nil
}

// Clear deletes every file below Dir but keeps the directories. A missing
// Dir is created.
func (w *Workspace) Clear() error {
	if !exists(w.Dir) {
		return os.MkdirAll(w.Dir, 0o755)
	}
	err := filepath.WalkDir(w.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return os.Remove(path)
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", w.Dir, err)
	}
	w.logger().Info("cleared workspace", "dir", w.Dir)
	return nil
}

func (w *Workspace) historyDir() string {
	if w.HistoryDir == "" {
		return DefaultHistoryDir
	}
	return w.HistoryDir
}

func (w *Workspace) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Workspace) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
