package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Common errors returned by the artifact store.
var (
	// ErrArtifactNotFound is returned when the requested filename does not
	// exist or has been removed by retention.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrArtifactExists is returned when a write would overwrite an
	// existing artifact. Filenames are derived to be unique per job, so a
	// collision indicates a bug rather than a retry to absorb silently.
	ErrArtifactExists = errors.New("artifact already exists")

	// ErrInvalidFilename is returned for names that are empty, hidden, or
	// contain path separators or traversal sequences.
	ErrInvalidFilename = errors.New("invalid artifact filename")
)

// Info describes a stored artifact.
type Info struct {
	Filename  string
	SizeBytes int64
	CreatedAt time.Time
}

// Store is the persistence boundary for generated files.
// Version: 1.0
type Store interface {
	// Put writes a new artifact. The filename must already be sanitized
	// and derived by the caller; an existing name fails with
	// ErrArtifactExists, never a silent overwrite.
	Put(ctx context.Context, filename string, r io.Reader) (Info, error)

	// Get opens an artifact for reading along with its metadata.
	Get(ctx context.Context, filename string) (io.ReadCloser, Info, error)

	// List enumerates all artifacts. The order is stable within a single
	// call (sorted by filename) but carries no other meaning.
	List(ctx context.Context) ([]Info, error)

	// Delete removes an artifact. Deleting a nonexistent name is a no-op
	// so retention sweeps can race downloads safely.
	Delete(ctx context.Context, filename string) error
}

// FilesystemStore implements Store on a local directory.
type FilesystemStore struct {
	dir    string
	logger *slog.Logger
}

// NewFilesystemStore creates the backing directory if needed and returns
// a store rooted there.
func NewFilesystemStore(dir string, logger *slog.Logger) (*FilesystemStore, error) {
	if dir == "" {
		return nil, errors.New("artifact directory cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	return &FilesystemStore{dir: dir, logger: logger}, nil
}

// ValidateFilename rejects names that could escape the store directory or
// collide with hidden files. Exposed so the dispatcher can fail fast when
// deriving names.
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidFilename)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q is hidden", ErrInvalidFilename, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFilename, name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q contains a traversal sequence", ErrInvalidFilename, name)
	case filepath.Base(name) != name:
		return fmt.Errorf("%w: %q is not a bare filename", ErrInvalidFilename, name)
	}
	return nil
}

// Put writes the artifact with O_EXCL so a duplicate name surfaces as a
// collision instead of clobbering an earlier job's output.
func (s *FilesystemStore) Put(ctx context.Context, filename string, r io.Reader) (Info, error) {
	if err := ValidateFilename(filename); err != nil {
		return Info{}, err
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	path := filepath.Join(s.dir, filename)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return Info{}, fmt.Errorf("%w: %s", ErrArtifactExists, filename)
		}
		return Info{}, fmt.Errorf("failed to create artifact %s: %w", filename, err)
	}

	written, err := io.Copy(f, r)
	if err != nil {
		// Remove the partial file so a retry is not misreported as a
		// collision.
		_ = f.Close()
		_ = os.Remove(path)
		return Info{}, fmt.Errorf("failed to write artifact %s: %w", filename, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return Info{}, fmt.Errorf("failed to close artifact %s: %w", filename, err)
	}

	info, err := s.stat(filename)
	if err != nil {
		return Info{}, err
	}

	s.logger.Debug("artifact stored",
		"filename", filename,
		"size_bytes", written)
	return info, nil
}

// Get opens the artifact for streaming. The caller owns the ReadCloser.
func (s *FilesystemStore) Get(ctx context.Context, filename string) (io.ReadCloser, Info, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, Info{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}

	info, err := s.stat(filename)
	if err != nil {
		return nil, Info{}, err
	}

	f, err := os.Open(filepath.Join(s.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Info{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, filename)
		}
		return nil, Info{}, fmt.Errorf("failed to open artifact %s: %w", filename, err)
	}
	return f, info, nil
}

// List returns a snapshot of all stored artifacts sorted by filename.
func (s *FilesystemStore) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			// The file may have been swept between ReadDir and Info.
			continue
		}
		infos = append(infos, Info{
			Filename:  entry.Name(),
			SizeBytes: fi.Size(),
			CreatedAt: fi.ModTime().UTC(),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Filename < infos[j].Filename })
	return infos, nil
}

// Delete removes the artifact if present. Unknown names are a no-op.
func (s *FilesystemStore) Delete(ctx context.Context, filename string) error {
	if err := ValidateFilename(filename); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(s.dir, filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact %s: %w", filename, err)
	}
	return nil
}

func (s *FilesystemStore) stat(filename string) (Info, error) {
	fi, err := os.Stat(filepath.Join(s.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, filename)
		}
		return Info{}, fmt.Errorf("failed to stat artifact %s: %w", filename, err)
	}
	return Info{
		Filename:  filename,
		SizeBytes: fi.Size(),
		CreatedAt: fi.ModTime().UTC(),
	}, nil
}
