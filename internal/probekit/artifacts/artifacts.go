// Package artifacts persists tool outputs (screenshots, DOM captures,
// session reports) to the configured output directory.
package artifacts

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/rs/zerolog/log"

	"github.com/probekit/probekit/internal/common/apperrors"
)

var (
	// ErrArtifactError is the base error for artifact persistence errors.
	ErrArtifactError apperrors.Error = apperrors.New("error persisting artifact").SetStatusCode(http.StatusInternalServerError)

	// ErrInvalidName is returned for artifact names that would escape the
	// output directory.
	ErrInvalidName apperrors.Error = ErrArtifactError.New("invalid artifact name").SetStatusCode(http.StatusBadRequest)
)

// Store writes artifacts under a single output directory. Names are flat;
// path separators are rejected.
type Store struct {
	dir string
}

// NewStore creates the output directory if needed and returns a store
// rooted there.
func NewStore(dir string) (*Store, apperrors.Error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ErrArtifactError.MsgErr("creating output directory", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the artifact and returns its absolute path. A name without an
// extension gets one sniffed from the content's magic bytes when the type is
// recognized.
func (s *Store) Save(name string, data []byte) (string, apperrors.Error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName.Msg(name)
	}

	if filepath.Ext(name) == "" {
		if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
			name += "." + kind.Extension
		}
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", ErrArtifactError.MsgErr(name, err)
	}
	log.Debug().Str("path", path).Int("bytes", len(data)).Msg("artifact saved")
	return path, nil
}

// List returns the names of all stored artifacts.
func (s *Store) List() ([]string, apperrors.Error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, ErrArtifactError.MsgErr("listing output directory", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
