// Package netcdf reads and writes gridded datasets stored as NetCDF files,
// one file per source.
package netcdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	gonetcdf "github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
)

const sourcePlaceholder = "{source}"

// Store implements domain.DatasetStore over a directory of NetCDF files. The
// file of a source is found by substituting its name into pattern.
type Store struct {
	dir     string
	pattern string
	logger  *slog.Logger
}

// NewStore creates a store reading from dir. pattern must contain
// "{source}" exactly once.
func NewStore(dir, pattern string, logger *slog.Logger) (*Store, error) {
	if strings.Count(pattern, sourcePlaceholder) != 1 {
		return nil, fmt.Errorf("dataset pattern %q must contain %s once", pattern, sourcePlaceholder)
	}
	return &Store{dir: dir, pattern: pattern, logger: logger}, nil
}

// Path returns the file holding source.
func (s *Store) Path(source string) string {
	return filepath.Join(s.dir, strings.Replace(s.pattern, sourcePlaceholder, source, 1))
}

// LoadField decodes one variable of a source file into a raw field. Axis
// names are left as the file spells them.
func (s *Store) LoadField(ctx context.Context, source, variable string) (*domain.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	nc, err := s.open(source)
	if err != nil {
		return nil, err
	}
	defer nc.Close()

	if !slices.Contains(nc.ListVariables(), variable) {
		return nil, fmt.Errorf("%s: variable %q: %w", source, variable, domain.ErrDatasetNotFound)
	}
	v, err := nc.GetVariable(variable)
	if err != nil {
		return nil, fmt.Errorf("%s: read %q: %w", source, variable, err)
	}
	f, err := decodeVariable(nc, variable, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	s.logger.Debug("dataset variable loaded",
		"source", source,
		"variable", variable,
		"shape", f.Shape(),
		"duration", time.Since(start),
	)
	return f, nil
}

// Sources lists the sources present in the store directory, sorted.
func (s *Store) Sources() ([]string, error) {
	prefix, suffix, _ := strings.Cut(s.pattern, sourcePlaceholder)
	matches, err := filepath.Glob(filepath.Join(s.dir, prefix+"*"+suffix))
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(s.dir, m)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		name := strings.TrimSuffix(strings.TrimPrefix(rel, prefix), suffix)
		if name != "" {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Variables lists the data variables of a source: every variable that is not
// the coordinate variable of its own dimension.
func (s *Store) Variables(source string) ([]string, error) {
	nc, err := s.open(source)
	if err != nil {
		return nil, err
	}
	defer nc.Close()

	var out []string
	for _, name := range nc.ListVariables() {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %q: %w", source, name, err)
		}
		dims := vg.Dimensions()
		if len(dims) == 1 && dims[0] == name {
			continue
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) open(source string) (api.Group, error) {
	if !domain.ValidName(source) {
		return nil, fmt.Errorf("source %q: %w", source, domain.ErrInvalidRequest)
	}
	path := s.Path(source)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s (%s): %w", source, path, domain.ErrDatasetNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	nc, err := gonetcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return nc, nil
}
