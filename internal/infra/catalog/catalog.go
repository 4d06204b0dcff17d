package catalog

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/solobox/internal/domain/track"
)

// Errors
var (
	ErrPermissionDenied = errors.New("library source is not accessible")
	ErrNoSources        = errors.New("no library sources configured")
)

// defaultExtensions matches the formats the local engine can decode.
var defaultExtensions = []string{".mp3", ".wav", ".flac", ".ogg"}

// SourceConfig represents one library source with free-form settings.
type SourceConfig struct {
	Path     string
	Settings map[string]any
}

// sourceOptions are the decoded per-source settings.
type sourceOptions struct {
	Recursive  bool     `mapstructure:"recursive"`
	Extensions []string `mapstructure:"extensions"`
}

// source is a resolved library source.
type source struct {
	path string
	opts sourceOptions
}

// Config represents catalog configuration.
type Config struct {
	Sources []SourceConfig
	Limit   int // Maximum number of tracks listed, non-positive means unlimited
}

// Catalog enumerates playable tracks from local library sources. The listing
// is ordered (sources in configured order, lexical within a source) and
// read-only for consumers.
type Catalog struct {
	sources []source
	limit   int
}

// New creates a catalog from configuration. Per-source settings maps are
// decoded here so a typo in the config fails fast instead of at scan time.
func New(cfg Config) (*Catalog, error) {
	if len(cfg.Sources) == 0 {
		return nil, ErrNoSources
	}

	sources := make([]source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		if sc.Path == "" {
			return nil, errors.New("library source path is required")
		}

		opts := sourceOptions{Recursive: true}
		if sc.Settings != nil {
			if err := mapstructure.Decode(sc.Settings, &opts); err != nil {
				return nil, errors.Wrapf(err, "invalid settings for source %s", sc.Path)
			}
		}
		if len(opts.Extensions) == 0 {
			opts.Extensions = defaultExtensions
		}
		sources = append(sources, source{path: sc.Path, opts: opts})
	}

	return &Catalog{sources: sources, limit: cfg.Limit}, nil
}

// RequestPermission verifies every source directory exists and is readable.
// Returns ErrPermissionDenied when access is refused.
func (c *Catalog) RequestPermission() error {
	for _, src := range c.sources {
		info, err := os.Stat(src.path)
		if err != nil {
			if os.IsPermission(err) {
				return errors.Wrapf(ErrPermissionDenied, "%s", src.path)
			}
			return errors.Wrapf(err, "failed to access library source %s", src.path)
		}
		if !info.IsDir() {
			return errors.Newf("library source %s is not a directory", src.path)
		}
		if _, err := os.ReadDir(src.path); err != nil {
			if os.IsPermission(err) {
				return errors.Wrapf(ErrPermissionDenied, "%s", src.path)
			}
			return errors.Wrapf(err, "failed to read library source %s", src.path)
		}
	}
	return nil
}

// List enumerates all playable tracks across the sources, in order.
func (c *Catalog) List(ctx context.Context) ([]track.Track, error) {
	chain := NewChain(
		&HiddenFilter{},
		NewDuplicateFilter(),
		NewLimitFilter(c.limit),
	)

	var tracks []track.Track
	for _, src := range c.sources {
		found, err := c.scanSource(ctx, src, chain)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, found...)
	}

	zlog.Info().Msgf("catalog: listed %d tracks from %d sources", len(tracks), len(c.sources))
	return tracks, nil
}

// scanSource walks one source directory and converts accepted entries.
func (c *Catalog) scanSource(ctx context.Context, src source, chain *Chain) ([]track.Track, error) {
	extFilter := NewExtensionFilter(src.opts.Extensions)

	var paths []string
	err := filepath.WalkDir(src.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		entry := Entry{Path: path, Name: d.Name()}
		if d.IsDir() {
			if path == src.path {
				return nil
			}
			if !src.opts.Recursive {
				return filepath.SkipDir
			}
			// Hidden directories are pruned entirely.
			if r := (&HiddenFilter{}).Check(entry); !r.Accepted {
				return filepath.SkipDir
			}
			return nil
		}

		if r := extFilter.Check(entry); !r.Accepted {
			return nil
		}
		if r := chain.Check(entry); !r.Accepted {
			if r.Code == "limit" {
				return filepath.SkipAll
			}
			zlog.Debug().Msgf("catalog: skipping %s: %s", path, r.Code)
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		if os.IsPermission(err) {
			return nil, errors.Wrapf(ErrPermissionDenied, "%s", src.path)
		}
		return nil, errors.Wrapf(err, "failed to enumerate library source %s", src.path)
	}

	sort.Strings(paths)

	tracks := make([]track.Track, 0, len(paths))
	for _, path := range paths {
		tracks = append(tracks, readTrack(path))
	}
	return tracks, nil
}

// readTrack builds a Track from a file, falling back to the filename when
// tags are missing or unreadable. Duration stays unknown until the engine
// decodes the file.
func readTrack(path string) track.Track {
	trk := track.Track{
		ID:      trackID(path),
		Title:   titleFromPath(path),
		Locator: path,
	}

	f, err := os.Open(path)
	if err != nil {
		zlog.Warn().Msgf("catalog: failed to open %s for tags: %v", path, err)
		return trk
	}
	defer func() { _ = f.Close() }()

	m, err := tag.ReadFrom(f)
	if err != nil {
		zlog.Debug().Msgf("catalog: no readable tags in %s: %v", path, err)
		return trk
	}

	if title := strings.TrimSpace(m.Title()); title != "" {
		trk.Title = title
	}
	trk.Artist = strings.TrimSpace(m.Artist())
	trk.Album = strings.TrimSpace(m.Album())
	return trk
}

// trackID derives a stable ID from the locator so the same file keeps its
// identity across refreshes.
func trackID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// titleFromPath returns the filename without its extension.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
