package media

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/quaverd/quaver/internal/cache"
	"github.com/quaverd/quaver/internal/services"
	"github.com/quaverd/quaver/internal/shared"
	"github.com/quaverd/quaver/internal/tasks"
)

const (
	// DefaultFragmentSize is the nominal fragment length: 3 minutes and
	// 20 seconds.
	DefaultFragmentSize = 200

	// DefaultCollectionLimit caps how many members are loaded from one
	// collection.
	DefaultCollectionLimit = 50
)

// Library materializes songs and collections. It carries the media-fetch
// backend, the process-wide metadata cache and the fragment cache directory.
type Library struct {
	backend         services.Backend
	cache           *cache.MetaCache
	dir             string
	fragmentSize    int
	collectionLimit int
	logger          *log.Logger
}

// LibraryOpts contains construction options for a Library.
type LibraryOpts struct {
	Backend         services.Backend
	Cache           *cache.MetaCache
	Dir             string
	FragmentSize    int
	CollectionLimit int
	Logger          *log.Logger
}

// NewLibrary creates a Library. FragmentSize and CollectionLimit fall back
// to defaults when unset.
func NewLibrary(opts LibraryOpts) *Library {
	if opts.FragmentSize <= 0 {
		opts.FragmentSize = DefaultFragmentSize
	}
	if opts.CollectionLimit <= 0 {
		opts.CollectionLimit = DefaultCollectionLimit
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Library{
		backend:         opts.Backend,
		cache:           opts.Cache,
		dir:             opts.Dir,
		fragmentSize:    opts.FragmentSize,
		collectionLimit: opts.CollectionLimit,
		logger:          opts.Logger,
	}
}

// NewSong creates a song for a URL and starts resolving it in the
// background. The song is returned immediately in an unresolved state.
func (l *Library) NewSong(url string) *Song {
	return l.newSong(url, nil)
}

// NewSongFromInfo creates a song with pre-injected metadata from a
// collection listing, avoiding a second network round trip. Incomplete
// injected metadata falls back to a full resolution.
func (l *Library) NewSongFromInfo(info *services.TrackInfo) *Song {
	return l.newSong(info.PageURL(), info)
}

func (l *Library) newSong(url string, injected *services.TrackInfo) *Song {
	l.logger.Info("created new song", "url", url)
	s := &Song{url: url, lib: l}
	s.ready = tasks.Go(func() (*Meta, error) {
		return l.resolve(s, url, injected)
	})
	return s
}

// resolve runs on the song's readiness task. Injected metadata and cache
// hits skip the network; a successful network resolution populates the
// cache. Failures are final for this song instance.
func (l *Library) resolve(s *Song, url string, injected *services.TrackInfo) (*Meta, error) {
	info := injected
	if info == nil {
		if hit, ok := l.cache.Get(url); ok {
			l.logger.Debug("metadata cache hit", "url", url)
			info = hit
		}
	}

	if info != nil {
		if m, err := metaFromInfo(info); err == nil {
			s.finish(m)
			return m, nil
		}
		l.logger.Warn("injected metadata incomplete, falling back to fetch", "url", url)
	}

	info, err := l.backend.ResolveTrack(context.Background(), url)
	if err != nil {
		return nil, err
	}
	l.cache.Put(url, info)

	m, err := metaFromInfo(info)
	if err != nil {
		return nil, err
	}
	s.finish(m)
	return m, nil
}

// LoadCollection resolves a collection URL to member songs, each with
// injected metadata. Returns [shared.ErrNotACollection] when the URL carries
// no collection identifier; callers fall back to single-item loading.
func (l *Library) LoadCollection(ctx context.Context, url string) ([]*Song, error) {
	if !cache.IsCollectionURL(url) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotACollection, url)
	}

	info, ok := l.cache.Get(url)
	if !ok {
		var err error
		info, err = l.backend.ResolveCollection(ctx, url, l.collectionLimit)
		if err != nil {
			return nil, err
		}
		l.cache.Put(url, info)
	}

	entries := info.Entries
	if len(entries) > l.collectionLimit {
		entries = entries[:l.collectionLimit]
	}

	songs := make([]*Song, 0, len(entries))
	for _, entry := range entries {
		songs = append(songs, l.NewSongFromInfo(entry))
	}
	l.logger.Info("collection loaded", "url", url, "songs", len(songs))
	return songs, nil
}
