package media_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/quaverd/quaver/internal/cache"
	"github.com/quaverd/quaver/internal/media"
	"github.com/quaverd/quaver/internal/services"
	"github.com/quaverd/quaver/internal/shared"
	tu "github.com/quaverd/quaver/internal/testing"
)

func newLibrary(t *testing.T, backend services.Backend) (*media.Library, *cache.MetaCache) {
	t.Helper()
	dir := t.TempDir()
	logger := shared.NewLogger(io.Discard)

	mc, err := cache.Open(filepath.Join(dir, "meta.json"), logger)
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}

	return media.NewLibrary(media.LibraryOpts{
		Backend: backend,
		Cache:   mc,
		Dir:     dir,
		Logger:  logger,
	}), mc
}

func TestSpans(t *testing.T) {
	cases := []struct {
		name     string
		duration int
		size     int
		want     [][2]int
	}{
		{"ShortTailMergesBackward", 450, 200, [][2]int{{0, 200}, {200, 450}}},
		{"ExactMultiple", 600, 200, [][2]int{{0, 200}, {200, 400}, {400, 600}}},
		{"SingleShortItem", 100, 200, [][2]int{{0, 100}}},
		{"ExactlyOneFragment", 200, 200, [][2]int{{0, 200}}},
		{"JustOverOneFragment", 201, 200, [][2]int{{0, 201}}},
		{"ZeroDuration", 0, 200, nil},
		{"TwoFullPlusTail", 500, 200, [][2]int{{0, 200}, {200, 500}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := media.Spans(tc.duration, tc.size)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Spans(%d, %d) = %v, want %v", tc.duration, tc.size, got, tc.want)
			}
		})
	}
}

func TestSpansCoverage(t *testing.T) {
	// Contiguous, non-overlapping, covering [0, D) exactly, and only the
	// merged final span may be longer than nominal; none shorter than
	// nominal except a lone fragment of a short item.
	for _, duration := range []int{1, 50, 199, 200, 399, 400, 401, 450, 600, 3600, 3799} {
		spans := media.Spans(duration, 200)
		prev := 0
		for i, span := range spans {
			if span[0] != prev {
				t.Errorf("D=%d: span %d starts at %d, want %d", duration, i, span[0], prev)
			}
			if span[1] <= span[0] {
				t.Errorf("D=%d: span %d is empty or inverted: %v", duration, i, span)
			}
			if i > 0 && span[1]-span[0] < 200 {
				t.Errorf("D=%d: non-initial span %d shorter than nominal: %v", duration, i, span)
			}
			prev = span[1]
		}
		if prev != duration {
			t.Errorf("D=%d: spans end at %d", duration, prev)
		}
	}
}

func TestSongResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("ResolvesOverNetwork", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		url := backend.AddTrack(tu.Track("abc", "A Song", 450))
		lib, _ := newLibrary(t, backend)

		song := lib.NewSong(url)
		if err := song.WaitReady(ctx); err != nil {
			t.Fatalf("song never became ready: %v", err)
		}

		m := song.Meta()
		if m == nil || m.ID != "abc" || m.Title != "A Song" || m.Duration != 450 {
			t.Fatalf("unexpected meta: %+v", m)
		}
		if got := len(song.Fragments()); got != 2 {
			t.Errorf("450s song should have 2 fragments, got %d", got)
		}
		if backend.ResolveCalls() != 1 {
			t.Errorf("expected 1 resolve call, got %d", backend.ResolveCalls())
		}
	})

	t.Run("CacheHitSkipsNetwork", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		url := backend.AddTrack(tu.Track("abc", "A Song", 450))
		lib, mc := newLibrary(t, backend)

		first := lib.NewSong(url)
		if err := first.WaitReady(ctx); err != nil {
			t.Fatal(err)
		}
		if mc.Len() != 1 {
			t.Fatalf("resolution should populate the cache, have %d entries", mc.Len())
		}

		second := lib.NewSong(url)
		if err := second.WaitReady(ctx); err != nil {
			t.Fatal(err)
		}
		if backend.ResolveCalls() != 1 {
			t.Errorf("cache hit should not resolve again, got %d calls", backend.ResolveCalls())
		}
	})

	t.Run("InjectedMetadataSkipsNetwork", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		lib, _ := newLibrary(t, backend)

		song := lib.NewSongFromInfo(tu.Track("inj", "Injected", 100))
		if err := song.WaitReady(ctx); err != nil {
			t.Fatal(err)
		}
		if backend.ResolveCalls() != 0 {
			t.Errorf("injection should avoid the network, got %d calls", backend.ResolveCalls())
		}
	})

	t.Run("IncompleteInjectionFallsBackToFetch", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		full := tu.Track("thin", "Full Title", 300)
		backend.AddTrack(full)
		lib, _ := newLibrary(t, backend)

		thin := &services.TrackInfo{ID: "thin", WebpageURL: full.WebpageURL} // no title, no duration
		song := lib.NewSongFromInfo(thin)
		if err := song.WaitReady(ctx); err != nil {
			t.Fatalf("fallback fetch failed: %v", err)
		}
		if song.Meta().Title != "Full Title" {
			t.Errorf("got title %q", song.Meta().Title)
		}
		if backend.ResolveCalls() != 1 {
			t.Errorf("expected 1 fallback resolve, got %d", backend.ResolveCalls())
		}
	})

	t.Run("ResolutionFailureIsFinal", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		lib, _ := newLibrary(t, backend)

		song := lib.NewSong("https://www.youtube.com/watch?v=missing")
		err := song.WaitReady(ctx)
		if !errors.Is(err, shared.ErrResolutionFailed) {
			t.Fatalf("expected resolution failure, got %v", err)
		}
		if song.Meta() != nil || song.Fragments() != nil {
			t.Error("failed song should expose no metadata or fragments")
		}
		// Every waiter sees the same failure.
		if err2 := song.WaitReady(ctx); !errors.Is(err2, shared.ErrResolutionFailed) {
			t.Errorf("second waiter got %v", err2)
		}
	})
}

func TestFragmentDownload(t *testing.T) {
	ctx := context.Background()

	ready := func(t *testing.T, backend *tu.FakeBackend, url string) *media.Song {
		t.Helper()
		lib, _ := newLibrary(t, backend)
		song := lib.NewSong(url)
		if err := song.WaitReady(ctx); err != nil {
			t.Fatal(err)
		}
		return song
	}

	t.Run("DownloadsOnDemand", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		url := backend.AddTrack(tu.Track("dl", "Downloadable", 450))
		song := ready(t, backend, url)

		frag := song.Fragments()[0]
		if frag.Downloaded() {
			t.Fatal("fragment should not be on disk yet")
		}
		if err := frag.WaitDownloaded(ctx); err != nil {
			t.Fatalf("download failed: %v", err)
		}
		if !frag.Downloaded() {
			t.Error("fragment file missing after download")
		}
		if backend.DownloadCalls() != 1 {
			t.Errorf("expected 1 download, got %d", backend.DownloadCalls())
		}
	})

	t.Run("ExistingFileNeverRedownloaded", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		url := backend.AddTrack(tu.Track("cached", "Cached", 450))
		song := ready(t, backend, url)

		frag := song.Fragments()[0]
		if err := os.MkdirAll(filepath.Dir(frag.Path()), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(frag.Path(), []byte("already here"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := frag.WaitDownloaded(ctx); err != nil {
			t.Fatalf("wait on cached fragment failed: %v", err)
		}
		if backend.DownloadCalls() != 0 {
			t.Errorf("cached fragment hit the backend %d times", backend.DownloadCalls())
		}
	})

	t.Run("StartDownloadIsIdempotent", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		backend.SetDelay(20 * time.Millisecond)
		url := backend.AddTrack(tu.Track("idem", "Idempotent", 100))
		song := ready(t, backend, url)

		frag := song.Fragments()[0]
		for range 5 {
			frag.StartDownload()
		}
		if err := frag.WaitDownloaded(ctx); err != nil {
			t.Fatal(err)
		}
		if backend.DownloadCalls() != 1 {
			t.Errorf("repeated starts caused %d downloads", backend.DownloadCalls())
		}
	})

	t.Run("FailedDownloadRetriesFromScratch", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		url := backend.AddTrack(tu.Track("flaky", "Flaky", 100))
		song := ready(t, backend, url)
		frag := song.Fragments()[0]

		backend.FailDownloads(errors.New("network down"))
		if err := frag.WaitDownloaded(ctx); !errors.Is(err, shared.ErrDownloadFailed) {
			t.Fatalf("expected download failure, got %v", err)
		}
		if frag.Downloaded() {
			t.Fatal("failed download must not leave a file")
		}

		backend.FailDownloads(nil)
		if err := frag.WaitDownloaded(ctx); err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if !frag.Downloaded() {
			t.Error("fragment missing after successful retry")
		}
		if backend.DownloadCalls() != 2 {
			t.Errorf("expected 2 download attempts, got %d", backend.DownloadCalls())
		}
	})

	t.Run("DeterministicPath", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		url := backend.AddTrack(tu.Track("pathy", "Pathy", 600))
		song := ready(t, backend, url)

		for i, frag := range song.Fragments() {
			if filepath.Base(frag.Path()) != strconv.Itoa(i) {
				t.Errorf("fragment %d file name = %s", i, frag.Path())
			}
			if filepath.Base(filepath.Dir(frag.Path())) != "pathy" {
				t.Errorf("fragment %d not under media-id dir: %s", i, frag.Path())
			}
		}
	})
}

func TestLoadCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("MaterializesMembersWithInjection", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		colURL := "https://www.youtube.com/playlist?list=PL99"
		backend.AddCollection(colURL, &services.TrackInfo{
			ID:    "PL99",
			Title: "Mix",
			Entries: []*services.TrackInfo{
				tu.Track("one", "First", 100),
				tu.Track("two", "Second", 450),
			},
		})
		lib, _ := newLibrary(t, backend)

		songs, err := lib.LoadCollection(ctx, colURL)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if len(songs) != 2 {
			t.Fatalf("expected 2 songs, got %d", len(songs))
		}
		for _, s := range songs {
			if err := s.WaitReady(ctx); err != nil {
				t.Fatalf("member not ready: %v", err)
			}
		}
		if backend.ResolveCalls() != 0 {
			t.Errorf("injection should avoid per-member resolution, got %d calls", backend.ResolveCalls())
		}
	})

	t.Run("NotACollection", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		lib, _ := newLibrary(t, backend)

		_, err := lib.LoadCollection(ctx, "https://www.youtube.com/watch?v=solo")
		if !errors.Is(err, shared.ErrNotACollection) {
			t.Errorf("expected ErrNotACollection, got %v", err)
		}
	})

	t.Run("CapsEntries", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		colURL := "https://www.youtube.com/playlist?list=PLBIG"
		big := &services.TrackInfo{ID: "PLBIG", Title: "Big"}
		for i := range 80 {
			big.Entries = append(big.Entries, tu.Track(
				"t"+string(rune('a'+i%26))+string(rune('a'+i/26)), "Track", 60))
		}
		backend.AddCollection(colURL, big)
		lib, _ := newLibrary(t, backend)

		songs, err := lib.LoadCollection(ctx, colURL)
		if err != nil {
			t.Fatal(err)
		}
		if len(songs) != media.DefaultCollectionLimit {
			t.Errorf("expected %d songs, got %d", media.DefaultCollectionLimit, len(songs))
		}
	})

	t.Run("CollectionDocumentIsCached", func(t *testing.T) {
		backend := tu.NewFakeBackend()
		colURL := "https://www.youtube.com/playlist?list=PLC"
		backend.AddCollection(colURL, &services.TrackInfo{
			ID:      "PLC",
			Title:   "Cached Mix",
			Entries: []*services.TrackInfo{tu.Track("m1", "Member", 90)},
		})
		lib, _ := newLibrary(t, backend)

		if _, err := lib.LoadCollection(ctx, colURL); err != nil {
			t.Fatal(err)
		}
		if _, err := lib.LoadCollection(ctx, colURL); err != nil {
			t.Fatal(err)
		}
		if backend.CollectionCalls() != 1 {
			t.Errorf("second load should hit the cache, got %d backend calls", backend.CollectionCalls())
		}
	})
}
