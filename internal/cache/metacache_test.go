package cache

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/quaverd/quaver/internal/services"
	"github.com/quaverd/quaver/internal/shared"
)

func TestIdentity(t *testing.T) {
	cases := []struct {
		name string
		url  string
		id   string
		ok   bool
	}{
		{"ItemID", "https://www.youtube.com/watch?v=abc123", "abc123", true},
		{"ListID", "https://www.youtube.com/playlist?list=PL42", "PL42", true},
		{"ListWinsOverItem", "https://www.youtube.com/watch?v=abc123&list=PL42", "PL42", true},
		{"NeitherParam", "https://example.com/song.mp3", "", false},
		{"Unparseable", "://nope", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := Identity(tc.url)
			if ok != tc.ok || id != tc.id {
				t.Errorf("Identity(%q) = (%q, %v), want (%q, %v)", tc.url, id, ok, tc.id, tc.ok)
			}
		})
	}
}

func TestIsCollectionURL(t *testing.T) {
	if !IsCollectionURL("https://www.youtube.com/watch?v=a&list=PL1") {
		t.Error("URL with list param should be a collection")
	}
	if IsCollectionURL("https://www.youtube.com/watch?v=a") {
		t.Error("URL without list param should not be a collection")
	}
}

func TestMetaCache(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "meta.json")
		c, err := Open(path, logger)
		if err != nil {
			t.Fatalf("open failed: %v", err)
		}

		info := &services.TrackInfo{ID: "abc", Title: "A Song", Duration: 451}
		c.Put("https://www.youtube.com/watch?v=abc", info)

		got, ok := c.Get("https://www.youtube.com/watch?v=abc")
		if !ok {
			t.Fatal("expected cache hit")
		}
		if got.Title != "A Song" || got.Duration != 451 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("NotCacheableURLIgnored", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "meta.json")
		c, err := Open(path, logger)
		if err != nil {
			t.Fatalf("open failed: %v", err)
		}

		c.Put("https://example.com/raw.opus", &services.TrackInfo{ID: "x"})
		if c.Len() != 0 {
			t.Errorf("expected empty cache, got %d entries", c.Len())
		}
		if _, ok := c.Get("https://example.com/raw.opus"); ok {
			t.Error("expected cache miss for identity-less URL")
		}
	})

	t.Run("PersistsAcrossReopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "meta.json")
		c, err := Open(path, logger)
		if err != nil {
			t.Fatalf("open failed: %v", err)
		}
		c.Put("https://www.youtube.com/watch?v=keep", &services.TrackInfo{ID: "keep", Title: "Kept"})

		reopened, err := Open(path, logger)
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		got, ok := reopened.Get("https://www.youtube.com/watch?v=keep")
		if !ok || got.Title != "Kept" {
			t.Errorf("entry did not survive reopen: %+v ok=%v", got, ok)
		}
	})

	t.Run("CorruptDocumentStartsEmpty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "meta.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}

		c, err := Open(path, logger)
		if err != nil {
			t.Fatalf("open failed: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("expected empty cache, got %d entries", c.Len())
		}
	})

	t.Run("CreatesDocumentOnOpen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "meta.json")
		if _, err := Open(path, logger); err != nil {
			t.Fatalf("open failed: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("cache document should exist after open: %v", err)
		}
	})
}
