// package services defines the Backend interface for the remote media-fetch
// backend and its yt-dlp implementation.
package services

import "context"

// TrackInfo is the raw resolved metadata for one media item, shaped after the
// backend's JSON output. For collection URLs, Entries carries the member
// items and the scalar fields describe the collection itself.
type TrackInfo struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	WebpageURL  string       `json:"webpage_url"`
	OriginalURL string       `json:"original_url,omitempty"`
	Channel     string       `json:"channel,omitempty"`
	ChannelURL  string       `json:"channel_url,omitempty"`
	UploaderURL string       `json:"uploader_url,omitempty"`
	Duration    int          `json:"duration"`
	Entries     []*TrackInfo `json:"entries,omitempty"`
}

// PageURL returns the item's original URL, falling back to its canonical
// webpage URL.
func (t *TrackInfo) PageURL() string {
	if t.OriginalURL != "" {
		return t.OriginalURL
	}
	return t.WebpageURL
}

// ChannelPage returns the best-known URL for the item's channel, falling back
// to the item page itself.
func (t *TrackInfo) ChannelPage() string {
	if t.UploaderURL != "" {
		return t.UploaderURL
	}
	if t.ChannelURL != "" {
		return t.ChannelURL
	}
	return t.WebpageURL
}

// Backend defines the operations the playback pipeline consumes from the
// media-fetch backend. Implementations perform slow, fallible network I/O;
// callers run them through background task handles.
type Backend interface {
	// ResolveTrack resolves a single item's metadata. Best audio format,
	// no playlist expansion, no search.
	ResolveTrack(ctx context.Context, url string) (*TrackInfo, error)

	// ResolveCollection resolves a collection URL to its member list,
	// capped at limit entries.
	ResolveCollection(ctx context.Context, url string, limit int) (*TrackInfo, error)

	// DownloadRange downloads the [start, end) second range of the item at
	// url into dest. The write is atomic: dest exists only after a
	// complete, successful download.
	DownloadRange(ctx context.Context, url string, start, end int, dest string) error
}
