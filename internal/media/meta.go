package media

import (
	"fmt"
	"path/filepath"

	"github.com/quaverd/quaver/internal/services"
	"github.com/quaverd/quaver/internal/shared"
)

// Meta is the resolved descriptive metadata of one media item. Immutable
// once resolved; fragments hold a non-owning reference to it.
type Meta struct {
	ID         string
	URL        string
	Title      string
	Channel    string
	ChannelURL string
	Duration   int // seconds
}

// metaFromInfo validates raw backend metadata into a Meta. Incomplete
// metadata (typically a thin collection entry) is an error so callers can
// fall back to a full network resolution.
func metaFromInfo(info *services.TrackInfo) (*Meta, error) {
	if info == nil {
		return nil, fmt.Errorf("%w: no metadata", shared.ErrResolutionFailed)
	}
	if info.ID == "" || info.WebpageURL == "" || info.Title == "" || info.Duration <= 0 {
		return nil, fmt.Errorf("%w: incomplete metadata for %q", shared.ErrResolutionFailed, info.PageURL())
	}
	return &Meta{
		ID:         info.ID,
		URL:        info.WebpageURL,
		Title:      info.Title,
		Channel:    info.Channel,
		ChannelURL: info.ChannelPage(),
		Duration:   info.Duration,
	}, nil
}

// FragmentDir returns the directory holding this item's fragment files.
func (m *Meta) FragmentDir(base string) string {
	return filepath.Join(base, m.ID)
}
