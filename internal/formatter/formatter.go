// package formatter renders queue state and media metadata as plain text
package formatter

import (
	"fmt"
	"strings"

	"github.com/quaverd/quaver/internal/queue"
)

// DefaultPageSize is the number of resolved entries shown per queue page.
const DefaultPageSize = 10

// FormatDuration renders seconds as mm:ss, or h:mm:ss from one hour up.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// QueueView renders one page of the queue. Resolved entries are listed with
// their 1-based queue position (the position remove accepts), title, channel
// and duration; the current entry is marked. Entries still resolving are
// summed into a trailer instead of listed. Pages are 1-based; a page past
// the end renders the last page.
func QueueView(views []queue.SongView, page, pageSize int) string {
	if len(views) == 0 {
		return "The queue is empty."
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	pending := 0
	resolved := make([]queue.SongView, 0, len(views))
	for _, v := range views {
		if v.Ready {
			resolved = append(resolved, v)
		} else {
			pending++
		}
	}

	var b strings.Builder
	if len(resolved) > 0 {
		pages := (len(resolved) + pageSize - 1) / pageSize
		if page < 1 {
			page = 1
		}
		if page > pages {
			page = pages
		}
		lo := (page - 1) * pageSize
		hi := min(lo+pageSize, len(resolved))

		for i := lo; i < hi; i++ {
			v := resolved[i]
			marker := "  "
			if v.Current {
				marker = "> "
			}
			fmt.Fprintf(&b, "%s%d. %s — %s (%s)\n",
				marker, v.Index+1, v.Title, v.Channel, FormatDuration(v.Duration))
		}
		if pages > 1 {
			fmt.Fprintf(&b, "Page %d of %d.\n", page, pages)
		}
	}

	switch pending {
	case 0:
	case 1:
		b.WriteString("1 more song, which is still being fetched.\n")
	default:
		fmt.Fprintf(&b, "%d more songs, which are still being fetched.\n", pending)
	}
	return strings.TrimRight(b.String(), "\n")
}
