// Package media models playable items: resolved metadata, bounded-length
// fragments, songs and the library factory that materializes them.
//
// A [Song] is created in an unresolved state; a background task resolves its
// [Meta] (from injected collection metadata, the persistent cache, or the
// network) and then computes the song's fragment sequence exactly once.
// A [Fragment] is the unit of download and playback: a contiguous time slice
// of one item, materialized on disk at a deterministic path. Fragment files
// are a cache; this package never deletes them.
package media
