package media

import (
	"context"

	"github.com/quaverd/quaver/internal/tasks"
)

// Song is one media item: resolved metadata plus its derived fragment
// sequence. Both are populated by the readiness task before it completes, so
// any reader that has observed WaitReady succeed may read them without
// further synchronization.
type Song struct {
	url string
	lib *Library

	ready *tasks.Handle[*Meta]

	// Written by the readiness task only.
	meta      *Meta
	fragments []*Fragment
}

// WaitReady suspends until the song's metadata is resolved and its fragments
// exist. The error of a failed resolution is observed by every waiter.
func (s *Song) WaitReady(ctx context.Context) error {
	_, err := s.ready.Wait(ctx)
	return err
}

// Ready reports whether the readiness task has completed, without blocking.
// A song whose resolution failed is also "ready" (its failure is final).
func (s *Song) Ready() bool {
	return s.ready.Done()
}

// Resolved reports whether the song finished resolving successfully.
func (s *Song) Resolved() bool {
	if !s.ready.Done() {
		return false
	}
	_, err := s.ready.Result()
	return err == nil
}

// Meta returns the resolved metadata, or nil before readiness.
func (s *Song) Meta() *Meta {
	if !s.Resolved() {
		return nil
	}
	return s.meta
}

// Fragments returns the song's fragment sequence, empty before readiness.
func (s *Song) Fragments() []*Fragment {
	if !s.Resolved() {
		return nil
	}
	return s.fragments
}

// URL returns the canonical URL once resolved, else the URL the song was
// enqueued with. Used for identity-based removal and views.
func (s *Song) URL() string {
	if m := s.Meta(); m != nil {
		return m.URL
	}
	return s.url
}

// finish records resolved metadata and computes the fragment sequence.
// Called exactly once, from the readiness task.
func (s *Song) finish(m *Meta) {
	s.meta = m
	for _, span := range Spans(m.Duration, s.lib.fragmentSize) {
		s.fragments = append(s.fragments, &Fragment{
			meta:    m,
			index:   len(s.fragments),
			start:   span[0],
			end:     span[1],
			dir:     s.lib.dir,
			backend: s.lib.backend,
			logger:  s.lib.logger,
		})
	}
	s.lib.logger.Debug("song ready", "url", m.URL, "duration", m.Duration, "fragments", len(s.fragments))
}
