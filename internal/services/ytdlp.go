// yt-dlp exec [Backend] implementation.
//
// Invocations are rate limited so that queueing a large collection cannot
// stampede the network. Range downloads write to a temp path and rename onto
// the final path only on success, so a crashed or killed download never
// leaves a file that passes the on-disk existence probe.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/quaverd/quaver/internal/shared"
)

const defaultBinary = "yt-dlp"

// YTDLPBackend implements [Backend] by shelling out to yt-dlp.
type YTDLPBackend struct {
	binary  string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewYTDLPBackend creates a backend invoking the given yt-dlp binary.
// ratePerSec bounds backend invocations per second; zero disables limiting.
func NewYTDLPBackend(binary string, ratePerSec float64, timeout time.Duration, logger *log.Logger) *YTDLPBackend {
	if binary == "" {
		binary = defaultBinary
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &YTDLPBackend{
		binary:  binary,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

func (b *YTDLPBackend) run(ctx context.Context, args ...string) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return nil, fmt.Errorf("%s: %s: %w", b.binary, msg, err)
		}
		return nil, fmt.Errorf("%s: %w", b.binary, err)
	}

	return stdout.Bytes(), nil
}

// ResolveTrack resolves a single item's metadata without downloading.
func (b *YTDLPBackend) ResolveTrack(ctx context.Context, url string) (*TrackInfo, error) {
	b.logger.Info("resolving metadata", "url", url)

	out, err := b.run(ctx,
		"--dump-single-json",
		"--format", "bestaudio/best",
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		url,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrResolutionFailed, err)
	}

	var info TrackInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("%w: malformed backend output: %v", shared.ErrResolutionFailed, err)
	}

	b.logger.Info("resolved metadata", "url", url, "id", info.ID, "duration", info.Duration)
	return &info, nil
}

// ResolveCollection resolves a collection URL to its member list.
func (b *YTDLPBackend) ResolveCollection(ctx context.Context, url string, limit int) (*TrackInfo, error) {
	b.logger.Info("resolving collection", "url", url, "limit", limit)

	out, err := b.run(ctx,
		"--dump-single-json",
		"--playlist-end", strconv.Itoa(limit),
		"--no-warnings",
		"--quiet",
		url,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrResolutionFailed, err)
	}

	var info TrackInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("%w: malformed backend output: %v", shared.ErrResolutionFailed, err)
	}

	b.logger.Info("resolved collection", "url", url, "entries", len(info.Entries))
	return &info, nil
}

// DownloadRange downloads the [start, end) second range of url into dest.
func (b *YTDLPBackend) DownloadRange(ctx context.Context, url string, start, end int, dest string) error {
	b.logger.Debug("downloading range", "url", url, "start", start, "end", end)

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}

	tmp := fmt.Sprintf("%s.%s.part", dest, shared.GenerateID())
	_, err := b.run(ctx,
		"--format", "bestaudio/best",
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"--download-sections", fmt.Sprintf("*%d-%d", start, end),
		"--force-keyframes-at-cuts",
		"--output", tmp,
		url,
	)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}

	if _, err := os.Stat(tmp); err != nil {
		return fmt.Errorf("%w: backend produced no output file", shared.ErrDownloadFailed)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}

	b.logger.Debug("downloaded range", "url", url, "start", start, "end", end, "dest", dest)
	return nil
}
