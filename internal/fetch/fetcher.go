// Package fetch downloads source clips through the cookie pool, rotating to a
// different cookie whenever the provider blocks the current one.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/videoforge/videoforge/internal/cookiepool"
)

var (
	// ErrFetchFailed means rotation was exhausted: every attempted cookie was
	// rejected by the provider.
	ErrFetchFailed = errors.New("fetch failed: cookie rotation exhausted")
	// ErrBlocked marks a credential-attributable failure; the provider denied
	// the request because of the cookie, not the target.
	ErrBlocked = errors.New("provider blocked cookie")
	// ErrTargetNotFound marks a non-credential failure; retrying with another
	// cookie cannot help.
	ErrTargetNotFound = errors.New("target not found")
	// ErrBadTarget marks a malformed or unsupported target URL.
	ErrBadTarget = errors.New("malformed target")
	// ErrAttemptTimeout marks an attempt that hit its deadline while timeouts
	// are classified as target-attributable.
	ErrAttemptTimeout = errors.New("attempt timed out")
)

// Downloader performs one download attempt with one cookie file. The returned
// error decides whether the cookie is penalized: ErrBlocked rotates,
// ErrTargetNotFound/ErrBadTarget abort without penalty.
type Downloader interface {
	Download(ctx context.Context, target, cookiePath, outDir string) (string, error)
}

// Fetcher wraps a Downloader with cookie selection and rotation.
type Fetcher struct {
	pool       *cookiepool.Pool
	downloader Downloader

	// attemptTimeout bounds each individual attempt.
	attemptTimeout time.Duration
	// timeoutCountsAsBlock controls how an attempt deadline is classified.
	// When false (the default) a timeout is treated as target-attributable
	// and aborts without penalizing the cookie: blocking normally shows up
	// as an explicit provider error, not a hang.
	timeoutCountsAsBlock bool
}

func New(pool *cookiepool.Pool, d Downloader, attemptTimeout time.Duration, timeoutCountsAsBlock bool) *Fetcher {
	if attemptTimeout <= 0 {
		attemptTimeout = 90 * time.Second
	}
	return &Fetcher{
		pool:                 pool,
		downloader:           d,
		attemptTimeout:       attemptTimeout,
		timeoutCountsAsBlock: timeoutCountsAsBlock,
	}
}

// Fetch downloads target into outDir, trying up to maxAttempts distinct cookie
// selections. Pool exhaustion and non-credential failures abort immediately;
// only provider blocks consume attempts.
func (f *Fetcher) Fetch(ctx context.Context, target, outDir string, maxAttempts int) (string, error) {
	if maxAttempts <= 0 || maxAttempts > f.pool.Size() {
		maxAttempts = f.pool.Size()
	}
	if maxAttempts == 0 {
		return "", cookiepool.ErrPoolExhausted
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		id, cookiePath, err := f.pool.Select()
		if err != nil {
			return "", err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
		path, err := f.downloader.Download(attemptCtx, target, cookiePath, outDir)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded
		cancel()

		if err == nil {
			f.pool.RecordSuccess(id)
			return path, nil
		}

		if timedOut && !errors.Is(err, ErrBlocked) {
			if f.timeoutCountsAsBlock {
				err = fmt.Errorf("%w: attempt timed out after %s", ErrBlocked, f.attemptTimeout)
			} else {
				return "", fmt.Errorf("download %q: %w after %s", target, ErrAttemptTimeout, f.attemptTimeout)
			}
		}

		if errors.Is(err, ErrBlocked) {
			f.pool.RecordFailure(id)
			slog.Warn("cookie blocked, rotating",
				"target", target, "cookie", id, "attempt", attempt, "max_attempts", maxAttempts)
			continue
		}

		// Non-credential failure: the cookie is fine, abort.
		return "", fmt.Errorf("download %q: %w", target, err)
	}

	return "", fmt.Errorf("%w: %d cookies tried for %q", ErrFetchFailed, maxAttempts, target)
}
