// Package cookiepool manages the rotating pool of cookie credential files
// used for clip downloads. Providers periodically block individual cookies;
// the pool quarantines them and lazily promotes them back once the cooldown
// has passed.
package cookiepool

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrPoolExhausted = errors.New("cookie pool exhausted: no cookie available")

const (
	StateAvailable   = "available"
	StateQuarantined = "quarantined"
)

// Options tune the quarantine behavior. Zero values fall back to defaults.
type Options struct {
	// Cooldown is how long a quarantined cookie stays excluded from selection.
	Cooldown time.Duration
	// MaxConsecutiveFailures quarantines a cookie after this many failures in
	// a row.
	MaxConsecutiveFailures int
	// MinSuccessRate quarantines a cookie whose rolling success rate drops
	// below this floor, once it has at least MinSamples recorded attempts.
	MinSuccessRate float64
	MinSamples     int
}

const (
	defaultCooldown       = 30 * time.Minute
	defaultMaxConsecutive = 3
	defaultMinSuccessRate = 0.30
	defaultMinSamples     = 5
)

type resource struct {
	id               string
	path             string
	state            string
	successCount     int
	failCount        int
	consecutiveFails int
	quarantinedUntil time.Time
	lastUsedAt       time.Time
}

func (r *resource) healthScore() float64 {
	total := r.successCount + r.failCount
	if total == 0 {
		total = 1
	}
	return float64(r.successCount) / float64(total)
}

// Pool tracks cookie health and picks the best available cookie for each
// download attempt. The lock guards bookkeeping only; download I/O happens
// outside it.
type Pool struct {
	mu        sync.Mutex
	resources map[string]*resource
	opts      Options
	now       func() time.Time
}

// New builds a pool from explicit resource ids (paths). Intended for tests
// and non-filesystem sources.
func New(ids []string, opts Options) *Pool {
	applyDefaults(&opts)
	p := &Pool{
		resources: make(map[string]*resource, len(ids)),
		opts:      opts,
		now:       time.Now,
	}
	for _, id := range ids {
		p.resources[id] = &resource{id: id, path: id, state: StateAvailable}
	}
	return p
}

// Load scans dir for cookie files (*.txt) and builds the pool from them.
func Load(dir string, opts Options) (*Pool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning cookie dir: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		ids = append(ids, e.Name())
	}

	p := New(ids, opts)
	for _, r := range p.resources {
		r.path = filepath.Join(dir, r.id)
	}
	slog.Info("cookie pool loaded", "dir", dir, "cookies", len(ids))
	return p, nil
}

func applyDefaults(opts *Options) {
	if opts.Cooldown <= 0 {
		opts.Cooldown = defaultCooldown
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = defaultMaxConsecutive
	}
	if opts.MinSuccessRate <= 0 {
		opts.MinSuccessRate = defaultMinSuccessRate
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = defaultMinSamples
	}
}

// Size returns the total number of cookies in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resources)
}

// Select returns the id and file path of the best available cookie: highest
// health score first, least recently used on ties. Cookies whose quarantine
// has expired are promoted back before the pick, with no external action
// required. Returns ErrPoolExhausted when nothing is available.
func (p *Pool) Select() (id, path string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	candidates := make([]*resource, 0, len(p.resources))
	for _, r := range p.resources {
		if r.state == StateQuarantined {
			if now.Before(r.quarantinedUntil) {
				continue
			}
			r.state = StateAvailable
			r.consecutiveFails = 0
			slog.Info("cookie recovered from quarantine", "cookie", r.id)
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return "", "", ErrPoolExhausted
	}

	sort.Slice(candidates, func(i, j int) bool {
		hi, hj := candidates[i].healthScore(), candidates[j].healthScore()
		if hi != hj {
			return hi > hj
		}
		return candidates[i].lastUsedAt.Before(candidates[j].lastUsedAt)
	})

	best := candidates[0]
	best.lastUsedAt = now
	return best.id, best.path, nil
}

// RecordSuccess notes a successful attempt with the cookie.
func (p *Pool) RecordSuccess(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.resources[id]
	if !ok {
		return
	}
	r.successCount++
	r.consecutiveFails = 0
	r.lastUsedAt = p.now()
}

// RecordFailure notes a credential-attributable failure and quarantines the
// cookie if it crossed either configured threshold. Quarantine itself is
// never fatal, only logged.
func (p *Pool) RecordFailure(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.resources[id]
	if !ok {
		return
	}
	r.failCount++
	r.consecutiveFails++

	total := r.successCount + r.failCount
	tooManyInARow := r.consecutiveFails >= p.opts.MaxConsecutiveFailures
	rateTooLow := total >= p.opts.MinSamples && r.healthScore() < p.opts.MinSuccessRate
	if r.state == StateAvailable && (tooManyInARow || rateTooLow) {
		r.state = StateQuarantined
		r.quarantinedUntil = p.now().Add(p.opts.Cooldown)
		slog.Warn("cookie quarantined",
			"cookie", r.id,
			"consecutive_failures", r.consecutiveFails,
			"success_rate", r.healthScore(),
			"until", r.quarantinedUntil,
		)
	}
}

// ResourceStats is the per-cookie section of a Stats snapshot.
type ResourceStats struct {
	ID               string     `json:"id"`
	State            string     `json:"state"`
	SuccessCount     int        `json:"success_count"`
	FailCount        int        `json:"fail_count"`
	SuccessRate      float64    `json:"success_rate"`
	QuarantinedUntil *time.Time `json:"quarantined_until,omitempty"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
}

// Stats is a read-only snapshot of pool health.
type Stats struct {
	Total       int             `json:"total"`
	Available   int             `json:"available"`
	Quarantined int             `json:"quarantined"`
	SuccessRate float64         `json:"success_rate"`
	Cookies     []ResourceStats `json:"cookies"`
}

// Stats returns a snapshot for observability. Expired quarantines are counted
// as available even before the next Select promotes them.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	st := Stats{Total: len(p.resources)}
	var success, attempts int
	for _, r := range p.resources {
		rs := ResourceStats{
			ID:           r.id,
			State:        r.state,
			SuccessCount: r.successCount,
			FailCount:    r.failCount,
			SuccessRate:  r.healthScore(),
		}
		if r.state == StateQuarantined && now.Before(r.quarantinedUntil) {
			until := r.quarantinedUntil
			rs.QuarantinedUntil = &until
			st.Quarantined++
		} else {
			rs.State = StateAvailable
			st.Available++
		}
		if !r.lastUsedAt.IsZero() {
			t := r.lastUsedAt
			rs.LastUsedAt = &t
		}
		success += r.successCount
		attempts += r.successCount + r.failCount
		st.Cookies = append(st.Cookies, rs)
	}
	sort.Slice(st.Cookies, func(i, j int) bool { return st.Cookies[i].ID < st.Cookies[j].ID })
	if attempts > 0 {
		st.SuccessRate = float64(success) / float64(attempts)
	}
	return st
}
