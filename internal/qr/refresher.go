package qr

import (
	"context"
	"sync"
	"time"

	"github.com/clubsync/presence/pkg/logger"
)

// Refresher keeps one displayed code live by re-issuing it shortly before
// expiry. It belongs to the screen/session controller, not to the Generator:
// the Generator stays stateless while the Refresher owns the timer and the
// "current" payload. Safe to stop via its context or the Stop method.
type Refresher struct {
	gen  *Generator
	ic   IssueContext
	opts IssueOptions
	// lead is how close to expiry a re-issue fires.
	lead   time.Duration
	onCode func(*IssuedCode)
	clock  Clock

	mu         sync.Mutex
	current    *IssuedCode
	refreshing bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRefresher(gen *Generator, ic IssueContext, opts IssueOptions, lead time.Duration, onCode func(*IssuedCode)) *Refresher {
	if lead <= 0 {
		lead = 5 * time.Minute
	}
	return &Refresher{
		gen:    gen,
		ic:     ic,
		opts:   opts,
		lead:   lead,
		onCode: onCode,
		clock:  gen.clock,
		done:   make(chan struct{}),
	}
}

// Start issues the first code immediately, then begins the background loop.
func (r *Refresher) Start(ctx context.Context) error {
	code, err := r.gen.Issue(ctx, r.ic, r.opts)
	if err != nil {
		close(r.done)
		return err
	}
	r.setCurrent(code)

	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)
	return nil
}

// Stop cancels pending timers and waits for the loop to exit.
func (r *Refresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

// Current returns the live code.
func (r *Refresher) Current() *IssuedCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Refresher) loop(ctx context.Context) {
	defer close(r.done)

	for {
		wait := r.untilRefresh()
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := r.refresh(ctx); err != nil {
				logger.ErrorContext(ctx, "Code refresh failed", "error", err, "subject_id", r.ic.SubjectID)
				// Back off briefly so a persistent failure cannot spin.
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
		}
	}
}

func (r *Refresher) untilRefresh() time.Duration {
	cur := r.Current()
	if cur == nil {
		return 0
	}
	wait := cur.Payload.ExpiresAt.Sub(r.clock()) - r.lead
	if wait < 0 {
		wait = 0
	}
	return wait
}

// refresh re-issues once. The refreshing flag guarantees at most one
// re-issuance in flight for this code.
func (r *Refresher) refresh(ctx context.Context) error {
	r.mu.Lock()
	if r.refreshing {
		r.mu.Unlock()
		return nil
	}
	r.refreshing = true
	r.mu.Unlock()

	code, err := r.gen.Issue(ctx, r.ic, r.opts)

	r.mu.Lock()
	r.refreshing = false
	if err == nil {
		r.current = code
	}
	r.mu.Unlock()

	if err != nil {
		return err
	}
	if r.onCode != nil {
		r.onCode(code)
	}
	return nil
}

func (r *Refresher) setCurrent(code *IssuedCode) {
	r.mu.Lock()
	r.current = code
	r.mu.Unlock()
	if r.onCode != nil {
		r.onCode(code)
	}
}
