package qr_test

import (
	"context"
	"sync"
	"time"

	"github.com/clubsync/presence/internal/ledger"
	"github.com/clubsync/presence/internal/qr"
)

const testKey = "test-checksum-key"

// fakeClock is a settable clock for pinning and advancing time in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock {
	return &fakeClock{now: at}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockBus struct {
	mu        sync.Mutex
	published []string
}

func (m *mockBus) Publish(_ context.Context, subject string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, subject)
	return nil
}

func (m *mockBus) Close() error { return nil }

func (m *mockBus) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.published...)
}

// testCore wires a full QR core over an in-memory ledger.
type testCore struct {
	clock     *fakeClock
	checksum  *qr.Checksum
	codec     *qr.Codec
	ledger    *ledger.Ledger
	bus       *mockBus
	generator *qr.Generator
	validator *qr.Validator
}

func newTestCore(passphrase string) *testCore {
	clock := newFakeClock(time.Date(2026, time.March, 14, 18, 30, 0, 0, time.UTC))
	checksum := qr.NewChecksum([]byte(testKey))
	codec := qr.NewCodec(passphrase)
	led := ledger.New(ledger.NewMemoryStore(), ledger.Config{}, clock.Now)
	bus := &mockBus{}

	return &testCore{
		clock:     clock,
		checksum:  checksum,
		codec:     codec,
		ledger:    led,
		bus:       bus,
		generator: qr.NewGenerator(checksum, codec, led, bus, clock.Now),
		validator: qr.NewValidator(checksum, codec, led, bus, clock.Now, 5*time.Minute),
	}
}

func presenceContext() qr.IssueContext {
	return qr.IssueContext{
		SubjectID: "reunion-1",
		GroupID:   "club-1",
		IssuerID:  "42",
		Metadata: map[string]any{
			"title":    "Weekly meeting",
			"location": "Community hall",
		},
	}
}
