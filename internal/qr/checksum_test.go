package qr_test

import (
	"testing"
	"time"

	"github.com/clubsync/presence/internal/domain"
	"github.com/clubsync/presence/internal/qr"
)

func samplePayload() *domain.QRPayload {
	issued := time.Date(2026, time.March, 14, 18, 30, 0, 0, time.UTC)
	return &domain.QRPayload{
		FormatVersion: domain.FormatVersion,
		Kind:          domain.KindPresence,
		SubjectID:     "reunion-1",
		GroupID:       "club-1",
		IssuedAt:      issued,
		ExpiresAt:     issued.Add(2 * time.Hour),
		Metadata: map[string]any{
			"title":    "Weekly meeting",
			"location": "Community hall",
		},
	}
}

func TestChecksumDeterministic(t *testing.T) {
	cs := qr.NewChecksum([]byte(testKey))

	first := samplePayload()
	tag1 := cs.Tag(first)

	// Same logical payload with metadata inserted in the opposite order.
	second := samplePayload()
	second.Metadata = map[string]any{}
	second.Metadata["location"] = "Community hall"
	second.Metadata["title"] = "Weekly meeting"
	tag2 := cs.Tag(second)

	if tag1 != tag2 {
		t.Fatalf("expected identical tags, got %q and %q", tag1, tag2)
	}
	if len(tag1) != 64 {
		t.Fatalf("expected 64 hex chars for a SHA-256 tag, got %d", len(tag1))
	}
}

func TestChecksumChangesOnAnyField(t *testing.T) {
	cs := qr.NewChecksum([]byte(testKey))
	base := cs.Tag(samplePayload())

	mutations := map[string]func(*domain.QRPayload){
		"formatVersion": func(p *domain.QRPayload) { p.FormatVersion = "9.9.9" },
		"kind":          func(p *domain.QRPayload) { p.Kind = domain.KindEvent },
		"subjectId":     func(p *domain.QRPayload) { p.SubjectID = "reunion-2" },
		"groupId":       func(p *domain.QRPayload) { p.GroupID = "club-2" },
		"issuedAt":      func(p *domain.QRPayload) { p.IssuedAt = p.IssuedAt.Add(time.Second) },
		"expiresAt":     func(p *domain.QRPayload) { p.ExpiresAt = p.ExpiresAt.Add(time.Second) },
		"metadata":      func(p *domain.QRPayload) { p.Metadata["location"] = "Elsewhere" },
	}

	for field, mutate := range mutations {
		p := samplePayload()
		mutate(p)
		if cs.Tag(p) == base {
			t.Errorf("mutating %s did not change the tag", field)
		}
	}
}

func TestChecksumDiffersByKey(t *testing.T) {
	p := samplePayload()
	a := qr.NewChecksum([]byte("key-a")).Tag(p)
	b := qr.NewChecksum([]byte("key-b")).Tag(p)
	if a == b {
		t.Fatal("different keys produced the same tag")
	}
}

func TestChecksumVerify(t *testing.T) {
	cs := qr.NewChecksum([]byte(testKey))

	p := samplePayload()
	p.IntegrityTag = cs.Tag(p)
	if !cs.Verify(p) {
		t.Fatal("expected a freshly tagged payload to verify")
	}

	p.SubjectID = "reunion-2"
	if cs.Verify(p) {
		t.Fatal("expected verification to fail after a field edit")
	}
}
