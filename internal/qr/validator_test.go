package qr_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/clubsync/presence/internal/domain"
	"github.com/clubsync/presence/internal/ledger"
	"github.com/clubsync/presence/internal/qr"
	"github.com/clubsync/presence/pkg/events"
)

func mustIssue(t *testing.T, core *testCore, opts qr.IssueOptions) *qr.IssuedCode {
	t.Helper()
	code, err := core.generator.Issue(context.Background(), presenceContext(), opts)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return code
}

func mustValidate(t *testing.T, core *testCore, raw string) domain.ValidationOutcome {
	t.Helper()
	outcome, err := core.validator.Validate(context.Background(), raw)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return outcome
}

func scannedEntries(t *testing.T, core *testCore) []domain.HistoryEntry {
	t.Helper()
	entries, err := core.ledger.Query(context.Background(), ledger.ActionFilter(domain.ActionScanned), ledger.SortNewest)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return entries
}

func TestValidateAcceptsFreshCode(t *testing.T) {
	core := newTestCore("")
	code := mustIssue(t, core, qr.IssueOptions{Validity: 120 * time.Minute})

	outcome := mustValidate(t, core, code.Encoded)

	if !outcome.Accepted {
		t.Fatalf("expected acceptance, got %q", outcome.FailureReason)
	}
	if outcome.Payload == nil || outcome.Payload.SubjectID != "reunion-1" {
		t.Fatal("accepted outcome should carry the recovered payload")
	}
	if len(outcome.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", outcome.Warnings)
	}

	entries := scannedEntries(t, core)
	if len(entries) != 1 {
		t.Fatalf("expected 1 scanned entry, got %d", len(entries))
	}

	subjects := core.bus.subjects()
	if subjects[len(subjects)-1] != events.ScanAccepted {
		t.Errorf("expected a %s event, got %v", events.ScanAccepted, subjects)
	}
}

func TestValidateAcceptsPrivateCode(t *testing.T) {
	core := newTestCore("club-passphrase")
	code := mustIssue(t, core, qr.IssueOptions{Private: true})

	outcome := mustValidate(t, core, code.Encoded)
	if !outcome.Accepted {
		t.Fatalf("expected acceptance, got %q", outcome.FailureReason)
	}
}

func TestValidateExpired(t *testing.T) {
	core := newTestCore("")
	code := mustIssue(t, core, qr.IssueOptions{Validity: 120 * time.Minute})

	core.clock.Advance(121 * time.Minute)

	outcome := mustValidate(t, core, code.Encoded)
	if outcome.Accepted {
		t.Fatal("expected rejection")
	}
	if outcome.FailureReason != domain.FailureExpired {
		t.Fatalf("expected Expired, got %q", outcome.FailureReason)
	}
	if outcome.Payload != nil {
		t.Error("rejected outcome should not carry a payload")
	}
}

func TestValidateExpiryBoundary(t *testing.T) {
	core := newTestCore("")
	code := mustIssue(t, core, qr.IssueOptions{Validity: time.Hour})

	// One second before expiry: passes.
	core.clock.Advance(time.Hour - time.Second)
	if outcome := mustValidate(t, core, code.Encoded); !outcome.Accepted {
		t.Fatalf("expected acceptance just before expiry, got %q", outcome.FailureReason)
	}

	// One second past expiry: Expired. A fresh core avoids replay detection.
	core2 := newTestCore("")
	code2 := mustIssue(t, core2, qr.IssueOptions{Validity: time.Hour})
	core2.clock.Advance(time.Hour + time.Second)
	if outcome := mustValidate(t, core2, code2.Encoded); outcome.FailureReason != domain.FailureExpired {
		t.Fatalf("expected Expired just past expiry, got %q", outcome.FailureReason)
	}
}

func TestValidateTamperedSubject(t *testing.T) {
	core := newTestCore("")
	code := mustIssue(t, core, qr.IssueOptions{})

	tampered := strings.Replace(code.Encoded, "reunion-1", "reunion-2", 1)
	if tampered == code.Encoded {
		t.Fatal("test setup: substitution had no effect")
	}

	outcome := mustValidate(t, core, tampered)
	if outcome.Accepted {
		t.Fatal("tampered code must never be accepted")
	}
	if outcome.FailureReason != domain.FailureIntegrity {
		t.Fatalf("expected IntegrityFailure, got %q", outcome.FailureReason)
	}

	subjects := core.bus.subjects()
	sawAlert := false
	for _, s := range subjects {
		if s == events.IntegrityAlert {
			sawAlert = true
		}
	}
	if !sawAlert {
		t.Error("integrity failure should publish a security alert")
	}
}

func TestValidateTamperedMetadata(t *testing.T) {
	core := newTestCore("")
	code := mustIssue(t, core, qr.IssueOptions{})

	// Edit metadata.location without recomputing the tag, then re-encode.
	payload := *code.Payload
	payload.Metadata = map[string]any{}
	for k, v := range code.Payload.Metadata {
		payload.Metadata[k] = v
	}
	payload.Metadata["location"] = "Somewhere else"

	encoded, err := core.codec.Encode(&payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	outcome := mustValidate(t, core, encoded)
	if outcome.FailureReason != domain.FailureIntegrity {
		t.Fatalf("expected IntegrityFailure, got %q", outcome.FailureReason)
	}
}

func TestValidateUnsupportedKind(t *testing.T) {
	core := newTestCore("")

	code, err := core.generator.Issue(context.Background(), qr.IssueContext{
		SubjectID: "gala-1",
		GroupID:   "club-1",
		Kind:      domain.KindEvent,
	}, qr.IssueOptions{})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	outcome := mustValidate(t, core, code.Encoded)
	if outcome.FailureReason != domain.FailureUnsupportedKind {
		t.Fatalf("expected UnsupportedKind, got %q", outcome.FailureReason)
	}
}

func TestValidateVersionSkewWarns(t *testing.T) {
	core := newTestCore("")

	p := samplePayload()
	p.FormatVersion = "1.1.0"
	p.IssuedAt = core.clock.Now()
	p.ExpiresAt = core.clock.Now().Add(time.Hour)
	p.IntegrityTag = core.checksum.Tag(p)

	encoded, err := core.codec.Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	outcome := mustValidate(t, core, encoded)
	if !outcome.Accepted {
		t.Fatalf("version skew must not reject, got %q", outcome.FailureReason)
	}
	if len(outcome.Warnings) != 1 || outcome.Warnings[0] != domain.WarnUnknownFormatVersion {
		t.Fatalf("expected unknown-format-version warning, got %v", outcome.Warnings)
	}
}

func TestValidateStaleIssuedAtWarns(t *testing.T) {
	core := newTestCore("")
	code := mustIssue(t, core, qr.IssueOptions{Validity: 48 * time.Hour})

	core.clock.Advance(25 * time.Hour)

	outcome := mustValidate(t, core, code.Encoded)
	if !outcome.Accepted {
		t.Fatalf("stale but unexpired code must pass, got %q", outcome.FailureReason)
	}
	if len(outcome.Warnings) != 1 || outcome.Warnings[0] != domain.WarnStaleIssuedAt {
		t.Fatalf("expected stale-issued-at warning, got %v", outcome.Warnings)
	}
}

func TestValidateReplayDetected(t *testing.T) {
	core := newTestCore("")
	code := mustIssue(t, core, qr.IssueOptions{})

	if outcome := mustValidate(t, core, code.Encoded); !outcome.Accepted {
		t.Fatalf("first scan should pass, got %q", outcome.FailureReason)
	}

	core.clock.Advance(time.Minute)

	outcome := mustValidate(t, core, code.Encoded)
	if outcome.Accepted {
		t.Fatal("second scan inside the window must be rejected")
	}
	if outcome.FailureReason != domain.FailureReplayDetected {
		t.Fatalf("expected ReplayDetected, got %q", outcome.FailureReason)
	}
}

func TestValidateReplayWindowExpires(t *testing.T) {
	core := newTestCore("")
	code := mustIssue(t, core, qr.IssueOptions{Validity: time.Hour})

	if outcome := mustValidate(t, core, code.Encoded); !outcome.Accepted {
		t.Fatalf("first scan should pass, got %q", outcome.FailureReason)
	}

	// Past the 5 minute window, the same still-valid code is accepted again.
	core.clock.Advance(6 * time.Minute)

	if outcome := mustValidate(t, core, code.Encoded); !outcome.Accepted {
		t.Fatalf("scan outside the window should pass, got %q", outcome.FailureReason)
	}
}

func TestValidateIdempotentRejection(t *testing.T) {
	core := newTestCore("")

	first := mustValidate(t, core, "not json at all")
	second := mustValidate(t, core, "not json at all")

	if first.FailureReason != domain.FailureMalformedPayload || second.FailureReason != domain.FailureMalformedPayload {
		t.Fatalf("expected MalformedPayload both times, got %q then %q", first.FailureReason, second.FailureReason)
	}

	entries := scannedEntries(t, core)
	if len(entries) != 2 {
		t.Fatalf("expected 2 scanned entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Payload != nil {
			t.Error("undecodable scans should record a nil payload snapshot")
		}
	}
}

func TestValidateRejectionStillAudited(t *testing.T) {
	core := newTestCore("")
	code := mustIssue(t, core, qr.IssueOptions{})

	core.clock.Advance(3 * time.Hour)
	outcome := mustValidate(t, core, code.Encoded)
	if outcome.FailureReason != domain.FailureExpired {
		t.Fatalf("expected Expired, got %q", outcome.FailureReason)
	}

	entries := scannedEntries(t, core)
	if len(entries) != 1 {
		t.Fatalf("expected the rejected scan to be audited, got %d entries", len(entries))
	}
	if entries[0].Payload == nil || entries[0].Payload.SubjectID != "reunion-1" {
		t.Error("audited rejection should snapshot the decoded payload")
	}

	subjects := core.bus.subjects()
	if subjects[len(subjects)-1] != events.ScanRejected {
		t.Errorf("expected a %s event, got %v", events.ScanRejected, subjects)
	}
}
