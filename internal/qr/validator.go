package qr

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clubsync/presence/internal/domain"
	"github.com/clubsync/presence/pkg/events"
	"github.com/clubsync/presence/pkg/logger"
)

// DefaultReplayWindow is how long an accepted (subject, tag) pair blocks a
// second scan of the same code.
const DefaultReplayWindow = 5 * time.Minute

// staleAfter is how old issuedAt may be before a warning is attached. Only
// reachable with validity durations above a day.
const staleAfter = 24 * time.Hour

// Validator decides accept/reject for an arbitrary scanned or typed string.
// Checks run in a fixed, non-skippable order; the first hard failure names
// the reported reason. No state is kept across calls.
type Validator struct {
	checksum     *Checksum
	codec        *Codec
	ledger       Recorder
	bus          events.Publisher
	clock        Clock
	replayWindow time.Duration
}

func NewValidator(checksum *Checksum, codec *Codec, ledger Recorder, bus events.Publisher, clock Clock, replayWindow time.Duration) *Validator {
	if clock == nil {
		clock = time.Now
	}
	if replayWindow <= 0 {
		replayWindow = DefaultReplayWindow
	}
	return &Validator{
		checksum:     checksum,
		codec:        codec,
		ledger:       ledger,
		bus:          bus,
		clock:        clock,
		replayWindow: replayWindow,
	}
}

// Validate runs the full rule chain over one input string. Every attempt,
// accepted or not, lands in the history ledger. The returned error is nil
// for all expected outcomes; it is non-nil only for infrastructure faults
// (ledger store unreachable), which the HTTP boundary maps to a generic
// failure distinct from the rejection taxonomy.
func (v *Validator) Validate(ctx context.Context, raw string) (domain.ValidationOutcome, error) {
	outcome, payload, err := v.run(ctx, raw)
	if err != nil {
		return domain.ValidationOutcome{}, err
	}

	v.record(ctx, outcome, payload)
	return outcome, nil
}

// run executes the pipeline. The second return is the decoded payload, kept
// even on rejection so the audit entry can snapshot it; the outcome itself
// carries the payload only when accepted.
func (v *Validator) run(ctx context.Context, raw string) (domain.ValidationOutcome, *domain.QRPayload, error) {
	// 1+2. Decode and structural check.
	payload, err := v.codec.Decode(raw)
	if err != nil {
		return reject(domain.FailureMalformedPayload, nil), nil, nil
	}

	// 3. Kind: only presence codes grant check-in.
	if payload.Kind != domain.KindPresence {
		return reject(domain.FailureUnsupportedKind, nil), payload, nil
	}

	var warnings []domain.Warning

	// 4. Version skew is tolerated, not fatal.
	if payload.FormatVersion != domain.FormatVersion {
		warnings = append(warnings, domain.WarnUnknownFormatVersion)
	}

	// 5. Expiry.
	now := v.clock().UTC()
	if now.After(payload.ExpiresAt) {
		return reject(domain.FailureExpired, warnings), payload, nil
	}

	// 6. Staleness.
	if now.Sub(payload.IssuedAt) > staleAfter {
		warnings = append(warnings, domain.WarnStaleIssuedAt)
	}

	// 7. Integrity: any field edit, metadata included, is caught here.
	if !v.checksum.Verify(payload) {
		logger.WarnContext(ctx, "Integrity failure on scanned code",
			"subject_id", payload.SubjectID,
			"group_id", payload.GroupID,
		)
		if v.bus != nil {
			alert := events.IntegrityAlertEvent{
				SubjectID:    payload.SubjectID,
				GroupID:      payload.GroupID,
				IntegrityTag: payload.IntegrityTag,
				DetectedAt:   now,
			}
			if err := v.bus.Publish(ctx, events.IntegrityAlert, alert); err != nil {
				logger.ErrorContext(ctx, "Failed to publish integrity alert", "error", err)
			}
		}
		return reject(domain.FailureIntegrity, warnings), payload, nil
	}

	// 8. Replay: the same code consumed again inside the window.
	seen, err := v.ledger.SeenScan(ctx, payload.SubjectID, payload.IntegrityTag, now.Add(-v.replayWindow))
	if err != nil {
		return domain.ValidationOutcome{}, nil, err
	}
	if seen {
		return reject(domain.FailureReplayDetected, warnings), payload, nil
	}

	// 9. Accepted.
	outcome := domain.ValidationOutcome{
		Accepted: true,
		Payload:  payload,
		Warnings: warnings,
	}
	return outcome, payload, nil
}

// record appends the scanned entry and publishes the scan result. Both are
// best effort; the outcome already stands.
func (v *Validator) record(ctx context.Context, outcome domain.ValidationOutcome, payload *domain.QRPayload) {
	entry := domain.HistoryEntry{
		ID:         uuid.NewString(),
		Action:     domain.ActionScanned,
		Payload:    payload,
		RecordedAt: v.clock().UTC(),
	}
	if err := v.ledger.Append(ctx, entry); err != nil {
		logger.ErrorContext(ctx, "Failed to record scanned entry", "error", err)
	}

	if v.bus == nil {
		return
	}
	event := events.ScanResultEvent{
		Accepted:      outcome.Accepted,
		FailureReason: string(outcome.FailureReason),
		ScannedAt:     entry.RecordedAt,
	}
	for _, w := range outcome.Warnings {
		event.Warnings = append(event.Warnings, string(w))
	}
	if payload != nil {
		event.SubjectID = payload.SubjectID
		event.GroupID = payload.GroupID
	}
	subject := events.ScanRejected
	if outcome.Accepted {
		subject = events.ScanAccepted
	}
	if err := v.bus.Publish(ctx, subject, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish scan result", "error", err)
	}
}

func reject(reason domain.FailureReason, warnings []domain.Warning) domain.ValidationOutcome {
	return domain.ValidationOutcome{
		FailureReason: reason,
		Warnings:      warnings,
	}
}
