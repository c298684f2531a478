package qr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clubsync/presence/internal/domain"
	"github.com/clubsync/presence/pkg/events"
	"github.com/clubsync/presence/pkg/logger"
)

// DefaultValidity is the payload lifetime when the caller supplies none.
const DefaultValidity = 120 * time.Minute

// ErrInvalidGenerationOptions covers non-positive durations and missing
// required context fields. Caller input problem; retrying does not help.
var ErrInvalidGenerationOptions = errors.New("invalid generation options")

// Clock supplies the current time. Injected so tests can pin it.
type Clock func() time.Time

// Recorder is the slice of the history ledger the QR core writes to and
// consults.
type Recorder interface {
	Append(ctx context.Context, entry domain.HistoryEntry) error
	SeenScan(ctx context.Context, subjectID, integrityTag string, since time.Time) (bool, error)
}

// IssueContext identifies what the code grants entry to and who issued it.
type IssueContext struct {
	SubjectID string
	GroupID   string
	IssuerID  string
	// Kind defaults to presence.
	Kind domain.PayloadKind
	// Metadata carries display-only fields; copied into the payload verbatim.
	Metadata map[string]any
}

type IssueOptions struct {
	// Validity defaults to DefaultValidity. Must be positive when set.
	Validity time.Duration
	// MaxParticipants, when positive, is surfaced as metadata capacity.
	MaxParticipants int
	// Private seals the encoded form in the encrypted envelope.
	Private bool
}

// IssuedCode pairs a payload with its QR-encodable wire form.
type IssuedCode struct {
	Payload *domain.QRPayload `json:"payload"`
	Encoded string            `json:"encoded"`
}

// Generator issues fresh, time-bounded, signed payloads. Stateless per call;
// tracking the "current" displayed code is the caller's job (see Refresher).
type Generator struct {
	checksum *Checksum
	codec    *Codec
	ledger   Recorder
	bus      events.Publisher
	clock    Clock
}

func NewGenerator(checksum *Checksum, codec *Codec, ledger Recorder, bus events.Publisher, clock Clock) *Generator {
	if clock == nil {
		clock = time.Now
	}
	return &Generator{checksum: checksum, codec: codec, ledger: ledger, bus: bus, clock: clock}
}

// Issue assembles, signs, and encodes a new payload, and records a generated
// ledger entry. Timestamps are truncated to whole seconds so the wire form,
// the checksum input, and the in-memory value always name the same instant.
func (g *Generator) Issue(ctx context.Context, ic IssueContext, opts IssueOptions) (*IssuedCode, error) {
	if ic.SubjectID == "" || ic.GroupID == "" {
		return nil, fmt.Errorf("%w: subject and group are required", ErrInvalidGenerationOptions)
	}
	if opts.Validity < 0 {
		return nil, fmt.Errorf("%w: validity must be positive", ErrInvalidGenerationOptions)
	}
	if opts.MaxParticipants < 0 {
		return nil, fmt.Errorf("%w: max participants must not be negative", ErrInvalidGenerationOptions)
	}

	kind := ic.Kind
	if kind == "" {
		kind = domain.KindPresence
	}
	if _, ok := domain.ParsePayloadKind(string(kind)); !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidGenerationOptions, kind)
	}

	validity := opts.Validity
	if validity == 0 {
		validity = DefaultValidity
	}

	issuedAt := g.clock().UTC().Truncate(time.Second)

	metadata := make(map[string]any, len(ic.Metadata)+2)
	for k, v := range ic.Metadata {
		metadata[k] = v
	}
	if ic.IssuerID != "" {
		metadata["organizerId"] = ic.IssuerID
	}
	if opts.MaxParticipants > 0 {
		// Stored as float64 so the value survives a JSON round trip unchanged.
		metadata["capacity"] = float64(opts.MaxParticipants)
	}

	payload := &domain.QRPayload{
		FormatVersion: domain.FormatVersion,
		Kind:          kind,
		SubjectID:     ic.SubjectID,
		GroupID:       ic.GroupID,
		IssuedAt:      issuedAt,
		ExpiresAt:     issuedAt.Add(validity),
		Metadata:      metadata,
	}
	payload.IntegrityTag = g.checksum.Tag(payload)

	var (
		encoded string
		err     error
	)
	if opts.Private {
		encoded, err = g.codec.EncodePrivate(payload)
	} else {
		encoded, err = g.codec.Encode(payload)
	}
	if err != nil {
		return nil, err
	}

	entry := domain.HistoryEntry{
		ID:         uuid.NewString(),
		Action:     domain.ActionGenerated,
		Payload:    payload,
		RecordedAt: g.clock().UTC(),
	}
	// At-most-once durability: a failed append loses the audit record, not
	// the issued code.
	if err := g.ledger.Append(ctx, entry); err != nil {
		logger.ErrorContext(ctx, "Failed to record generated entry", "error", err, "subject_id", ic.SubjectID)
	}

	if g.bus != nil {
		event := events.CodeGeneratedEvent{
			SubjectID: payload.SubjectID,
			GroupID:   payload.GroupID,
			IssuerID:  ic.IssuerID,
			Kind:      string(payload.Kind),
			IssuedAt:  payload.IssuedAt,
			ExpiresAt: payload.ExpiresAt,
		}
		if err := g.bus.Publish(ctx, events.CodeGenerated, event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish code generated event", "error", err, "subject_id", ic.SubjectID)
		}
	}

	return &IssuedCode{Payload: payload, Encoded: encoded}, nil
}
