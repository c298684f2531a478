package domain

import "time"

// FormatVersion is the payload schema version this build writes and fully
// understands. Codes carrying a different version still validate, with a
// warning attached.
const FormatVersion = "1.0.0"

type PayloadKind string

const (
	KindPresence         PayloadKind = "presence"
	KindEvent            PayloadKind = "event"
	KindMemberCredential PayloadKind = "member-credential"
)

func ParsePayloadKind(s string) (PayloadKind, bool) {
	switch PayloadKind(s) {
	case KindPresence, KindEvent, KindMemberCredential:
		return PayloadKind(s), true
	default:
		return "", false
	}
}

// QRPayload is the signed, transmissible unit encoded into a QR code.
// A payload is immutable once issued; re-issuance produces a new payload
// with fresh timestamps and a fresh tag, never an edited copy.
type QRPayload struct {
	FormatVersion string      `json:"formatVersion"`
	Kind          PayloadKind `json:"kind"`
	SubjectID     string      `json:"subjectId"`
	GroupID       string      `json:"groupId"`
	IssuedAt      time.Time   `json:"issuedAt"`
	ExpiresAt     time.Time   `json:"expiresAt"`

	// IntegrityTag binds every other field together. Computed last at
	// generation, verified against a recomputation on validation.
	IntegrityTag string `json:"integrityTag"`

	// Metadata carries display-only fields (title, location, organizer id,
	// capacity). Values are JSON primitives. It never drives a trust
	// decision beyond being part of the checksum input.
	Metadata map[string]any `json:"metadata"`
}

type FailureReason string

const (
	FailureMalformedPayload FailureReason = "MalformedPayload"
	FailureUnsupportedKind  FailureReason = "UnsupportedKind"
	FailureExpired          FailureReason = "Expired"
	FailureIntegrity        FailureReason = "IntegrityFailure"
	FailureReplayDetected   FailureReason = "ReplayDetected"
)

type Warning string

const (
	WarnUnknownFormatVersion Warning = "unknown-format-version"
	WarnStaleIssuedAt        Warning = "stale-issued-at"
)

// ValidationOutcome is the result of running one scanned string through the
// validator. Rejection is a domain result, not an error.
type ValidationOutcome struct {
	Accepted      bool          `json:"accepted"`
	Payload       *QRPayload    `json:"payload,omitempty"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	Warnings      []Warning     `json:"warnings,omitempty"`
}
