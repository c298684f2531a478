// Package qr implements the presence-code core: the keyed checksum, the wire
// codec, the generator, the validator pipeline, and the auto-refresh loop.
package qr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/clubsync/presence/internal/domain"
)

// Checksum computes and verifies the integrity tag binding all payload fields
// together. The key is shared by every trusted generator and validator in a
// deployment; it is the sole trust anchor of the scheme.
type Checksum struct {
	key []byte
}

func NewChecksum(key []byte) *Checksum {
	return &Checksum{key: key}
}

// Tag returns the hex HMAC-SHA256 over the canonical serialization of every
// payload field except the tag itself. Deterministic: construction order of
// the payload never changes the result.
func (c *Checksum) Tag(p *domain.QRPayload) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(canonicalFields(p))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the tag and compares it to the stored one in constant
// time.
func (c *Checksum) Verify(p *domain.QRPayload) bool {
	expected := c.Tag(p)
	return hmac.Equal([]byte(expected), []byte(p.IntegrityTag))
}

// canonicalFields serializes the tag input deterministically. encoding/json
// writes map keys in lexicographic order, so the same logical payload always
// produces the same bytes. Timestamps are rendered as RFC3339 UTC to match
// the wire form exactly.
func canonicalFields(p *domain.QRPayload) []byte {
	fields := map[string]any{
		"expiresAt":     p.ExpiresAt.UTC().Format(time.RFC3339),
		"formatVersion": p.FormatVersion,
		"groupId":       p.GroupID,
		"issuedAt":      p.IssuedAt.UTC().Format(time.RFC3339),
		"kind":          string(p.Kind),
		"metadata":      p.Metadata,
		"subjectId":     p.SubjectID,
	}
	// Metadata holds JSON primitives only, so marshaling cannot fail.
	data, _ := json.Marshal(fields)
	return data
}
