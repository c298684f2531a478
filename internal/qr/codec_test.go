package qr_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/clubsync/presence/internal/domain"
	"github.com/clubsync/presence/internal/qr"
)

func assertPayloadsEqual(t *testing.T, want, got *domain.QRPayload) {
	t.Helper()
	if got.FormatVersion != want.FormatVersion {
		t.Errorf("formatVersion: want %q, got %q", want.FormatVersion, got.FormatVersion)
	}
	if got.Kind != want.Kind {
		t.Errorf("kind: want %q, got %q", want.Kind, got.Kind)
	}
	if got.SubjectID != want.SubjectID {
		t.Errorf("subjectId: want %q, got %q", want.SubjectID, got.SubjectID)
	}
	if got.GroupID != want.GroupID {
		t.Errorf("groupId: want %q, got %q", want.GroupID, got.GroupID)
	}
	if !got.IssuedAt.Equal(want.IssuedAt) {
		t.Errorf("issuedAt: want %v, got %v", want.IssuedAt, got.IssuedAt)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("expiresAt: want %v, got %v", want.ExpiresAt, got.ExpiresAt)
	}
	if got.IntegrityTag != want.IntegrityTag {
		t.Errorf("integrityTag: want %q, got %q", want.IntegrityTag, got.IntegrityTag)
	}
	if !reflect.DeepEqual(got.Metadata, want.Metadata) {
		t.Errorf("metadata: want %v, got %v", want.Metadata, got.Metadata)
	}
}

func TestCodecRoundTripPlain(t *testing.T) {
	codec := qr.NewCodec("")
	cs := qr.NewChecksum([]byte(testKey))

	p := samplePayload()
	p.Metadata["capacity"] = float64(40)
	p.IntegrityTag = cs.Tag(p)

	encoded, err := codec.Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assertPayloadsEqual(t, p, decoded)

	// The tag must survive the round trip byte for byte.
	if !cs.Verify(decoded) {
		t.Fatal("decoded payload failed checksum verification")
	}
}

func TestCodecRoundTripPrivate(t *testing.T) {
	codec := qr.NewCodec("club-passphrase")
	cs := qr.NewChecksum([]byte(testKey))

	p := samplePayload()
	p.IntegrityTag = cs.Tag(p)

	encoded, err := codec.EncodePrivate(p)
	if err != nil {
		t.Fatalf("encode private: %v", err)
	}
	if !strings.HasPrefix(encoded, "ENC1.") {
		t.Fatalf("expected envelope prefix, got %q", encoded[:8])
	}
	if strings.Contains(encoded, p.SubjectID) {
		t.Fatal("envelope leaked payload contents")
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assertPayloadsEqual(t, p, decoded)
}

func TestCodecEncodePrivateNeedsPassphrase(t *testing.T) {
	codec := qr.NewCodec("")
	p := samplePayload()
	if _, err := codec.EncodePrivate(p); err == nil {
		t.Fatal("expected an error without a passphrase")
	}
}

func TestCodecDecodeWrongPassphrase(t *testing.T) {
	p := samplePayload()
	p.IntegrityTag = qr.NewChecksum([]byte(testKey)).Tag(p)

	encoded, err := qr.NewCodec("right").EncodePrivate(p)
	if err != nil {
		t.Fatalf("encode private: %v", err)
	}

	if _, err := qr.NewCodec("wrong").Decode(encoded); !errors.Is(err, qr.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestCodecDecodeMalformed(t *testing.T) {
	codec := qr.NewCodec("club-passphrase")

	cases := map[string]string{
		"not json":          "not json at all",
		"empty":             "",
		"json array":        `[1,2,3]`,
		"missing fields":    `{"formatVersion":"1.0.0","kind":"presence"}`,
		"wrong type":        `{"formatVersion":1,"kind":"presence","subjectId":"s","groupId":"g","issuedAt":"2026-03-14T18:30:00Z","expiresAt":"2026-03-14T20:30:00Z","integrityTag":"t","metadata":{}}`,
		"bad timestamp":     `{"formatVersion":"1.0.0","kind":"presence","subjectId":"s","groupId":"g","issuedAt":"yesterday","expiresAt":"2026-03-14T20:30:00Z","integrityTag":"t","metadata":{}}`,
		"metadata not obj":  `{"formatVersion":"1.0.0","kind":"presence","subjectId":"s","groupId":"g","issuedAt":"2026-03-14T18:30:00Z","expiresAt":"2026-03-14T20:30:00Z","integrityTag":"t","metadata":"x"}`,
		"empty subject":     `{"formatVersion":"1.0.0","kind":"presence","subjectId":"","groupId":"g","issuedAt":"2026-03-14T18:30:00Z","expiresAt":"2026-03-14T20:30:00Z","integrityTag":"t","metadata":{}}`,
		"truncated cipher":  "ENC1.AAAA",
		"garbage ciphertext": "ENC1." + strings.Repeat("A", 64),
	}

	for name, input := range cases {
		if _, err := codec.Decode(input); !errors.Is(err, qr.ErrMalformedPayload) {
			t.Errorf("%s: expected ErrMalformedPayload, got %v", name, err)
		}
	}
}
