package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/scrypt"

	"github.com/clubsync/presence/internal/domain"
)

// ErrMalformedPayload is returned when a scanned string is neither valid
// payload JSON nor a decryptable envelope around one.
var ErrMalformedPayload = errors.New("malformed payload")

// envelopePrefix marks the encrypted wire form.
const envelopePrefix = "ENC1."

const (
	saltSize  = 16
	scryptN   = 1 << 15
	scryptR   = 8
	scryptP   = 1
	cipherKey = 32
)

// Codec serializes payloads to the QR-encodable wire form and back. Plain
// codes are canonical JSON; private codes wrap that JSON in an AES-256-GCM
// envelope keyed from a shared passphrase. Confidentiality only; integrity
// is the checksum's job either way.
type Codec struct {
	passphrase []byte
}

func NewCodec(passphrase string) *Codec {
	return &Codec{passphrase: []byte(passphrase)}
}

// Encode serializes the payload to its plain JSON wire form.
func (c *Codec) Encode(p *domain.QRPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

// EncodePrivate serializes and seals the payload into the encrypted envelope.
func (c *Codec) EncodePrivate(p *domain.QRPayload) (string, error) {
	if len(c.passphrase) == 0 {
		return "", errors.New("no envelope passphrase configured")
	}
	plain, err := c.Encode(p)
	if err != nil {
		return "", err
	}
	return c.seal([]byte(plain))
}

// Decode parses a scanned or typed string into a payload. The plain JSON
// shape is tried first, then decrypt-then-parse as fallback. Structural and
// primitive-type requirements are enforced here; everything that fails them
// is ErrMalformedPayload.
func (c *Codec) Decode(raw string) (*domain.QRPayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformedPayload
	}

	if p, err := parsePayload([]byte(raw)); err == nil {
		return p, nil
	}

	if len(c.passphrase) == 0 {
		return nil, ErrMalformedPayload
	}
	plain, err := c.open(raw)
	if err != nil {
		return nil, ErrMalformedPayload
	}
	return parsePayload(plain)
}

func (c *Codec) seal(plain []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("envelope salt: %w", err)
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("envelope nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plain, nil)

	buf := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	buf = append(buf, salt...)
	buf = append(buf, nonce...)
	buf = append(buf, sealed...)

	return envelopePrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

func (c *Codec) open(enc string) ([]byte, error) {
	enc = strings.TrimPrefix(enc, envelopePrefix)
	buf, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return nil, err
	}
	if len(buf) < saltSize {
		return nil, errors.New("envelope too short")
	}

	salt, rest := buf[:saltSize], buf[saltSize:]
	gcm, err := c.aead(salt)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, errors.New("envelope too short")
	}

	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func (c *Codec) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(c.passphrase, salt, scryptN, scryptR, scryptP, cipherKey)
	if err != nil {
		return nil, fmt.Errorf("derive envelope key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// parsePayload enforces the required field set: every field present, strings
// non-empty, timestamps RFC3339, metadata an object.
func parsePayload(data []byte) (*domain.QRPayload, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, ErrMalformedPayload
	}

	str := func(key string) (string, bool) {
		v, ok := obj[key].(string)
		return v, ok && v != ""
	}

	formatVersion, ok := str("formatVersion")
	if !ok {
		return nil, ErrMalformedPayload
	}
	kindStr, ok := str("kind")
	if !ok {
		return nil, ErrMalformedPayload
	}
	subjectID, ok := str("subjectId")
	if !ok {
		return nil, ErrMalformedPayload
	}
	groupID, ok := str("groupId")
	if !ok {
		return nil, ErrMalformedPayload
	}
	integrityTag, ok := str("integrityTag")
	if !ok {
		return nil, ErrMalformedPayload
	}

	issuedAt, ok := parseTime(obj["issuedAt"])
	if !ok {
		return nil, ErrMalformedPayload
	}
	expiresAt, ok := parseTime(obj["expiresAt"])
	if !ok {
		return nil, ErrMalformedPayload
	}

	metadata, ok := obj["metadata"].(map[string]any)
	if !ok {
		return nil, ErrMalformedPayload
	}

	return &domain.QRPayload{
		FormatVersion: formatVersion,
		Kind:          domain.PayloadKind(kindStr),
		SubjectID:     subjectID,
		GroupID:       groupID,
		IssuedAt:      issuedAt,
		ExpiresAt:     expiresAt,
		IntegrityTag:  integrityTag,
		Metadata:      metadata,
	}, nil
}

func parseTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
