// Package watermark signs report payloads and embeds them into PDFs as an
// invisible cryptographic mark plus a visible human-readable stamp.
package watermark

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// Version is written into the keywords metadata and the X-Watermark-Version header.
	Version = "1.0"
	// PrefixLen is the number of signature hex chars used in page marks and verification links.
	PrefixLen = 16
	// DefaultInstitution is used when a payload has no institution id.
	DefaultInstitution = "academic-hub"

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

var ErrEmptySecret = errors.New("watermark secret is empty")

// Payload is the signed tuple.
type Payload struct {
	UserID        string `json:"userId"`
	DocumentType  string `json:"documentType"`
	Timestamp     string `json:"timestamp"`
	InstitutionID string `json:"institutionId"`
	DocumentID    string `json:"documentId"`
}

// NewPayload stamps a payload with t in UTC millisecond precision. An empty
// institution becomes DefaultInstitution.
func NewPayload(userID, documentType, documentID, institutionID string, t time.Time) Payload {
	if institutionID == "" {
		institutionID = DefaultInstitution
	}
	return Payload{
		UserID:        userID,
		DocumentType:  documentType,
		Timestamp:     t.UTC().Format(timestampLayout),
		InstitutionID: institutionID,
		DocumentID:    documentID,
	}
}

// Time parses the payload timestamp. The zero time is returned if it is malformed.
func (p Payload) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Canonicalize serializes p as JSON with lexicographically ordered keys and
// no HTML escaping.
func Canonicalize(p Payload) ([]byte, error) {
	fields := map[string]string{
		"userId":        p.UserID,
		"documentType":  p.DocumentType,
		"timestamp":     p.Timestamp,
		"institutionId": p.InstitutionID,
		"documentId":    p.DocumentID,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Signed is the output of Sign.
type Signed struct {
	Signature string `json:"signature"` // hex HMAC-SHA256
	Payload   string `json:"payload"`   // base64 canonical JSON
}

// Prefix returns the leading PrefixLen characters of the signature.
func (s Signed) Prefix() string { return Prefix(s.Signature) }

// Prefix returns the leading PrefixLen characters of sig.
func Prefix(sig string) string {
	if len(sig) <= PrefixLen {
		return sig
	}
	return sig[:PrefixLen]
}

// Signer computes and checks HMAC-SHA256 signatures with a process-wide secret.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer. The secret is copied.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign canonicalizes and signs p.
func (s *Signer) Sign(p Payload) (Signed, error) {
	canon, err := Canonicalize(p)
	if err != nil {
		return Signed{}, err
	}
	return Signed{
		Signature: hex.EncodeToString(s.mac(canon)),
		Payload:   base64.StdEncoding.EncodeToString(canon),
	}, nil
}

// Verify decodes encodedPayload, re-derives its signature and compares it to
// signature in constant time. Any decoding problem yields false.
func (s *Signer) Verify(signature, encodedPayload string) bool {
	_, ok := s.Open(signature, encodedPayload)
	return ok
}

// Open is Verify that also returns the decoded payload on success. The
// decoded bytes must already be canonical, so reordered keys, extra keys or
// whitespace fail even when the fields would re-sign to the same value.
func (s *Signer) Open(signature, encodedPayload string) (Payload, bool) {
	given, err := hex.DecodeString(signature)
	if err != nil || len(given) != sha256.Size {
		return Payload{}, false
	}
	raw, err := base64.StdEncoding.DecodeString(encodedPayload)
	if err != nil {
		return Payload{}, false
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, false
	}
	canon, err := Canonicalize(p)
	if err != nil || !bytes.Equal(raw, canon) {
		return Payload{}, false
	}
	if !hmac.Equal(given, s.mac(canon)) {
		return Payload{}, false
	}
	return p, true
}

func (s *Signer) mac(msg []byte) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write(msg)
	return h.Sum(nil)
}

// ContentHash is hex SHA-256 over the final PDF bytes followed by the
// canonical payload.
func ContentHash(pdf []byte, p Payload) (string, error) {
	canon, err := Canonicalize(p)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(pdf)
	h.Write(canon)
	return hex.EncodeToString(h.Sum(nil)), nil
}
