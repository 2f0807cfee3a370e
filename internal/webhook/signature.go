package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const signaturePrefix = "sha256="

// Signer computes and checks X-Hub-Signature-256 values.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns "sha256=" followed by the hex HMAC-SHA256 of body.
func (s *Signer) Sign(body []byte) string {
	return signaturePrefix + hex.EncodeToString(s.mac(body))
}

// Verify checks header against body in constant time. Every failure wraps
// ErrUnauthorized.
func (s *Signer) Verify(body []byte, header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return fmt.Errorf("%w: signature header is empty", ErrUnauthorized)
	}
	sig, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return fmt.Errorf("%w: unsupported signature scheme", ErrUnauthorized)
	}
	decoded, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("%w: decode hex signature: %v", ErrUnauthorized, err)
	}
	if !hmac.Equal(decoded, s.mac(body)) {
		return ErrUnauthorized
	}
	return nil
}

func (s *Signer) mac(body []byte) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write(body)
	return h.Sum(nil)
}
