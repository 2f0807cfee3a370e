package webhook

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_KnownVector(t *testing.T) {
	// Example from GitHub's webhook validation documentation.
	s := NewSigner("It's a Secret to Everybody")
	got := s.Sign([]byte("Hello, World!"))
	assert.Equal(t, "sha256=757107ea0eb2509fc211221cce984b8a37570b6d7586c22c46f4379c8b043e17", got)
	assert.NoError(t, s.Verify([]byte("Hello, World!"), got))
}

func TestSigner_RoundTrip(t *testing.T) {
	s := NewSigner("s3cret")
	body := []byte(`{"action":"opened"}`)

	sig := s.Sign(body)
	require.True(t, strings.HasPrefix(sig, "sha256="))
	assert.Len(t, sig, len("sha256=")+64)
	assert.NoError(t, s.Verify(body, sig))
	assert.NoError(t, s.Verify(body, "  "+sig+" "))
}

func TestSigner_Rejects(t *testing.T) {
	s := NewSigner("s3cret")
	body := []byte(`{"action":"opened"}`)
	valid := s.Sign(body)

	tests := []struct {
		name   string
		header string
		body   []byte
	}{
		{"empty header", "", body},
		{"sha1 scheme", "sha1=" + strings.Repeat("0", 40), body},
		{"no prefix", strings.TrimPrefix(valid, "sha256="), body},
		{"not hex", "sha256=zz", body},
		{"truncated", valid[:len(valid)-2], body},
		{"other secret", NewSigner("other").Sign(body), body},
		{"other body", valid, []byte(`{"action":"closed"}`)},
		{"empty body", valid, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.Verify(tt.body, tt.header), ErrUnauthorized)
		})
	}
}

func TestSigner_SingleBitBodyMutation(t *testing.T) {
	s := NewSigner("s3cret")
	body := []byte(`{"action":"opened","number":1}`)
	sig := s.Sign(body)

	for i := range body {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), body...)
			mutated[i] ^= 1 << bit
			if err := s.Verify(mutated, sig); err == nil {
				t.Fatalf("flipping bit %d of byte %d still verified", bit, i)
			}
		}
	}
}

func TestSigner_SingleBitSignatureMutation(t *testing.T) {
	s := NewSigner("s3cret")
	body := []byte(`{"action":"opened"}`)
	mac, err := hex.DecodeString(strings.TrimPrefix(s.Sign(body), "sha256="))
	require.NoError(t, err)

	for i := range mac {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), mac...)
			mutated[i] ^= 1 << bit
			header := "sha256=" + hex.EncodeToString(mutated)
			if err := s.Verify(body, header); err == nil {
				t.Fatalf("flipping bit %d of mac byte %d still verified", bit, i)
			}
		}
	}
}
