package token

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	codec := NewCodec("test-secret")

	tok, err := codec.Encode(7, 42, nil)
	if err != nil {
		t.Fatalf("Failed to encode token: %v", err)
	}
	if tok == "" {
		t.Fatal("Token should not be empty")
	}

	claims, err := codec.Decode(tok)
	if err != nil {
		t.Fatalf("Failed to decode token: %v", err)
	}
	if claims.ReviewerID != 7 {
		t.Errorf("Expected reviewer ID 7, got %d", claims.ReviewerID)
	}
	if claims.RevisionID != 42 {
		t.Errorf("Expected revision ID 42, got %d", claims.RevisionID)
	}
	if claims.ContextID != nil {
		t.Errorf("Expected no context reference, got %d", *claims.ContextID)
	}
}

func TestEncodeDecodeWithContext(t *testing.T) {
	codec := NewCodec("test-secret")

	ctx := uint(99)
	tok, err := codec.Encode(7, 42, &ctx)
	if err != nil {
		t.Fatalf("Failed to encode token: %v", err)
	}

	claims, err := codec.Decode(tok)
	if err != nil {
		t.Fatalf("Failed to decode token: %v", err)
	}
	if claims.ContextID == nil || *claims.ContextID != 99 {
		t.Errorf("Expected context reference 99, got %v", claims.ContextID)
	}
}

func TestDecodeTamperedSignature(t *testing.T) {
	codec := NewCodec("test-secret")

	tok, err := codec.Encode(7, 42, nil)
	if err != nil {
		t.Fatalf("Failed to encode token: %v", err)
	}

	// Flip a character in the signature segment
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("Expected 3 token segments, got %d", len(parts))
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := codec.Decode(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for tampered signature, got %v", err)
	}
}

func TestDecodeWrongSecret(t *testing.T) {
	tok, err := NewCodec("secret-one").Encode(7, 42, nil)
	if err != nil {
		t.Fatalf("Failed to encode token: %v", err)
	}

	if _, err := NewCodec("secret-two").Decode(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	codec := NewCodec("test-secret")

	for _, tok := range []string{"", "garbage", "a.b.c", "a.b"} {
		if _, err := codec.Decode(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for %q, got %v", tok, err)
		}
	}
}

func TestDecodeMissingClaims(t *testing.T) {
	codec := NewCodec("test-secret")

	// A token with zero-value identifiers is rejected even though the
	// signature verifies.
	tok, err := codec.Encode(0, 0, nil)
	if err != nil {
		t.Fatalf("Failed to encode token: %v", err)
	}

	if _, err := codec.Decode(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for empty claims, got %v", err)
	}
}
