package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

func TestNewToken(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		tok, err := NewToken()
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if len(tok) != TokenLength {
			t.Fatalf("token length %d", len(tok))
		}
		for _, r := range tok {
			if !strings.ContainsRune(tokenAlphabet, r) {
				t.Fatalf("unexpected symbol %q in %q", r, tok)
			}
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestNewTokenModuloMapping(t *testing.T) {
	// words 0, 61, 62 and 63 map to '0', 'z', '0', '1'
	words := []uint32{0, 61, 62, 63}
	var buf bytes.Buffer
	for i := 0; i < TokenLength; i++ {
		w := words[i%len(words)]
		buf.Write([]byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)})
	}
	tok, err := newTokenFrom(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if tok != strings.Repeat("0z01", 4) {
		t.Fatalf("unexpected token %q", tok)
	}
}

func TestNewTokenSourceFailure(t *testing.T) {
	_, err := newTokenFrom(iotest.ErrReader(errors.New("entropy exhausted")))
	if !errors.Is(err, ErrTokenGeneration) {
		t.Fatalf("expected ErrTokenGeneration, got %v", err)
	}
}
