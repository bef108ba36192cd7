package core

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// TokenLength is the number of symbols in a board token.
const TokenLength = 16

const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// TokenSource produces board tokens.
type TokenSource func() (string, error)

// NewToken returns a base-62 token drawn from crypto/rand.
//
// Each symbol is a random uint32 reduced modulo 62. The resulting skew towards
// the first symbols is below one part in 2^26 and is accepted.
func NewToken() (string, error) {
	return newTokenFrom(rand.Reader)
}

func newTokenFrom(r io.Reader) (string, error) {
	var words [TokenLength * 4]byte
	if _, err := io.ReadFull(r, words[:]); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	out := make([]byte, TokenLength)
	for i := range out {
		w := binary.LittleEndian.Uint32(words[i*4:])
		out[i] = tokenAlphabet[w%uint32(len(tokenAlphabet))]
	}
	return string(out), nil
}
