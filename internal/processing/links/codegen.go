package links

import (
	"crypto/rand"
	"io"
)

const base62Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomCodeGenerator draws codes character by character from the base62
// alphabet. The entropy source is injectable so tests can fix it;
// collisions are the caller's problem, not suppressed here.
type RandomCodeGenerator struct {
	source io.Reader
}

func NewRandomCodeGenerator() *RandomCodeGenerator {
	return &RandomCodeGenerator{source: rand.Reader}
}

// NewRandomCodeGeneratorFrom uses the given entropy source instead of
// crypto/rand.
func NewRandomCodeGeneratorFrom(source io.Reader) *RandomCodeGenerator {
	return &RandomCodeGenerator{source: source}
}

func (g *RandomCodeGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		return "", err
	}

	out := make([]byte, length)
	for i := range buf {
		out[i] = base62Alphabet[int(buf[i])%len(base62Alphabet)]
	}

	return string(out), nil
}
