package server

import (
	"crypto/rand"
	"fmt"
)

// idAlphabet is the 64-character URL-safe, printable alphabet every
// client-id, request-id, and connect-token is drawn from. It deliberately
// excludes '-' and '_' even though both are URL-safe, to stay a single
// contiguous run of alphanumerics plus a small punctuation tail that is
// unambiguous in logs and cookies.
//
// No ecosystem dependency ships a nanoid-style generator with a
// pluggable alphabet (see DESIGN.md), so ids are generated directly from
// crypto/rand bytes mapped onto this alphabet.
const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz~."

// generateID returns a random printable string of the given length drawn
// uniformly from idAlphabet.
func generateID(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("generateID: length must be positive, got %d", length)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generateID: reading random bytes: %w", err)
	}

	out := make([]byte, length)
	n := byte(len(idAlphabet))
	for i, b := range buf {
		out[i] = idAlphabet[b%n]
	}
	return string(out), nil
}

// mustGenerateID panics if id generation fails. crypto/rand.Read only
// errors when the OS entropy source itself is broken, a condition no
// caller (startup token minting, per-connection client-ids, per-request
// request-ids) has a sane recovery path for.
func mustGenerateID(length int) string {
	id, err := generateID(length)
	if err != nil {
		panic(err)
	}
	return id
}

const (
	clientIDLength     = 12
	requestIDLength    = 20
	connectTokenLength = 24
)
