package platform

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

const shortIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// SuffixLength is the length of the random suffix appended to colliding names.
const SuffixLength = 4

// maxNameAttempts bounds UniqueName; 36^4 suffixes make exhaustion unrealistic.
const maxNameAttempts = 32

func NewID() string {
	return uuid.New().String()
}

// RandomString returns n characters drawn from [a-z0-9].
func RandomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = shortIDAlphabet[b[i]%byte(len(shortIDAlphabet))]
	}
	return string(b)
}

// UniqueName returns base when it is free, otherwise base-xxxx with a random
// suffix that taken reports as free.
func UniqueName(ctx context.Context, base string, taken func(ctx context.Context, name string) (bool, error)) (string, error) {
	used, err := taken(ctx, base)
	if err != nil {
		return "", fmt.Errorf("check name %q: %w", base, err)
	}
	if !used {
		return base, nil
	}
	for i := 0; i < maxNameAttempts; i++ {
		candidate := base + "-" + RandomString(SuffixLength)
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check name %q: %w", candidate, err)
		}
		if !used {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %q after %d attempts", base, maxNameAttempts)
}
