package utils

import (
	"crypto/rand"
	"fmt"
	"io"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxUnbiased is the largest multiple of len(charset) that fits in a byte.
const maxUnbiased = 256 - 256%len(charset)

var randReader io.Reader = rand.Reader

// GenerateRandomID returns n characters from [a-zA-Z0-9]. It fails rather than
// return a short or predictable id when the random source does.
func GenerateRandomID(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random id length must be positive, got %d", n)
	}

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(randReader, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, charset[int(b)%len(charset)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
