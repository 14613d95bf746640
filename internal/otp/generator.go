package otp

import (
	"crypto/rand"
	"math/big"
	"time"
)

const (
	// DefaultLength is the number of digits in an issued code.
	DefaultLength = 6

	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = 5 * time.Minute
)

// Generator issues numeric one-time codes. Codes come from crypto/rand so
// they cannot be predicted within the three-attempt budget callers enforce.
type Generator struct {
	length int
	ttl    time.Duration
}

func New(length int, ttl time.Duration) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Generator{
		length: length,
		ttl:    ttl,
	}
}

// Code returns a uniformly random numeric string of the configured length.
// Leading zeros are allowed, so every digit carries full entropy.
func (g *Generator) Code() (string, error) {
	digits := make([]byte, g.length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}

	return string(digits), nil
}

// ExpiryFrom returns the expiry timestamp for a code issued at now.
func (g *Generator) ExpiryFrom(now time.Time) time.Time {
	return now.Add(g.ttl)
}

// TTLSeconds is the validity window reported back to clients.
func (g *Generator) TTLSeconds() int {
	return int(g.ttl.Seconds())
}
