// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package sec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
)

// GenerateSecureToken returns a URL-safe random string built from byteLength
// bytes of crypto/rand entropy. Used for verification links and OAuth state.
func GenerateSecureToken(byteLength int) (string, error) {
	raw := make([]byte, byteLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("sec: failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// GenerateNumericCode returns a random code of exactly `digits` decimal
// digits, suitable for a human to read from an email and type in. Leading
// zeros are preserved.
func GenerateNumericCode(digits int) (string, error) {
	if digits < 1 {
		return "", fmt.Errorf("sec: digits must be positive, got %d", digits)
	}

	var builder strings.Builder
	builder.Grow(digits)
	for range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("sec: failed to generate code: %w", err)
		}
		builder.WriteByte(byte('0' + n.Int64()))
	}

	return builder.String(), nil
}
