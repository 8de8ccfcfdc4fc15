// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package sec

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters following the OWASP password storage guidance.
// The parameters are encoded into every produced hash, so they can be
// tuned without invalidating previously stored credentials.
const (
	argonMemory      uint32 = 64 * 1024 // KiB
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonSaltLength  uint32 = 16
	argonKeyLength   uint32 = 32
)

// ErrMalformedHash is returned when a stored hash cannot be parsed.
var ErrMalformedHash = errors.New("sec: malformed password hash")

// Hasher derives and verifies Argon2id password hashes.
//
// # Concurrency
//
// Argon2id is deliberately CPU and memory hard. Hashing is gated by a
// semaphore sized to the CPU count so a burst of sign-ups cannot starve
// the request-handling goroutines. Verify goes through the same gate.
type Hasher struct {
	sem chan struct{}
}

// NewHasher constructs a [Hasher] with a CPU-bound concurrency gate.
func NewHasher() *Hasher {
	slots := runtime.GOMAXPROCS(0)
	if slots < 2 {
		slots = 2
	}
	return &Hasher{sem: make(chan struct{}, slots)}
}

// Hash derives an Argon2id hash of the password and encodes it in PHC
// string format ($argon2id$v=19$m=...,t=...,p=...$salt$hash). The salt is
// embedded in the output, so verification needs no external salt storage.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sec: failed to generate salt: %w", err)
	}

	h.sem <- struct{}{}
	key := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	<-h.sem

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory,
		argonIterations,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify reports whether the password matches the encoded hash.
//
// The comparison is constant-time. Parameters are read back from the hash
// itself, so hashes produced under older parameter sets still verify.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	params, salt, want, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	h.sem <- struct{}{}
	got := argon2.IDKey([]byte(password), salt, params.iterations, params.memory, params.parallelism, uint32(len(want)))
	<-h.sem

	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

type argonParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
}

// decodeHash splits a PHC-format Argon2id string into parameters, salt, and key.
func decodeHash(encodedHash string) (argonParams, []byte, []byte, error) {
	var params argonParams

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return params, nil, nil, ErrMalformedHash
	}
	if parts[1] != "argon2id" {
		return params, nil, nil, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, fmt.Errorf("%w: bad version segment", ErrMalformedHash)
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("%w: incompatible argon2 version %d", ErrMalformedHash, version)
	}

	var parallelism uint
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.iterations, &parallelism); err != nil {
		return params, nil, nil, fmt.Errorf("%w: bad parameter segment", ErrMalformedHash)
	}
	params.parallelism = uint8(parallelism)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("%w: bad salt encoding", ErrMalformedHash)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, fmt.Errorf("%w: bad key encoding", ErrMalformedHash)
	}

	return params, salt, key, nil
}
