// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

package sec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/carelink/internal/platform/sec"
)

/*
TestHasher_RoundTrip verifies that a hashed password verifies against itself
and rejects every other input.
*/
func TestHasher_RoundTrip(t *testing.T) {
	hasher := sec.NewHasher()

	hash, err := hasher.Hash("Abcdef1!")
	require.NoError(t, err)

	// 1. PHC format with embedded parameters
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	// 2. Correct password verifies
	match, err := hasher.Verify("Abcdef1!", hash)
	require.NoError(t, err)
	assert.True(t, match)

	// 3. Any other password fails
	match, err = hasher.Verify("Abcdef1?", hash)
	require.NoError(t, err)
	assert.False(t, match)
}

/*
TestHasher_UniqueSalts verifies that hashing the same password twice yields
different encodings.
*/
func TestHasher_UniqueSalts(t *testing.T) {
	hasher := sec.NewHasher()

	first, err := hasher.Hash("Correct#Horse1")
	require.NoError(t, err)
	second, err := hasher.Hash("Correct#Horse1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	// Both still verify independently
	match, err := hasher.Verify("Correct#Horse1", first)
	require.NoError(t, err)
	assert.True(t, match)
	match, err = hasher.Verify("Correct#Horse1", second)
	require.NoError(t, err)
	assert.True(t, match)
}

/*
TestHasher_MalformedHash verifies that unparsable stored hashes surface
ErrMalformedHash rather than a silent mismatch.
*/
func TestHasher_MalformedHash(t *testing.T) {
	hasher := sec.NewHasher()

	cases := []struct {
		name string
		hash string
	}{
		{name: "empty", hash: ""},
		{name: "not_phc", hash: "plainly-not-a-hash"},
		{name: "wrong_algorithm", hash: "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
		{name: "truncated", hash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA"},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := hasher.Verify("whatever", testCase.hash)
			assert.ErrorIs(t, err, sec.ErrMalformedHash)
		})
	}
}
