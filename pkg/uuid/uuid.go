// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

// Package uuid wraps google/uuid to generate time-ordered UUIDv7 values.
//
// # Why UUIDv7?
//
// Every CareLink table keys on it. Because it is time-sortable it keeps
// PostgreSQL b-tree inserts append-mostly, avoiding the index fragmentation
// caused by random UUIDv4 keys.
package uuid

import "github.com/google/uuid"

// New generates a new UUIDv7 string.
//
// It panics only if the OS random source is unavailable, which is an
// unrecoverable system-level failure.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("uuid: failed to generate UUID: " + err.Error())
	}

	return id.String()
}

// IsValid reports whether the given string parses as a UUID.
func IsValid(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}
