package repository

import "errors"

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) inside this directory.

var (
	// ErrDuplicateDigest reports a unique-constraint hit on the blob digest
	// column. It is the canonical signal that concurrent uploads raced on
	// identical content; callers treat it as "duplicate", not as a failure.
	ErrDuplicateDigest = errors.New("blob with this digest already exists")

	// ErrDuplicateName reports a unique-constraint hit on the API key label.
	ErrDuplicateName = errors.New("api key name already exists")
)
