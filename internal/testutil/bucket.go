package testutil

import (
	"ft-go/internal/bucket"
	"ft-go/internal/ft"
)

// NewTestBucket creates an in-memory bucket whose signed URLs are issued
// against the given clock, so tests can expire tokens by advancing it.
func NewTestBucket(clock ft.Clock) *bucket.MemoryBucket {
	tokens := ft.NewTokenIssuer([]byte("test-secret"), clock)
	return bucket.NewMemoryBucket("http://localhost:4000", 0, tokens, clock)
}
