// Copyright 2025 James Ross
package correlation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSetThenGetReturnsStoredID(t *testing.T) {
	c := New()
	job := uuid.New()
	corr := uuid.New()

	c.Set(job, corr)
	require.Equal(t, corr, c.Get(job))
}

func TestGetMintsFreshIDOnMiss(t *testing.T) {
	c := New()
	job := uuid.New()

	got := c.Get(job)
	require.NotEqual(t, uuid.Nil, got)
	// Second lookup must be stable, not mint again.
	require.Equal(t, got, c.Get(job))
}

func TestForgetRemovesEntry(t *testing.T) {
	c := New()
	job := uuid.New()
	corr := uuid.New()
	c.Set(job, corr)
	c.Forget(job)

	got := c.Get(job)
	require.NotEqual(t, corr, got)
}
