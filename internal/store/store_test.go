package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrNotFoundMessage(t *testing.T) {
	assert.EqualError(t, ErrNotFound, "entity not found")
}

func TestErrNotFoundIsComparable(t *testing.T) {
	var err error = ErrNotFound
	assert.ErrorIs(t, err, ErrNotFound)
}
