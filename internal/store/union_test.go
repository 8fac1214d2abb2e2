package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUnionIDs(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	assert.Equal(t, []uuid.UUID{a, b, c}, UnionIDs([]uuid.UUID{a, b}, []uuid.UUID{b, c}))
	assert.Equal(t, []uuid.UUID{a}, UnionIDs([]uuid.UUID{a, a}, nil))
	assert.Equal(t, []uuid.UUID{}, UnionIDs(nil, nil))
}
