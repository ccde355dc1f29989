package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   uint
	Kind string
}

func TestNewTestDBIsIsolatedPerCall(t *testing.T) {
	a := NewTestDB(t, &widget{})
	b := NewTestDB(t, &widget{})

	require.NoError(t, a.Create(&widget{Kind: "bolt"}).Error)
	require.EqualValues(t, 1, Count(t, a, &widget{}))
	require.Zero(t, Count(t, b, &widget{}))
}

func TestCountAppliesWhere(t *testing.T) {
	db := NewTestDB(t, &widget{})
	require.NoError(t, db.Create(&[]widget{{Kind: "bolt"}, {Kind: "nut"}, {Kind: "bolt"}}).Error)

	require.EqualValues(t, 3, Count(t, db, &widget{}))
	require.EqualValues(t, 2, Count(t, db, &widget{}, "kind = ?", "bolt"))
	require.Zero(t, Count(t, db, &widget{}, "kind = ?", "washer"))
}
