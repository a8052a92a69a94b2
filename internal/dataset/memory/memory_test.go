package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmpm/internal/core"
	"pmpm/internal/dataset"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New(core.Dataset{Name: "b"}, core.Dataset{Name: "a"})

	names, err := s.Datasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	_, err = s.Snapshot(ctx, "missing")
	assert.ErrorIs(t, err, dataset.ErrDatasetNotFound)

	v, err := s.ReplaceDataset(ctx, core.Dataset{Name: "a", Columns: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.Equal(t, int64(2), s.Version("a"))

	ds, err := s.Snapshot(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ds.Columns)

	_, err = s.ReplaceDataset(ctx, core.Dataset{})
	assert.Error(t, err)
}
