package mesh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hschendel/stl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoFacets = `solid residual
  facet normal 0 0 -1
    outer loop
      vertex 0 0 0
      vertex 10 0 0
      vertex 10 10 0
    endloop
  endfacet
  facet normal 0 0 1
    outer loop
      vertex 0 0 5
      vertex 10 10 5
      vertex 0 10 5
    endloop
  endfacet
endsolid residual
`

func TestInspect_ASCII(t *testing.T) {
	path := filepath.Join(t.TempDir(), "residual.stl")
	require.NoError(t, os.WriteFile(path, []byte(twoFacets), 0644))

	s, err := Inspect(path)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Triangles)
	assert.False(t, s.Empty())
	assert.Equal(t, [3]float64{0, 0, 0}, s.Min)
	assert.Equal(t, [3]float64{10, 10, 5}, s.Max)
	assert.Equal(t, [3]float64{10, 10, 5}, s.Size())
}

func TestInspect_MissingFile(t *testing.T) {
	s, err := Inspect(filepath.Join(t.TempDir(), "absent.stl"))
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestInspect_ZeroLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.stl")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	s, err := Inspect(path)
	require.NoError(t, err)
	assert.True(t, s.Empty())
	assert.Equal(t, [3]float64{}, s.Size())
}

func TestSummarize(t *testing.T) {
	s := summarize([]stl.Triangle{
		{Vertices: [3]stl.Vec3{{-1, 2, 3}, {4, -5, 6}, {0, 0, -7}}},
	})
	assert.Equal(t, 1, s.Triangles)
	assert.Equal(t, [3]float64{-1, -5, -7}, s.Min)
	assert.Equal(t, [3]float64{4, 2, 6}, s.Max)
}

func TestSummaryLogValue(t *testing.T) {
	assert.Equal(t, "[triangles=0]", Summary{}.LogValue().String())

	s := Summary{Triangles: 1, Max: [3]float64{1, 2, 3}}
	assert.Contains(t, s.LogValue().String(), "max=[1 2 3]")
}
