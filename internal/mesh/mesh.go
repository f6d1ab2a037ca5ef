// Package mesh inspects rendered STL files.
//
// The harness never compares meshes triangle by triangle; equivalence is
// decided volumetrically by the engine. This package only summarizes a mesh
// so residual geometry can be located from the logs.
package mesh

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/hschendel/stl"
)

// Summary describes the extent of a mesh.
type Summary struct {
	Triangles int
	Min       [3]float64
	Max       [3]float64
}

// Empty reports whether the mesh has no triangles.
func (s Summary) Empty() bool {
	return s.Triangles == 0
}

// Size returns the bounding box edge lengths.
func (s Summary) Size() [3]float64 {
	if s.Empty() {
		return [3]float64{}
	}
	return [3]float64{s.Max[0] - s.Min[0], s.Max[1] - s.Min[1], s.Max[2] - s.Min[2]}
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	if s.Empty() {
		return slog.GroupValue(slog.Int("triangles", 0))
	}
	return slog.GroupValue(
		slog.Int("triangles", s.Triangles),
		slog.String("min", formatVec(s.Min)),
		slog.String("max", formatVec(s.Max)),
	)
}

// Inspect reads an ASCII or binary STL file and summarizes it.
// A missing or zero-length file is an empty mesh.
func Inspect(path string) (Summary, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, fmt.Errorf("inspect mesh %s: %w", path, err)
	}
	if info.Size() == 0 {
		return Summary{}, nil
	}

	solid, err := stl.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("inspect mesh %s: %w", path, err)
	}
	return summarize(solid.Triangles), nil
}

func summarize(triangles []stl.Triangle) Summary {
	s := Summary{Triangles: len(triangles)}
	if len(triangles) == 0 {
		return s
	}
	for i := 0; i < 3; i++ {
		s.Min[i] = math.Inf(1)
		s.Max[i] = math.Inf(-1)
	}
	for _, tri := range triangles {
		for _, v := range tri.Vertices {
			for i := 0; i < 3; i++ {
				c := float64(v[i])
				s.Min[i] = math.Min(s.Min[i], c)
				s.Max[i] = math.Max(s.Max[i], c)
			}
		}
	}
	return s
}

func formatVec(v [3]float64) string {
	return fmt.Sprintf("[%g %g %g]", v[0], v[1], v[2])
}
