package teb

import (
	"testing"

	"go.viam.com/test"

	"github.com/golang/geo/r2"
)

func TestCellIndexBounds(t *testing.T) {
	t.Parallel()
	g := &OccupancyGrid{Width: 10, Height: 10, Resolution: 1.0}

	test.That(t, g.CellIndex(r2.Point{X: 5, Y: 5}), test.ShouldEqual, 55)
	test.That(t, g.CellIndex(r2.Point{X: -1, Y: 0}), test.ShouldEqual, -1)
	test.That(t, g.CellIndex(r2.Point{X: 0, Y: 20}), test.ShouldEqual, -1)
}

func TestCellIndexOnNilOrZeroResolutionGrid(t *testing.T) {
	t.Parallel()
	var g *OccupancyGrid
	test.That(t, g.CellIndex(r2.Point{X: 0, Y: 0}), test.ShouldEqual, -1)

	zeroRes := &OccupancyGrid{Width: 10, Height: 10}
	test.That(t, zeroRes.CellIndex(r2.Point{X: 0, Y: 0}), test.ShouldEqual, -1)
}

func TestIsStaticClassifiesOnAnySingleArmOccupied(t *testing.T) {
	t.Parallel()
	width := 21
	data := make([]int8, width*width)
	center := (width/2)*width + width/2

	g := &OccupancyGrid{Width: width, Height: width, Resolution: 1.0, Data: data}
	test.That(t, g.IsStatic(center), test.ShouldBeFalse)

	// Occupy the left arm only: one occupied arm is enough to classify static.
	data[center-3] = 1
	test.That(t, g.IsStatic(center), test.ShouldBeTrue)
}

func TestIsStaticOnNilGrid(t *testing.T) {
	t.Parallel()
	var g *OccupancyGrid
	test.That(t, g.IsStatic(0), test.ShouldBeFalse)
}

func TestIsStaticOutOfRangeIndexIsUnoccupied(t *testing.T) {
	t.Parallel()
	g := &OccupancyGrid{Width: 5, Height: 5, Resolution: 1.0, Data: make([]int8, 25)}
	test.That(t, g.IsStatic(-1), test.ShouldBeFalse)
	test.That(t, g.IsStatic(1000), test.ShouldBeFalse)
}
