package block

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

func TestPlanCoversImageExactly(t *testing.T) {
	sizes := [][2]int{{1, 1}, {7, 5}, {16, 16}, {33, 17}, {100, 3}, {3, 100}}
	for _, shape := range []Shape{Square, Strip} {
		for _, dims := range sizes {
			for _, s := range []int{1, 2, 4, 5, 16, 64} {
				w, h := dims[0], dims[1]
				t.Run(fmt.Sprintf("%v/%dx%d/%d", shape, w, h, s), func(t *testing.T) {
					rects, err := Plan(w, h, Policy{Shape: shape, Size: s})
					require.NoError(t, err)

					covered := make([]int, w*h)
					area := 0
					for _, r := range rects {
						require.True(t, r.Within(w, h), "block %v outside %dx%d", r, w, h)
						area += r.Area()
						for y := r.Y; y < r.Y+r.H; y++ {
							for x := r.X; x < r.X+r.W; x++ {
								covered[y*w+x]++
							}
						}
					}
					assert.Equal(t, w*h, area)
					for i, c := range covered {
						require.Equal(t, 1, c, "pixel %d covered %d times", i, c)
					}
				})
			}
		}
	}
}

func TestPlanOrderAndEdges(t *testing.T) {
	rects, err := Plan(5, 3, Policy{Shape: Square, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []rasterio.Rect{
		{X: 0, Y: 0, W: 2, H: 2}, {X: 2, Y: 0, W: 2, H: 2}, {X: 4, Y: 0, W: 1, H: 2},
		{X: 0, Y: 2, W: 2, H: 1}, {X: 2, Y: 2, W: 2, H: 1}, {X: 4, Y: 2, W: 1, H: 1},
	}, rects)

	strips, err := Plan(5, 3, Policy{Shape: Strip, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []rasterio.Rect{{W: 5, H: 2}, {Y: 2, W: 5, H: 1}}, strips)
}

func TestPlanDeterministic(t *testing.T) {
	a, err := Plan(123, 77, Policy{Size: 10})
	require.NoError(t, err)
	b, err := Plan(123, 77, Policy{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPlanInvalid(t *testing.T) {
	_, err := Plan(0, 10, Policy{Size: 4})
	assert.Error(t, err)
	_, err = Plan(10, 10, Policy{Size: 0})
	assert.Error(t, err)
}

func TestPolicyDims(t *testing.T) {
	w, h := Policy{Shape: Square, Size: 4}.Dims(10, 10)
	assert.Equal(t, [2]int{4, 4}, [2]int{w, h})
	w, h = Policy{Shape: Square, Size: 4}.Dims(3, 2)
	assert.Equal(t, [2]int{3, 2}, [2]int{w, h})
	w, h = Policy{Shape: Strip, Size: 4}.Dims(10, 10)
	assert.Equal(t, [2]int{10, 4}, [2]int{w, h})

	s, err := ParseShape("Strip")
	require.NoError(t, err)
	assert.Equal(t, Strip, s)
	_, err = ParseShape("hexagon")
	assert.Error(t, err)
}
