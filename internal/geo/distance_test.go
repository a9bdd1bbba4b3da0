package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceCoincidentPoints(t *testing.T) {
	assert.Zero(t, Distance(-23.55, -46.63, -23.55, -46.63))
}

func TestDistanceSymmetric(t *testing.T) {
	d1 := Distance(-23.55, -46.63, -22.90, -43.17)
	d2 := Distance(-22.90, -43.17, -23.55, -46.63)
	assert.InDelta(t, d1, d2, 1e-9)
}

func TestDistanceOneDegreeLongitudeAtEquator(t *testing.T) {
	// One degree of longitude on the equator is about 111.19 km for R=6371.
	d := Distance(0, 0, 0, 1)
	assert.InDelta(t, 111.19, d, 0.1)
}

func TestDistanceSaoPauloRio(t *testing.T) {
	// Roughly 360 km between the city centers.
	d := Distance(-23.5505, -46.6333, -22.9068, -43.1729)
	assert.InDelta(t, 360, d, 10)
}
