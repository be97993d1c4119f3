package geocoder

import (
  "testing"

  "github.com/stretchr/testify/assert"
)

func TestDetectZone(t *testing.T) {
  t.Parallel()

  tests := []struct {
    name   string
    point  Point
    zone   string
    branch int64
  }{
    {
      name:   "волгарь",
      point:  Point{Lat: 53.13, Lng: 50.10},
      zone:   "волгарь",
      branch: 1783965,
    },
    {
      name:   "гагарина",
      point:  Point{Lat: 53.21, Lng: 50.22},
      zone:   "гагарина",
      branch: 1783963,
    },
    {
      name:   "офис routes to гагарина branch",
      point:  Point{Lat: 53.24, Lng: 50.40},
      zone:   "офис",
      branch: 1783963,
    },
    {
      name:   "новая самара",
      point:  Point{Lat: 53.33, Lng: 50.30},
      zone:   "новая самара",
      branch: 1804061,
    },
  }

  for _, tt := range tests {
    tt := tt

    t.Run(tt.name, func(t *testing.T) {
      t.Parallel()

      zone, branch, found := DetectZone(tt.point)
      assert.True(t, found)
      assert.Equal(t, tt.zone, zone)
      assert.Equal(t, tt.branch, branch)
    })
  }
}

func TestDetectZoneOutside(t *testing.T) {
  t.Parallel()

  // Moscow is well outside every zone.
  _, _, found := DetectZone(Point{Lat: 55.75, Lng: 37.62})
  assert.False(t, found)
}

func TestPointInPolygonSquare(t *testing.T) {
  t.Parallel()

  square := []Point{{0, 0}, {0, 10}, {10, 10}, {10, 0}}

  assert.True(t, pointInPolygon(Point{5, 5}, square))
  assert.False(t, pointInPolygon(Point{15, 5}, square))
  assert.False(t, pointInPolygon(Point{-1, -1}, square))
}
