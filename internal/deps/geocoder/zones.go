package geocoder

type Point struct {
  Lat float64
  Lng float64
}

type zone struct {
  Name         string
  BranchEnumId int64
  Polygon      []Point
}

// Delivery zones of the shop's branches, drawn by hand over the city
// map. The office zone is served by the Gagarina branch.
var deliveryZones = []zone{
  {
    Name:         "волгарь",
    BranchEnumId: 1783965,
    Polygon: []Point{
      {53.210638, 50.116733},
      {53.199608, 50.130994},
      {53.199893, 50.131768},
      {53.191756, 50.142221},
      {53.185773, 50.146686},
      {53.180631, 50.158019},
      {53.170265, 50.148065},
      {53.167572, 50.199779},
      {53.124124, 50.201410},
      {53.089610, 50.175535},
      {53.088532, 50.154286},
      {53.097931, 50.072598},
      {53.095119, 50.027259},
      {53.097196, 50.021798},
      {53.103339, 50.030215},
      {53.128907, 50.015585},
      {53.133776, 50.001750},
      {53.124374, 49.974612},
      {53.125592, 49.962977},
      {53.134398, 49.966374},
      {53.142628, 49.985087},
      {53.146349, 49.981268},
      {53.153985, 49.978937},
      {53.210785, 50.116563},
    },
  },
  {
    Name:         "гагарина",
    BranchEnumId: 1783963,
    Polygon: []Point{
      {53.281805, 50.187939},
      {53.269917, 50.221532},
      {53.263032, 50.235203},
      {53.257053, 50.245683},
      {53.250493, 50.247636},
      {53.244821, 50.251465},
      {53.224682, 50.280117},
      {53.223210, 50.289050},
      {53.220373, 50.288809},
      {53.201078, 50.312149},
      {53.187555, 50.281952},
      {53.168020, 50.195796},
      {53.172657, 50.150414},
      {53.180983, 50.157836},
      {53.185694, 50.146954},
      {53.192065, 50.141979},
      {53.199927, 50.131908},
      {53.199717, 50.130926},
      {53.211995, 50.115185},
      {53.281838, 50.187805},
    },
  },
  {
    Name:         "офис",
    BranchEnumId: 1783963,
    Polygon: []Point{
      {53.220567, 50.289242},
      {53.253195, 50.367179},
      {53.267538, 50.333363},
      {53.291595, 50.333352},
      {53.288164, 50.352716},
      {53.283958, 50.352766},
      {53.285163, 50.375691},
      {53.289384, 50.390165},
      {53.283208, 50.402263},
      {53.284495, 50.459341},
      {53.252900, 50.475719},
      {53.233407, 50.487450},
      {53.181351, 50.335931},
      {53.220420, 50.289410},
    },
  },
  {
    Name:         "новая самара",
    BranchEnumId: 1804061,
    Polygon: []Point{
      {53.372307, 50.176981},
      {53.376795, 50.182747},
      {53.376783, 50.188482},
      {53.370222, 50.196998},
      {53.366867, 50.212789},
      {53.360664, 50.218781},
      {53.356225, 50.230003},
      {53.353185, 50.228899},
      {53.349226, 50.233231},
      {53.344928, 50.264629},
      {53.348226, 50.286181},
      {53.344696, 50.293054},
      {53.345119, 50.303940},
      {53.349491, 50.315491},
      {53.360619, 50.315908},
      {53.352477, 50.327423},
      {53.356408, 50.327264},
      {53.354803, 50.336386},
      {53.357984, 50.339048},
      {53.358570, 50.342615},
      {53.356305, 50.345074},
      {53.358269, 50.352176},
      {53.339987, 50.355334},
      {53.340443, 50.365928},
      {53.338755, 50.369129},
      {53.332715, 50.361703},
      {53.325456, 50.378079},
      {53.320014, 50.370292},
      {53.318814, 50.345386},
      {53.312589, 50.345386},
      {53.308468, 50.357357},
      {53.303124, 50.359161},
      {53.302296, 50.375472},
      {53.288767, 50.384052},
      {53.284372, 50.353186},
      {53.288028, 50.353720},
      {53.291126, 50.345474},
      {53.292072, 50.333523},
      {53.268084, 50.333122},
      {53.253211, 50.366790},
      {53.220462, 50.288576},
      {53.223157, 50.289251},
      {53.224532, 50.285277},
      {53.224831, 50.280203},
      {53.231092, 50.270885},
      {53.244988, 50.251701},
      {53.250634, 50.247459},
      {53.257386, 50.246271},
      {53.269815, 50.221880},
      {53.282085, 50.187943},
      {53.306696, 50.194171},
      {53.306750, 50.195355},
      {53.343850, 50.194028},
      {53.361757, 50.186755},
      {53.372082, 50.177111},
    },
  },
}

// pointInPolygon runs a ray cast along the longitude axis.
func pointInPolygon(point Point, polygon []Point) bool {
  inside := false

  for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
    xi, yi := polygon[i].Lng, polygon[i].Lat
    xj, yj := polygon[j].Lng, polygon[j].Lat

    if (yi > point.Lat) != (yj > point.Lat) &&
      point.Lng < (xj-xi)*(point.Lat-yi)/(yj-yi)+xi {
      inside = !inside
    }
  }

  return inside
}

// DetectZone returns the delivery zone containing the point, or
// false when it lies outside every zone.
func DetectZone(point Point) (string, int64, bool) {
  for _, z := range deliveryZones {
    if pointInPolygon(point, z.Polygon) {
      return z.Name, z.BranchEnumId, true
    }
  }
  return "", 0, false
}
