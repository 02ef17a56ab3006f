package vector

// DistanceMetric identifies how the underlying store measures distance.
// Distance-to-similarity conversion depends on it.
type DistanceMetric string

const (
	MetricCosine DistanceMetric = "cosine"
	MetricL2     DistanceMetric = "l2"
)

// NormalizeDistance converts a raw store distance to a [0,1] similarity
// score, 1 meaning identical. Cosine distance ranges over [0,2]; L2 is
// unbounded and mapped through 1/(1+d).
func NormalizeDistance(metric DistanceMetric, distance float64) float64 {
	var sim float64
	switch metric {
	case MetricL2:
		sim = 1.0 / (1.0 + distance)
	default: // cosine
		sim = (2.0 - distance) / 2.0
	}

	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
