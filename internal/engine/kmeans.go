package engine

// Minimal fixed-iteration 2-means clustering over 2D points. Deterministic:
// centroids are seeded from the extreme points along the first dimension, so
// identical input always yields identical assignments. Small enough that a
// numerical library would be overkill.

type point2 struct {
	a float64
	b float64
}

const kmeansIterations = 20

// kmeans2 partitions points into two clusters and returns, per point, the
// cluster index (0 or 1). Callers decide which cluster means what.
func kmeans2(points []point2) []int {
	assignments := make([]int, len(points))
	if len(points) < 2 {
		return assignments
	}

	// Seed with the extremes of the first feature
	lo, hi := 0, 0
	for i, p := range points {
		if p.a < points[lo].a {
			lo = i
		}
		if p.a > points[hi].a {
			hi = i
		}
	}
	if lo == hi {
		// All first-feature values equal; fall back to the second feature
		for i, p := range points {
			if p.b < points[lo].b {
				lo = i
			}
			if p.b > points[hi].b {
				hi = i
			}
		}
		if lo == hi {
			return assignments
		}
	}

	c0, c1 := points[lo], points[hi]

	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, p := range points {
			cluster := 0
			if sqDist(p, c1) < sqDist(p, c0) {
				cluster = 1
			}
			if assignments[i] != cluster {
				assignments[i] = cluster
				changed = true
			}
		}

		if !changed && iter > 0 {
			break
		}

		var sum0, sum1 point2
		var n0, n1 int
		for i, p := range points {
			if assignments[i] == 0 {
				sum0.a += p.a
				sum0.b += p.b
				n0++
			} else {
				sum1.a += p.a
				sum1.b += p.b
				n1++
			}
		}

		// An empty cluster keeps its previous centroid
		if n0 > 0 {
			c0 = point2{sum0.a / float64(n0), sum0.b / float64(n0)}
		}
		if n1 > 0 {
			c1 = point2{sum1.a / float64(n1), sum1.b / float64(n1)}
		}
	}

	return assignments
}

func sqDist(p, q point2) float64 {
	da := p.a - q.a
	db := p.b - q.b
	return da*da + db*db
}
