/*
Copyright © 2024 the SnowLayer authors.
This file is part of SnowLayer.

SnowLayer is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SnowLayer is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SnowLayer.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package kmeans partitions points into k clusters using Lloyd's algorithm
// with k-means++ seeding. Results are reproducible for a given seed.
package kmeans

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

const (
	// MaxIterations is the maximum number of Lloyd iterations.
	MaxIterations = 300

	// Tolerance is the convergence threshold on the squared movement of
	// the centers, relative to the mean variance of the features.
	Tolerance = 1e-4
)

// Result holds the outcome of a clustering.
type Result struct {
	// Labels holds the cluster index of each point.
	Labels []int

	// Centers holds the coordinates of each cluster center.
	Centers [][]float64

	// Inertia is the sum of squared distances of the points to
	// their cluster centers.
	Inertia float64

	// Iterations is the number of Lloyd iterations performed.
	Iterations int
}

// Cluster partitions points into k clusters. All points must have the
// same number of dimensions. If there are no more points than clusters,
// each point is placed in its own cluster.
func Cluster(points [][]float64, k int, seed uint64) (*Result, error) {
	n := len(points)
	if k < 1 {
		return nil, fmt.Errorf("kmeans: invalid number of clusters %d", k)
	}
	if n == 0 {
		return nil, fmt.Errorf("kmeans: no points to cluster")
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("kmeans: point %d has %d dimensions; want %d", i, len(p), dim)
		}
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("kmeans: point %d has invalid coordinate %g", i, v)
			}
		}
	}

	if n <= k {
		r := &Result{Labels: make([]int, n), Centers: make([][]float64, n)}
		for i, p := range points {
			r.Labels[i] = i
			r.Centers[i] = append([]float64(nil), p...)
		}
		return r, nil
	}

	rnd := rand.New(rand.NewSource(seed))
	centers := seedCenters(points, k, rnd)
	tol := Tolerance * meanVariance(points)

	labels := make([]int, n)
	prev := make([]int, n)
	for i := range prev {
		prev[i] = -1
	}
	r := &Result{}
	for r.Iterations < MaxIterations {
		r.Iterations++
		assign(points, centers, labels)
		next := update(points, centers, labels)

		var shift float64
		for c := range centers {
			shift += sqDist(centers[c], next[c])
		}
		centers = next
		if equal(labels, prev) {
			break
		}
		if shift <= tol {
			break
		}
		copy(prev, labels)
	}
	r.Inertia = assign(points, centers, labels)
	r.Labels = labels
	r.Centers = centers
	return r, nil
}

// seedCenters chooses k initial centers with greedy k-means++: each new
// center is the best of several candidates sampled with probability
// proportional to their squared distance to the nearest existing center.
func seedCenters(points [][]float64, k int, rnd *rand.Rand) [][]float64 {
	n := len(points)
	trials := 2 + int(math.Log(float64(k)))

	centers := make([][]float64, 0, k)
	centers = append(centers, append([]float64(nil), points[rnd.Intn(n)]...))

	closest := make([]float64, n)
	for i, p := range points {
		closest[i] = sqDist(p, centers[0])
	}
	potential := floats.Sum(closest)

	cumulative := make([]float64, n)
	candidate := make([]float64, n)
	best := make([]float64, n)
	for len(centers) < k {
		floats.CumSum(cumulative, closest)
		bestIndex, bestPotential := -1, math.Inf(1)
		for t := 0; t < trials; t++ {
			idx := searchSorted(cumulative, rnd.Float64()*potential)
			var pot float64
			for i, p := range points {
				candidate[i] = math.Min(closest[i], sqDist(p, points[idx]))
				pot += candidate[i]
			}
			if pot < bestPotential {
				bestIndex, bestPotential = idx, pot
				copy(best, candidate)
			}
		}
		centers = append(centers, append([]float64(nil), points[bestIndex]...))
		copy(closest, best)
		potential = bestPotential
	}
	return centers
}

// searchSorted returns the first index of the ascending slice s whose
// value is >= v, limited to the last index.
func searchSorted(s []float64, v float64) int {
	lo, hi := 0, len(s)
	for lo < hi {
		mid := (lo + hi) / 2
		if s[mid] < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= len(s) {
		return len(s) - 1
	}
	return lo
}

// assign sets each label to the index of the nearest center and returns
// the inertia.
func assign(points, centers [][]float64, labels []int) float64 {
	var inertia float64
	for i, p := range points {
		best, bestDist := 0, math.Inf(1)
		for c, center := range centers {
			if d := sqDist(p, center); d < bestDist {
				best, bestDist = c, d
			}
		}
		labels[i] = best
		inertia += bestDist
	}
	return inertia
}

// update returns the mean of the points in each cluster. Empty clusters
// keep their previous center.
func update(points, centers [][]float64, labels []int) [][]float64 {
	dim := len(centers[0])
	next := make([][]float64, len(centers))
	counts := make([]float64, len(centers))
	for c := range next {
		next[c] = make([]float64, dim)
	}
	for i, p := range points {
		floats.Add(next[labels[i]], p)
		counts[labels[i]]++
	}
	for c := range next {
		if counts[c] == 0 {
			copy(next[c], centers[c])
			continue
		}
		floats.Scale(1/counts[c], next[c])
	}
	return next
}

// meanVariance returns the population variance of each dimension of
// points, averaged across dimensions.
func meanVariance(points [][]float64) float64 {
	dim := len(points[0])
	n := float64(len(points))
	var total float64
	col := make([]float64, len(points))
	for d := 0; d < dim; d++ {
		for i, p := range points {
			col[i] = p[d]
		}
		mean := floats.Sum(col) / n
		var ss float64
		for _, v := range col {
			ss += (v - mean) * (v - mean)
		}
		total += ss / n
	}
	return total / float64(dim)
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func equal(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
