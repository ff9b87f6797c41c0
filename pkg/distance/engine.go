package distance

import (
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/kdtree"
)

const (
	// DefaultParallelThreshold is the cross-pair count below which Extremes
	// stays on a single goroutine; fanning out costs more than the scan
	// itself for small inputs.
	DefaultParallelThreshold = 1 << 20

	// DefaultTreeThreshold is the cross-pair count above which Minimum
	// builds a k-d tree; below it, tree construction costs more than the
	// plain scan.
	DefaultTreeThreshold = 1 << 16

	// progressChunk is the number of first-set rows scanned between
	// progress callbacks on the parallel path.
	progressChunk = 1024
)

// Params holds the tuning knobs for an Engine. The zero value of every
// field selects a sensible default, so Params{} is a valid configuration.
type Params struct {
	// Workers is the number of goroutines used for large computations.
	// Zero or negative selects runtime.NumCPU().
	Workers int

	// ParallelThreshold is the cross-pair count above which Extremes
	// switches to the partitioned parallel reduction. Zero selects
	// DefaultParallelThreshold.
	ParallelThreshold int

	// TreeThreshold is the cross-pair count above which Minimum switches
	// to the k-d tree path. Zero selects DefaultTreeThreshold.
	TreeThreshold int
}

// ProgressFunc receives the number of completed and total first-set rows
// while a large computation runs.
type ProgressFunc func(completed, total int)

// Engine computes distance extremes and related measurements between point
// sets. Construct one with NewEngine; apart from its parameters it holds no
// state, so a single Engine may be shared across goroutines.
type Engine struct {
	workers           int
	parallelThreshold int64
	treeThreshold     int64
	progress          ProgressFunc
}

// NewEngine returns an Engine with the given parameters, substituting
// defaults for zero fields.
func NewEngine(params Params) *Engine {
	workers := params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	parallelThreshold := int64(params.ParallelThreshold)
	if parallelThreshold <= 0 {
		parallelThreshold = DefaultParallelThreshold
	}
	treeThreshold := int64(params.TreeThreshold)
	if treeThreshold <= 0 {
		treeThreshold = DefaultTreeThreshold
	}
	return &Engine{
		workers:           workers,
		parallelThreshold: parallelThreshold,
		treeThreshold:     treeThreshold,
	}
}

// SetProgress installs a callback invoked while the parallel Extremes path
// runs. Calls are serialized and block the reporting worker, so the
// callback must be fast. Install it before handing the Engine to other
// goroutines; a nil callback disables reporting.
func (e *Engine) SetProgress(fn ProgressFunc) {
	e.progress = fn
}

// Extremes computes the global minimum and maximum Euclidean distance over
// all pairs with one point from a and one from b.
//
// Both sets must be non-empty and share one dimensionality. The reduction
// is exact: distances accumulate as squared values with a single square
// root at the end, values are compared without tolerance, and the parallel
// path partitions rows of a across workers with private partials merged
// min-of-mins and max-of-maxes, so sequential and parallel runs return
// identical results for identical inputs.
func (e *Engine) Extremes(a, b *Set) (Result, error) {
	if err := validatePair(a, b); err != nil {
		return Result{}, err
	}

	pairs := int64(a.n) * int64(b.n)
	if pairs <= e.parallelThreshold || e.workers == 1 {
		return extremesRange(a, b, 0, a.n).result(), nil
	}
	return e.extremesParallel(a, b), nil
}

// Minimum computes only the smallest cross-pair distance, the original
// measurement question: how close do the two structures get. Large inputs
// are accelerated with an exact k-d tree, built over b and queried once per
// point of a with the queries fanned out across workers. The acceleration
// changes the cost, never the value: Minimum(a, b) equals
// Extremes(a, b).Min for every input.
func (e *Engine) Minimum(a, b *Set) (float64, error) {
	if err := validatePair(a, b); err != nil {
		return 0, err
	}

	if int64(a.n)*int64(b.n) <= e.treeThreshold {
		return math.Sqrt(extremesRange(a, b, 0, a.n).minSq), nil
	}

	minSq := math.Inf(1)
	for _, dsq := range e.nearestSquared(a, b) {
		if dsq < minSq {
			minSq = dsq
		}
	}
	return math.Sqrt(minSq), nil
}

// Extremes computes distance extremes between a and b with a
// default-parameter engine.
func Extremes(a, b *Set) (Result, error) {
	return NewEngine(Params{}).Extremes(a, b)
}

// validatePair enforces the engine's input contract: both sets non-empty,
// one shared dimensionality.
func validatePair(a, b *Set) error {
	if a == nil || a.n == 0 {
		return NewEmptyPointSetError("a")
	}
	if b == nil || b.n == 0 {
		return NewEmptyPointSetError("b")
	}
	if a.dims != b.dims {
		return NewDimensionMismatchError(a.dims, b.dims)
	}
	return nil
}

// partial is one worker's private reduction state, in squared distances.
type partial struct {
	minSq, maxSq float64
	minA, minB   int
	maxA, maxB   int
}

func newPartial() partial {
	return partial{
		minSq: math.Inf(1),
		maxSq: math.Inf(-1),
		minA:  -1, minB: -1,
		maxA: -1, maxB: -1,
	}
}

// merge folds o into p. Comparisons are strict, so when partials tie the
// earlier one wins; merging in row order therefore reports the same
// achieving pairs as a single sequential scan.
func (p *partial) merge(o partial) {
	if o.minSq < p.minSq {
		p.minSq, p.minA, p.minB = o.minSq, o.minA, o.minB
	}
	if o.maxSq > p.maxSq {
		p.maxSq, p.maxA, p.maxB = o.maxSq, o.maxA, o.maxB
	}
}

// result converts the squared reduction state into a Result.
func (p partial) result() Result {
	return Result{
		Min:  math.Sqrt(p.minSq),
		Max:  math.Sqrt(p.maxSq),
		MinA: p.minA, MinB: p.minB,
		MaxA: p.maxA, MaxB: p.maxB,
	}
}

// extremesRange scans rows [lo, hi) of a against all of b and returns the
// reduction over that block. The 3-dimensional case, which is all this
// system produces, runs an unrolled kernel; other dimensionalities take
// the generic loop.
func extremesRange(a, b *Set, lo, hi int) partial {
	p := newPartial()

	if a.dims == 3 {
		for i := lo; i < hi; i++ {
			ax, ay, az := a.data[i*3], a.data[i*3+1], a.data[i*3+2]
			for j := 0; j < b.n; j++ {
				dx := ax - b.data[j*3]
				dy := ay - b.data[j*3+1]
				dz := az - b.data[j*3+2]
				dsq := dx*dx + dy*dy + dz*dz
				if dsq < p.minSq {
					p.minSq, p.minA, p.minB = dsq, i, j
				}
				if dsq > p.maxSq {
					p.maxSq, p.maxA, p.maxB = dsq, i, j
				}
			}
		}
		return p
	}

	for i := lo; i < hi; i++ {
		pa := a.At(i)
		for j := 0; j < b.n; j++ {
			pb := b.At(j)
			var dsq float64
			for d := range pa {
				diff := pa[d] - pb[d]
				dsq += diff * diff
			}
			if dsq < p.minSq {
				p.minSq, p.minA, p.minB = dsq, i, j
			}
			if dsq > p.maxSq {
				p.maxSq, p.maxA, p.maxB = dsq, i, j
			}
		}
	}
	return p
}

// extremesParallel partitions the rows of a across workers. Each worker
// reduces its own block into a private partial; the partials are merged in
// row order once every worker has finished. The only shared data while
// workers run are the two read-only input sets.
func (e *Engine) extremesParallel(a, b *Set) Result {
	workers := e.workers
	if workers > a.n {
		workers = a.n
	}
	rowsPerWorker := (a.n + workers - 1) / workers

	partials := make([]partial, workers)
	for w := range partials {
		partials[w] = newPartial()
	}

	var wg sync.WaitGroup
	var progressMu sync.Mutex
	completed := 0

	for w := 0; w < workers; w++ {
		lo := w * rowsPerWorker
		hi := lo + rowsPerWorker
		if hi > a.n {
			hi = a.n
		}
		if lo >= hi {
			continue
		}

		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()

			if e.progress == nil {
				partials[w] = extremesRange(a, b, lo, hi)
				return
			}

			// Scan in chunks so progress can be reported without
			// per-row locking.
			p := newPartial()
			for start := lo; start < hi; start += progressChunk {
				end := start + progressChunk
				if end > hi {
					end = hi
				}
				p.merge(extremesRange(a, b, start, end))

				progressMu.Lock()
				completed += end - start
				e.progress(completed, a.n)
				progressMu.Unlock()
			}
			partials[w] = p
		}(w, lo, hi)
	}

	wg.Wait()

	total := newPartial()
	for _, p := range partials {
		total.merge(p)
	}
	return total.result()
}

// nearestSquared returns, for every point of from, the squared distance to
// its nearest neighbor in to. Queries run against a shared read-only k-d
// tree and are partitioned across workers; each worker writes a disjoint
// region of the output.
func (e *Engine) nearestSquared(from, to *Set) []float64 {
	out := make([]float64, from.n)
	tree := kdtree.New(newTreePoints(to), true)

	workers := e.workers
	if workers > from.n {
		workers = from.n
	}
	rowsPerWorker := (from.n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * rowsPerWorker
		hi := lo + rowsPerWorker
		if hi > from.n {
			hi = from.n
		}
		if lo >= hi {
			continue
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				_, dsq := tree.Nearest(treePoint(from.At(i)))
				out[i] = dsq
			}
		}(lo, hi)
	}
	wg.Wait()

	return out
}
