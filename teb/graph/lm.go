package graph

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultLambdaInit    = 1e-3
	defaultLambdaUp      = 10.0
	defaultLambdaDown    = 10.0
	defaultLambdaMax     = 1e12
	finiteDiffStep       = 1e-6
)

// Initialize prepares the optimizer for a solve. It currently performs no
// work beyond validating the graph is non-empty, but exists as a named
// step (mirroring g2o's initializeOptimization()) so callers have an
// explicit point to fail fast before Optimize.
func (o *Optimizer) Initialize() error {
	if len(o.vertices) == 0 {
		return errors.New("graph: cannot initialize an empty graph")
	}
	return nil
}

// Optimize runs up to maxIters inner Levenberg-Marquardt iterations and
// returns the number actually performed. It writes optimized values back
// into the free vertices in place. A return of 0 with a nil error means no
// iteration ran: the graph has no edges, no free vertex, or maxIters <= 0.
// Planner.optimizeGraph reports every such return as
// ErrOptimizerNoIterations.
func (o *Optimizer) Optimize(maxIters int) (int, error) {
	if len(o.edges) == 0 {
		return 0, nil
	}

	freeIDs := o.freeVertexIDs()
	numParams := 0
	for _, id := range freeIDs {
		numParams += o.vertices[id].Dim
	}
	if numParams == 0 {
		// Nothing to optimize (e.g. only the two boundary poses exist);
		// still report the current chi2 so HasDiverged has something to
		// evaluate against.
		o.stats = append(o.stats, IterationStats{Chi2: o.chi2()})
		return 0, nil
	}

	lambda := defaultLambdaInit
	performed := 0

	for iter := 0; iter < maxIters; iter++ {
		residual, rows := o.stackedResidual()
		if rows == 0 {
			break
		}
		jac := o.numericJacobian(freeIDs, numParams, rows)
		weighted := o.weightResidualAndJacobian(residual, jac, rows, numParams)

		curChi2 := chiSquared(weighted.r)

		delta, ok := solveLM(weighted.j, weighted.r, numParams, lambda)
		performed++
		if !ok {
			lambda = math.Min(lambda*defaultLambdaUp, defaultLambdaMax)
			o.stats = append(o.stats, IterationStats{Chi2: curChi2, Lambda: lambda})
			continue
		}

		snapshot := o.snapshotFree(freeIDs)
		o.applyDelta(freeIDs, delta)

		newResidual, _ := o.stackedResidual()
		newChi2 := chiSquared(o.weightResidualOnly(newResidual, rows))

		if newChi2 < curChi2 || math.IsNaN(curChi2) {
			lambda = math.Max(lambda/defaultLambdaDown, 1e-12)
			o.stats = append(o.stats, IterationStats{Chi2: newChi2, Lambda: lambda})
		} else {
			o.restoreFree(freeIDs, snapshot)
			lambda = math.Min(lambda*defaultLambdaUp, defaultLambdaMax)
			o.stats = append(o.stats, IterationStats{Chi2: curChi2, Lambda: lambda})
		}
	}

	return performed, nil
}

func (o *Optimizer) freeVertexIDs() []int {
	var ids []int
	for _, id := range o.order {
		if !o.vertices[id].Fixed {
			ids = append(ids, id)
		}
	}
	return ids
}

func (o *Optimizer) snapshotFree(ids []int) [][]float64 {
	snap := make([][]float64, len(ids))
	for i, id := range ids {
		snap[i] = append([]float64(nil), o.vertices[id].Value...)
	}
	return snap
}

func (o *Optimizer) restoreFree(ids []int, snap [][]float64) {
	for i, id := range ids {
		o.vertices[id].Value = snap[i]
	}
}

func (o *Optimizer) applyDelta(ids []int, delta []float64) {
	offset := 0
	for _, id := range ids {
		v := o.vertices[id]
		for k := 0; k < v.Dim; k++ {
			v.Value[k] += delta[offset+k]
		}
		offset += v.Dim
	}
}

// stackedResidual concatenates every edge's error vector, in edge order.
func (o *Optimizer) stackedResidual() ([]float64, int) {
	var out []float64
	for _, e := range o.edges {
		out = append(out, e.evaluate(o.vertices)...)
	}
	return out, len(out)
}

func (e *Edge) evaluate(vertices map[int]*Vertex) []float64 {
	vals := make([][]float64, len(e.VertexIDs))
	for i, id := range e.VertexIDs {
		vals[i] = vertices[id].Value
	}
	return e.Err(vals)
}

// numericJacobian computes the rows x numParams Jacobian of the stacked
// residual with respect to the free vertices' scalar components via
// central finite differences. Analytic derivatives per edge type would
// avoid the 2x residual-evaluation cost per parameter; finite differences
// keep every edge's error function a pure function of (vertex values) ->
// error vector, at the cost of being the less performant choice for a
// production-scale graph.
func (o *Optimizer) numericJacobian(freeIDs []int, numParams, rows int) *mat.Dense {
	jac := mat.NewDense(rows, numParams, nil)
	col := 0
	for _, id := range freeIDs {
		v := o.vertices[id]
		for k := 0; k < v.Dim; k++ {
			orig := v.Value[k]

			v.Value[k] = orig + finiteDiffStep
			plus, _ := o.stackedResidual()

			v.Value[k] = orig - finiteDiffStep
			minus, _ := o.stackedResidual()

			v.Value[k] = orig

			for r := 0; r < rows && r < len(plus) && r < len(minus); r++ {
				jac.Set(r, col, (plus[r]-minus[r])/(2*finiteDiffStep))
			}
			col++
		}
	}
	return jac
}

type weighted struct {
	r []float64
	j *mat.Dense
}

// weightResidualAndJacobian left-multiplies the stacked residual and
// Jacobian by each edge's information matrix (its square root, since the
// objective is e^T I e = ||sqrt(I) e||^2), so the downstream normal
// equations solve an ordinary least squares problem.
func (o *Optimizer) weightResidualAndJacobian(residual []float64, jac *mat.Dense, rows, numParams int) weighted {
	wr := make([]float64, rows)
	wj := mat.NewDense(rows, numParams, nil)
	rowOffset := 0
	for _, e := range o.edges {
		dim := e.Information.SymmetricDim()
		sqrtInfo := sqrtSym(e.Information)
		for i := 0; i < dim; i++ {
			var sum float64
			for j := 0; j < dim; j++ {
				sum += sqrtInfo.At(i, j) * residual[rowOffset+j]
			}
			wr[rowOffset+i] = sum
			for c := 0; c < numParams; c++ {
				var jsum float64
				for j := 0; j < dim; j++ {
					jsum += sqrtInfo.At(i, j) * jac.At(rowOffset+j, c)
				}
				wj.Set(rowOffset+i, c, jsum)
			}
		}
		rowOffset += dim
	}
	return weighted{r: wr, j: wj}
}

func (o *Optimizer) weightResidualOnly(residual []float64, rows int) []float64 {
	wr := make([]float64, rows)
	rowOffset := 0
	for _, e := range o.edges {
		dim := e.Information.SymmetricDim()
		sqrtInfo := sqrtSym(e.Information)
		for i := 0; i < dim; i++ {
			var sum float64
			for j := 0; j < dim; j++ {
				sum += sqrtInfo.At(i, j) * residual[rowOffset+j]
			}
			wr[rowOffset+i] = sum
		}
		rowOffset += dim
	}
	return wr
}

func sqrtSym(sym *mat.SymDense) *mat.SymDense {
	dim := sym.SymmetricDim()
	out := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			v := sym.At(i, j)
			if i == j {
				out.SetSym(i, j, math.Sqrt(math.Max(v, 0)))
			} else {
				out.SetSym(i, j, 0) // off-diagonal information terms are not used by this catalogue's edges
			}
		}
	}
	return out
}

func chiSquared(weightedResidual []float64) float64 {
	var sum float64
	for _, v := range weightedResidual {
		sum += v * v
	}
	return sum
}

func (o *Optimizer) chi2() float64 {
	residual, rows := o.stackedResidual()
	if rows == 0 {
		return 0
	}
	return chiSquared(o.weightResidualOnly(residual, rows))
}

// KindWeightedChi2 sums each edge's own chi-squared contribution, scaled by
// scale(edge.Kind), the Go equivalent of the original's per-edge-type
// dynamic_cast dispatch in its cost breakdown.
func (o *Optimizer) KindWeightedChi2(scale func(kind string) float64) float64 {
	var total float64
	for _, e := range o.edges {
		residual := e.evaluate(o.vertices)
		sqrtInfo := sqrtSym(e.Information)
		dim := e.Information.SymmetricDim()
		weighted := make([]float64, dim)
		for i := 0; i < dim; i++ {
			var sum float64
			for j := 0; j < dim; j++ {
				sum += sqrtInfo.At(i, j) * residual[j]
			}
			weighted[i] = sum
		}
		total += scale(e.Kind) * chiSquared(weighted)
	}
	return total
}

// solveLM solves the damped normal equations (J^T J + lambda I) delta =
// -J^T r via Cholesky over gonum/mat, so adding delta descends the residual. Each vertex's scalar components occupy a
// contiguous run in the parameter vector, so the normal-equation matrix is
// block-structured by vertex even though it is factored as a dense matrix
// rather than a sparse one.
func solveLM(jac *mat.Dense, residual []float64, numParams int, lambda float64) ([]float64, bool) {
	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)

	for i := 0; i < numParams; i++ {
		jtj.Set(i, i, jtj.At(i, i)+lambda)
	}

	symJtJ := mat.NewSymDense(numParams, nil)
	for i := 0; i < numParams; i++ {
		for j := i; j < numParams; j++ {
			symJtJ.SetSym(i, j, jtj.At(i, j))
		}
	}

	r := mat.NewVecDense(len(residual), residual)
	var jtr mat.VecDense
	jtr.MulVec(jac.T(), r)

	var chol mat.Cholesky
	if ok := chol.Factorize(symJtJ); !ok {
		return nil, false
	}

	var delta mat.VecDense
	if err := chol.SolveVecTo(&delta, &jtr); err != nil {
		return nil, false
	}

	out := make([]float64, numParams)
	for i := range out {
		out[i] = -delta.AtVec(i)
	}
	return out, true
}
