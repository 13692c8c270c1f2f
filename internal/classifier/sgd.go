package classifier

import (
	"math"
	"math/rand"
)

const (
	// DefaultAlpha is the L2 regularization strength
	DefaultAlpha = 1e-4

	maxDLoss = 1e12
)

// SGD is a linear classifier trained one sample at a time on log loss with
// an L2 penalty and the "optimal" learning rate schedule
// eta = 1 / (alpha * (t0 + t - 1)).
type SGD struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
	Alpha     float64   `json:"alpha"`
	T         float64   `json:"t"` // samples seen + 1
	Seed      int64     `json:"seed"`
}

func newSGD(features int, alpha float64, seed int64) *SGD {
	return &SGD{
		Coef:  make([]float64, features),
		Alpha: alpha,
		T:     1,
		Seed:  seed,
	}
}

// optimalInit is t0 of the optimal schedule
func (m *SGD) optimalInit() float64 {
	typw := math.Sqrt(1 / math.Sqrt(m.Alpha))
	eta0 := typw / math.Max(1, logDLoss(-typw, 1))
	return 1 / (eta0 * m.Alpha)
}

// Pass runs one shuffled epoch over X. Labels are 0/1.
func (m *SGD) Pass(X [][]float64, y []int) {
	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewSource(m.Seed))
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	t0 := m.optimalInit()
	for _, i := range order {
		x := X[i]
		target := -1.0
		if y[i] == 1 {
			target = 1
		}

		eta := 1 / (m.Alpha * (t0 + m.T - 1))
		dloss := math.Max(-maxDLoss, math.Min(maxDLoss, logDLoss(m.Decision(x), target)))
		update := -eta * dloss

		decay := math.Max(0, 1-eta*m.Alpha)
		for j := range m.Coef {
			m.Coef[j] = m.Coef[j]*decay + update*x[j]
		}
		m.Intercept += update
		m.T++
	}
}

// Decision is the signed distance w.x + b
func (m *SGD) Decision(x []float64) float64 {
	d := m.Intercept
	for j, w := range m.Coef {
		d += w * x[j]
	}
	return d
}

// Proba is the positive class probability
func (m *SGD) Proba(x []float64) float64 {
	return sigmoid(m.Decision(x))
}

// logDLoss is the derivative of log loss with respect to p, for y in {-1, 1}
func logDLoss(p, y float64) float64 {
	z := p * y
	switch {
	case z > 18:
		return -y * math.Exp(-z)
	case z < -18:
		return -y
	default:
		return -y / (math.Exp(z) + 1)
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
