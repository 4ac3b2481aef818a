package scenario

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/hypotrack/internal/tracking/mht"
)

// Dense converts the literal to a gonum matrix. It returns nil for an
// empty literal.
func (m Matrix) Dense() *mat.Dense {
	if len(m) == 0 || len(m[0]) == 0 {
		return nil
	}
	r, c := len(m), len(m[0])
	data := make([]float64, 0, r*c)
	for _, row := range m {
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data)
}

func diagDense(v []float64) *mat.Dense {
	d := mat.NewDense(len(v), len(v), nil)
	for i, x := range v {
		d.Set(i, i, x)
	}
	return d
}

// covariance returns a nil interface when neither form is set so the
// engine reports the missing matrix instead of dereferencing it.
func covariance(full Matrix, diag []float64) mat.Matrix {
	if len(diag) > 0 {
		return diagDense(diag)
	}
	if d := full.Dense(); d != nil {
		return d
	}
	return nil
}

// ToFrame builds engine input for the frame. defaultModel is used for
// tracks without their own measurement model. Dimension agreement is
// left to the engine, which reports it as mht.ShapeError.
func (f FrameSpec) ToFrame(defaultModel Matrix) (mht.Frame, error) {
	frame := mht.Frame{
		Tracks:       make([]mht.TrackState, len(f.Tracks)),
		Measurements: make([]mht.Measurement, len(f.Measurements)),
	}
	for i, tr := range f.Tracks {
		model := tr.MeasurementModel
		if len(model) == 0 {
			model = defaultModel
		}
		h := model.Dense()
		if h == nil || len(tr.State) == 0 {
			return mht.Frame{}, fmt.Errorf("%w: frame %q track %d has no state or measurement model", ErrInvalidScenario, f.ID, i)
		}
		frame.Tracks[i] = mht.TrackState{
			State:            mat.NewVecDense(len(tr.State), append([]float64(nil), tr.State...)),
			Covariance:       covariance(tr.Covariance, tr.CovarianceDiag),
			MeasurementModel: h,
		}
	}
	for j, m := range f.Measurements {
		if len(m.Value) == 0 {
			return mht.Frame{}, fmt.Errorf("%w: frame %q measurement %d has no value", ErrInvalidScenario, f.ID, j)
		}
		frame.Measurements[j] = mht.Measurement{
			Value:      mat.NewVecDense(len(m.Value), append([]float64(nil), m.Value...)),
			Covariance: covariance(m.Covariance, m.CovarianceDiag),
		}
	}
	return frame, nil
}

// Frame returns engine input for the i-th frame.
func (s *Scenario) Frame(i int) (mht.Frame, error) {
	if i < 0 || i >= len(s.Frames) {
		return mht.Frame{}, fmt.Errorf("frame index %d out of range [0, %d)", i, len(s.Frames))
	}
	return s.Frames[i].ToFrame(s.MeasurementModel)
}
