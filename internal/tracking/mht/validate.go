package mht

import (
	"math"
	"reflect"

	"gonum.org/v1/gonum/mat"
)

// validateFrame checks every dimension before any algebra runs and
// returns the common measurement dimension (0 when there are no
// measurements).
func validateFrame(f Frame) (int, error) {
	measDim := 0
	for j, m := range f.Measurements {
		if isNil(m.Value) || m.Value.Len() == 0 {
			return 0, &ShapeError{Field: "measurements", Index: j, Want: "non-empty vector", Got: "empty"}
		}
		if j == 0 {
			measDim = m.Value.Len()
		} else if m.Value.Len() != measDim {
			return 0, &ShapeError{Field: "measurements", Index: j, Want: itoa(measDim), Got: itoa(m.Value.Len())}
		}
		if isNil(m.Covariance) {
			return 0, &ShapeError{Field: "measurement_covariances", Index: j, Want: dims(measDim, measDim), Got: "nil"}
		}
		if r, c := m.Covariance.Dims(); r != measDim || c != measDim {
			return 0, &ShapeError{Field: "measurement_covariances", Index: j, Want: dims(measDim, measDim), Got: dims(r, c)}
		}
		if !finiteVector(m.Value) {
			return 0, &ShapeError{Field: "measurements", Index: j, Want: "finite values", Got: "NaN/Inf"}
		}
		if !finiteMatrix(m.Covariance) {
			return 0, &ShapeError{Field: "measurement_covariances", Index: j, Want: "finite values", Got: "NaN/Inf"}
		}
	}

	for i, t := range f.Tracks {
		if isNil(t.State) || t.State.Len() == 0 {
			return 0, &ShapeError{Field: "tracks", Index: i, Want: "non-empty vector", Got: "empty"}
		}
		n := t.State.Len()
		if isNil(t.Covariance) {
			return 0, &ShapeError{Field: "track_covariances", Index: i, Want: dims(n, n), Got: "nil"}
		}
		if r, c := t.Covariance.Dims(); r != n || c != n {
			return 0, &ShapeError{Field: "track_covariances", Index: i, Want: dims(n, n), Got: dims(r, c)}
		}
		if isNil(t.MeasurementModel) {
			return 0, &ShapeError{Field: "measurement_models", Index: i, Want: "matrix", Got: "nil"}
		}
		r, c := t.MeasurementModel.Dims()
		if c != n {
			return 0, &ShapeError{Field: "measurement_models", Index: i, Want: "columns=" + itoa(n), Got: dims(r, c)}
		}
		if len(f.Measurements) > 0 && r != measDim {
			return 0, &ShapeError{Field: "measurement_models", Index: i, Want: "rows=" + itoa(measDim), Got: dims(r, c)}
		}
		if !finiteVector(t.State) {
			return 0, &ShapeError{Field: "tracks", Index: i, Want: "finite values", Got: "NaN/Inf"}
		}
		if !finiteMatrix(t.Covariance) {
			return 0, &ShapeError{Field: "track_covariances", Index: i, Want: "finite values", Got: "NaN/Inf"}
		}
		if !finiteMatrix(t.MeasurementModel) {
			return 0, &ShapeError{Field: "measurement_models", Index: i, Want: "finite values", Got: "NaN/Inf"}
		}
	}
	return measDim, nil
}

// isNil reports a nil interface or a typed nil pointer such as
// (*mat.Dense)(nil), whose Dims and Len methods panic.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func finiteVector(v mat.Vector) bool {
	for i := 0; i < v.Len(); i++ {
		if x := v.AtVec(i); math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func finiteMatrix(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if x := m.At(i, j); math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}
