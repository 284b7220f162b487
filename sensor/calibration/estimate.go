package calibration

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Method selects how a correction is fitted to captured samples.
type Method string

const (
	// MethodMinMax centers each axis on the midpoint of its extremes and equalizes the axis spans.
	MethodMinMax Method = "minmax"
	// MethodEllipsoid least-squares fits an axis-aligned ellipsoid and maps it onto the unit sphere.
	MethodEllipsoid Method = "ellipsoid"
)

// OutlierSigmas is how far, in standard deviations, a raw radius may stray before it is reported.
const OutlierSigmas = 2.0

// RadiusStats summarizes the distance of samples from the origin.
type RadiusStats struct {
	Mean   float64
	StdDev float64
}

// Outlier is a sample whose raw radius falls outside OutlierSigmas of the mean.
type Outlier struct {
	Index  int
	Sample r3.Vector
	Radius float64
}

// Estimate is a fitted correction plus the statistics that show how well it fits.
type Estimate struct {
	Method Method
	// Axes is ready to be used as a calibration: corrected = raw*Scale + Offset.
	Axes Axes
	// Center is the hard-iron offset added before scaling.
	Center r3.Vector

	Raw    RadiusStats
	Offset RadiusStats
	Scaled RadiusStats

	Outliers []Outlier
}

// Radii returns the raw, offset-only and fully corrected radius of every sample.
func (e *Estimate) Radii(samples []r3.Vector) (raw, offset, scaled []float64) {
	raw = make([]float64, len(samples))
	offset = make([]float64, len(samples))
	scaled = make([]float64, len(samples))
	for i, s := range samples {
		centered := s.Add(e.Center)
		raw[i] = s.Norm()
		offset[i] = centered.Norm()
		scaled[i] = r3.Vector{X: centered.X * e.Axes.Scale.X, Y: centered.Y * e.Axes.Scale.Y, Z: centered.Z * e.Axes.Scale.Z}.Norm()
	}
	return raw, offset, scaled
}

// EstimateAxes fits a correction to samples captured while rotating the sensor through every
// orientation.
func EstimateAxes(samples []r3.Vector, method Method) (*Estimate, error) {
	var center, scale r3.Vector
	var err error
	switch method {
	case MethodMinMax, "":
		method = MethodMinMax
		center, scale, err = fitMinMax(samples)
	case MethodEllipsoid:
		center, scale, err = fitEllipsoid(samples)
	default:
		return nil, errors.Errorf("unknown calibration method %q", method)
	}
	if err != nil {
		return nil, err
	}

	est := &Estimate{
		Method: method,
		Center: center,
		Axes: Axes{
			Offset: r3.Vector{X: center.X * scale.X, Y: center.Y * scale.Y, Z: center.Z * scale.Z},
			Scale:  scale,
		},
	}
	raw, offset, scaled := est.Radii(samples)
	for _, r := range []struct {
		dst    *RadiusStats
		radius []float64
	}{
		{&est.Raw, raw},
		{&est.Offset, offset},
		{&est.Scaled, scaled},
	} {
		if *r.dst, err = radiusStats(r.radius); err != nil {
			return nil, err
		}
	}

	lower := est.Raw.Mean - OutlierSigmas*est.Raw.StdDev
	upper := est.Raw.Mean + OutlierSigmas*est.Raw.StdDev
	for i, r := range raw {
		if r <= lower || r >= upper {
			est.Outliers = append(est.Outliers, Outlier{Index: i, Sample: samples[i], Radius: r})
		}
	}
	return est, nil
}

func radiusStats(radius []float64) (RadiusStats, error) {
	data := stats.Float64Data(radius)
	mean, err := data.Mean()
	if err != nil {
		return RadiusStats{}, err
	}
	stddev, err := data.StandardDeviationPopulation()
	if err != nil {
		return RadiusStats{}, err
	}
	return RadiusStats{Mean: mean, StdDev: stddev}, nil
}

func components(samples []r3.Vector) (xs, ys, zs stats.Float64Data) {
	xs = make(stats.Float64Data, len(samples))
	ys = make(stats.Float64Data, len(samples))
	zs = make(stats.Float64Data, len(samples))
	for i, s := range samples {
		xs[i], ys[i], zs[i] = s.X, s.Y, s.Z
	}
	return xs, ys, zs
}

func fitMinMax(samples []r3.Vector) (center, scale r3.Vector, err error) {
	if len(samples) < 2 {
		return center, scale, errors.Errorf("min/max fit needs at least 2 samples, have %d", len(samples))
	}
	xs, ys, zs := components(samples)
	var offsets, spans [3]float64
	for i, data := range []stats.Float64Data{xs, ys, zs} {
		lo, err := data.Min()
		if err != nil {
			return center, scale, err
		}
		hi, err := data.Max()
		if err != nil {
			return center, scale, err
		}
		offsets[i] = -(lo + hi) / 2
		spans[i] = (math.Abs(hi+offsets[i]) + math.Abs(lo+offsets[i])) / 2
		if spans[i] == 0 {
			return center, scale, errors.Errorf("axis %c never moved", "xyz"[i])
		}
	}
	avg := (spans[0] + spans[1] + spans[2]) / 3
	center = r3.Vector{X: offsets[0], Y: offsets[1], Z: offsets[2]}
	scale = r3.Vector{X: avg / spans[0], Y: avg / spans[1], Z: avg / spans[2]}
	return center, scale, nil
}

// fitEllipsoid solves x² = a·x + b·y + c·z - d·y² - e·z² + f in the least squares sense, which is
// an axis-aligned ellipsoid written relative to its x radius.
func fitEllipsoid(samples []r3.Vector) (center, scale r3.Vector, err error) {
	const unknowns = 6
	if len(samples) < unknowns {
		return center, scale, errors.Errorf("ellipsoid fit needs at least %d samples, have %d", unknowns, len(samples))
	}
	h := mat.NewDense(len(samples), unknowns, nil)
	w := mat.NewVecDense(len(samples), nil)
	for i, s := range samples {
		h.SetRow(i, []float64{s.X, s.Y, s.Z, -s.Y * s.Y, -s.Z * s.Z, 1})
		w.SetVec(i, s.X*s.X)
	}
	var x mat.VecDense
	if err := x.SolveVec(h, w); err != nil {
		return center, scale, errors.Wrap(err, "ellipsoid fit")
	}

	d, e := x.AtVec(3), x.AtVec(4)
	if d <= 0 || e <= 0 {
		return center, scale, errors.New("ellipsoid fit: samples do not describe an ellipsoid")
	}
	osx := x.AtVec(0) / 2
	osy := x.AtVec(1) / (2 * d)
	osz := x.AtVec(2) / (2 * e)
	a := x.AtVec(5) + osx*osx + d*osy*osy + e*osz*osz
	if a <= 0 {
		return center, scale, errors.New("ellipsoid fit: samples do not describe an ellipsoid")
	}
	center = r3.Vector{X: -osx, Y: -osy, Z: -osz}
	scale = r3.Vector{X: 1 / math.Sqrt(a), Y: 1 / math.Sqrt(a/d), Z: 1 / math.Sqrt(a/e)}
	return center, scale, nil
}
