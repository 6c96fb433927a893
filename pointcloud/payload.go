package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MatrixCol names a column of the dense dump produced by Payload.Matrix.
type MatrixCol int

// The columns Matrix can emit, in emission order.
const (
	MatrixColX MatrixCol = iota
	MatrixColY
	MatrixColZ
	MatrixColI
)

// Payload is the decoded point data of one octree node. Payloads are
// immutable once built, so frame code and loaders can share them freely.
type Payload struct {
	positions   []r3.Vector
	intensities []float64
	meta        MetaData
}

// NewPayload builds a payload from a position slice and an optional parallel
// intensity slice. Pass nil intensities for geometry-only data.
func NewPayload(positions []r3.Vector, intensities []float64) (*Payload, error) {
	if len(intensities) != 0 && len(intensities) != len(positions) {
		return nil, errors.Errorf("have %d positions but %d intensities", len(positions), len(intensities))
	}
	meta := NewMetaData()
	meta.HasIntensity = len(intensities) != 0
	for _, p := range positions {
		meta.Merge(p)
	}
	return &Payload{positions: positions, intensities: intensities, meta: meta}, nil
}

// Size returns the number of points in the payload.
func (p *Payload) Size() int {
	return len(p.positions)
}

// MetaData returns the payload summary.
func (p *Payload) MetaData() MetaData {
	return p.meta
}

// Position returns the i-th point.
func (p *Payload) Position(i int) r3.Vector {
	return p.positions[i]
}

// Intensity returns the i-th intensity, or 0 for geometry-only payloads.
func (p *Payload) Intensity(i int) float64 {
	if len(p.intensities) == 0 {
		return 0
	}
	return p.intensities[i]
}

// Iterate calls fn for every point until fn returns false.
func (p *Payload) Iterate(fn func(pos r3.Vector, intensity float64) bool) {
	for i, pos := range p.positions {
		if !fn(pos, p.Intensity(i)) {
			return
		}
	}
}

// Matrix dumps the payload into a row-per-point dense matrix plus a header
// describing the column layout. Returns nil for an empty payload.
func (p *Payload) Matrix() (*mat.Dense, []MatrixCol) {
	if p.Size() == 0 {
		return nil, nil
	}
	header := []MatrixCol{MatrixColX, MatrixColY, MatrixColZ}
	if p.meta.HasIntensity {
		header = append(header, MatrixColI)
	}
	data := make([]float64, 0, p.Size()*len(header))
	for i, pos := range p.positions {
		data = append(data, pos.X, pos.Y, pos.Z)
		if p.meta.HasIntensity {
			data = append(data, p.intensities[i])
		}
	}
	return mat.NewDense(p.Size(), len(header), data), header
}
