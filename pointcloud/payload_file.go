package pointcloud

import (
	"math"
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/lidarview/pointstream/utils"
)

// pointIntensityTag marks LAS files whose intensity fields carry data.
const pointIntensityTag = "ps|pi"

// NewPayloadFromFile returns a payload read in from the given file.
func NewPayloadFromFile(fn string, logger golog.Logger) (*Payload, error) {
	switch filepath.Ext(fn) {
	case ".las":
		return NewPayloadFromLASFile(fn, logger)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// NewPayloadFromLASFile returns a payload from reading a LAS file.
// Intensities come back normalized to [0, 1] and only when the file was
// written with them.
func NewPayloadFromLASFile(fn string, logger golog.Logger) (*Payload, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(lf.Close)

	var hasIntensity bool
	for _, d := range lf.VlrData {
		if d.Description == pointIntensityTag {
			hasIntensity = true
			break
		}
	}

	positions := make([]r3.Vector, 0, lf.Header.NumberPoints)
	var intensities []float64
	if hasIntensity {
		intensities = make([]float64, 0, lf.Header.NumberPoints)
	}
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()
		positions = append(positions, r3.Vector{X: data.X, Y: data.Y, Z: data.Z})
		if hasIntensity {
			intensities = append(intensities, float64(data.Intensity)/math.MaxUint16)
		}
	}
	logger.Debugw("read LAS payload", "file", fn, "points", len(positions), "intensity", hasIntensity)
	return NewPayload(positions, intensities)
}

// WritePayloadToLASFile writes the payload out to a LAS file. Intensities
// are clamped to [0, 1] and scaled into the 16 bit LAS intensity field.
func WritePayloadToLASFile(payload *Payload, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return
	}
	defer func() {
		cerr := lf.Close()
		err = multierr.Combine(err, cerr)
	}()

	if err = lf.AddHeader(lidario.LasHeader{
		PointFormatID: 0,
	}); err != nil {
		return
	}

	meta := payload.MetaData()
	var lastErr error
	payload.Iterate(func(pos r3.Vector, intensity float64) bool {
		pr := &lidario.PointRecord0{
			X: pos.X,
			Y: pos.Y,
			Z: pos.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3) | (0 << 6) | (0 << 7),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: 0,
			},
			ScanAngle:     0,
			UserData:      0,
			PointSourceID: 1,
		}
		if meta.HasIntensity {
			pr.Intensity = uint16(utils.Clamp(intensity, 0, 1) * math.MaxUint16)
		}
		if lerr := lf.AddLasPoint(pr); lerr != nil {
			lastErr = lerr
			return false
		}
		return true
	})
	if lastErr != nil {
		err = lastErr
		return
	}
	if meta.HasIntensity {
		if err = lf.AddVLR(lidario.VLR{
			UserID:                  "",
			Description:             pointIntensityTag,
			BinaryData:              []byte{1},
			RecordLengthAfterHeader: 1,
		}); err != nil {
			return
		}
	}

	// nolint:nakedret
	return
}
