// Package types contains shared value types used across the FlowKit runtime.
// Packets carry these by value; option members of the matching data types
// parse into them.
package types

import (
	"fmt"
	"math"

	"github.com/c360/flowkit/errors"
)

// IntRange is an integer value constrained to [Min, Max] with a step hint.
// The zero value has no constraint semantics; use NewIntRange for a value
// with open bounds.
type IntRange struct {
	Value int32 `json:"value"`
	Min   int32 `json:"min"`
	Max   int32 `json:"max"`
	Step  int32 `json:"step"`
}

// NewIntRange returns an IntRange holding value with open bounds and unit step.
func NewIntRange(value int32) IntRange {
	return IntRange{Value: value, Min: math.MinInt32, Max: math.MaxInt32, Step: 1}
}

// Validate ensures the range is internally consistent and the value is in bounds.
func (r IntRange) Validate() error {
	if r.Min > r.Max {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "IntRange", "Validate",
			fmt.Sprintf("min %d greater than max %d", r.Min, r.Max))
	}
	if r.Value < r.Min || r.Value > r.Max {
		return errors.WrapInvalid(errors.ErrOutOfRange, "IntRange", "Validate",
			fmt.Sprintf("value %d outside [%d, %d]", r.Value, r.Min, r.Max))
	}
	return nil
}

// FloatRange is a float value constrained to [Min, Max] with a step hint.
type FloatRange struct {
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Step  float64 `json:"step"`
}

// NewFloatRange returns a FloatRange holding value with open bounds.
func NewFloatRange(value float64) FloatRange {
	return FloatRange{Value: value, Min: -math.MaxFloat64, Max: math.MaxFloat64, Step: math.SmallestNonzeroFloat64}
}

// Validate ensures the range is internally consistent and the value is in bounds.
func (r FloatRange) Validate() error {
	if math.IsNaN(r.Value) || math.IsNaN(r.Min) || math.IsNaN(r.Max) {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "FloatRange", "Validate", "NaN field")
	}
	if r.Min > r.Max {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "FloatRange", "Validate",
			fmt.Sprintf("min %g greater than max %g", r.Min, r.Max))
	}
	if r.Value < r.Min || r.Value > r.Max {
		return errors.WrapInvalid(errors.ErrOutOfRange, "FloatRange", "Validate",
			fmt.Sprintf("value %g outside [%g, %g]", r.Value, r.Min, r.Max))
	}
	return nil
}

// RGB is a color with per-channel maxima, so 8-bit and 10-bit sources can
// coexist in one flow.
type RGB struct {
	Red      uint32 `json:"red"`
	Green    uint32 `json:"green"`
	Blue     uint32 `json:"blue"`
	RedMax   uint32 `json:"red_max"`
	GreenMax uint32 `json:"green_max"`
	BlueMax  uint32 `json:"blue_max"`
}

// NewRGB returns an 8-bit RGB color.
func NewRGB(red, green, blue uint32) RGB {
	return RGB{Red: red, Green: green, Blue: blue, RedMax: 255, GreenMax: 255, BlueMax: 255}
}

// Validate ensures each channel is within its declared maximum.
func (c RGB) Validate() error {
	if c.Red > c.RedMax || c.Green > c.GreenMax || c.Blue > c.BlueMax {
		return errors.WrapInvalid(errors.ErrOutOfRange, "RGB", "Validate",
			fmt.Sprintf("channel above maximum: (%d/%d, %d/%d, %d/%d)",
				c.Red, c.RedMax, c.Green, c.GreenMax, c.Blue, c.BlueMax))
	}
	return nil
}

// DirectionVector is a three-axis reading bounded to [Min, Max] per axis,
// as produced by accelerometers and gyroscopes.
type DirectionVector struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Validate ensures each axis is within the declared bounds.
func (d DirectionVector) Validate() error {
	if d.Min > d.Max {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "DirectionVector", "Validate",
			fmt.Sprintf("min %g greater than max %g", d.Min, d.Max))
	}
	for axis, v := range map[string]float64{"x": d.X, "y": d.Y, "z": d.Z} {
		if v < d.Min || v > d.Max {
			return errors.WrapInvalid(errors.ErrOutOfRange, "DirectionVector", "Validate",
				fmt.Sprintf("axis %s value %g outside [%g, %g]", axis, v, d.Min, d.Max))
		}
	}
	return nil
}

// Location is a geographic position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// Validate ensures the coordinates are on the globe.
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return errors.WrapInvalid(errors.ErrOutOfRange, "Location", "Validate",
			fmt.Sprintf("latitude %g outside [-90, 90]", l.Latitude))
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return errors.WrapInvalid(errors.ErrOutOfRange, "Location", "Validate",
			fmt.Sprintf("longitude %g outside [-180, 180]", l.Longitude))
	}
	return nil
}
