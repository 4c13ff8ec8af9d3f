package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/types"
)

func TestIntRangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       types.IntRange
		wantErr bool
	}{
		{"open bounds", types.NewIntRange(42), false},
		{"at min", types.IntRange{Value: 0, Min: 0, Max: 10, Step: 1}, false},
		{"at max", types.IntRange{Value: 10, Min: 0, Max: 10, Step: 1}, false},
		{"below min", types.IntRange{Value: -1, Min: 0, Max: 10, Step: 1}, true},
		{"above max", types.IntRange{Value: 11, Min: 0, Max: 10, Step: 1}, true},
		{"inverted bounds", types.IntRange{Value: 5, Min: 10, Max: 0, Step: 1}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.r.Validate()
			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFloatRangeValidateOutOfRange(t *testing.T) {
	r := types.FloatRange{Value: 2.5, Min: 0, Max: 1, Step: 0.1}
	err := r.Validate()
	assert.Error(t, err)
	assert.True(t, pkgerrors.IsOutOfRange(err))
}

func TestRGBValidate(t *testing.T) {
	assert.NoError(t, types.NewRGB(255, 0, 128).Validate())

	bad := types.RGB{Red: 300, RedMax: 255, GreenMax: 255, BlueMax: 255}
	err := bad.Validate()
	assert.Error(t, err)
	assert.True(t, pkgerrors.IsOutOfRange(err))
}

func TestLocationValidate(t *testing.T) {
	assert.NoError(t, types.Location{Latitude: -23.5, Longitude: -46.6, Altitude: 760}.Validate())
	assert.Error(t, types.Location{Latitude: 91}.Validate())
	assert.Error(t, types.Location{Longitude: -181}.Validate())
}

func TestDirectionVectorValidate(t *testing.T) {
	ok := types.DirectionVector{X: 0.1, Y: -0.2, Z: 9.8, Min: -10, Max: 10}
	assert.NoError(t, ok.Validate())

	bad := types.DirectionVector{X: 20, Min: -10, Max: 10}
	assert.Error(t, bad.Validate())
}
