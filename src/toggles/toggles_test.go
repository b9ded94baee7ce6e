package toggles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestDecode_EmptyObjectKeepsDefaults(t *testing.T) {
	got, err := Decode([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, Default(), got)
}

func TestDecode_OverridesOnlyGivenKeys(t *testing.T) {
	got, err := Decode([]byte(`{"acceleration_profile": 2, "aggressive_acceleration": true, "standard_follow": 1.6}`))
	require.NoError(t, err)

	assert.Equal(t, AccelSport, got.AccelerationProfile)
	assert.True(t, got.AggressiveAcceleration)
	assert.Equal(t, 1.6, got.StandardFollow)
	assert.Equal(t, 1.25, got.AggressiveFollow, "untouched keys keep defaults")
	assert.True(t, got.AutomaticUpdates)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"malformed json", `{"acceleration_profile":`},
		{"acceleration profile out of range", `{"acceleration_profile": 7}`},
		{"deceleration profile out of range", `{"deceleration_profile": 3}`},
		{"zero follow time", `{"relaxed_follow": 0}`},
		{"negative jerk", `{"standard_jerk": -1}`},
		{"negative stopping distance", `{"increased_stopping_distance": -2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.blob))
			assert.Error(t, err)
		})
	}
}

func TestDecode_ValidationWrapsErrInvalid(t *testing.T) {
	_, err := Decode([]byte(`{"deceleration_profile": 9}`))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEncode_RoundTripsThroughDecode(t *testing.T) {
	in := Default()
	in.DecelerationProfile = DecelEco
	in.SpeedLimitController = true
	in.SpeedLimitOffset = 2.2

	blob, err := in.Encode()
	require.NoError(t, err)

	out, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
