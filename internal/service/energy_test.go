package service

import (
	"testing"

	"github.com/pageza/nutriplan/backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBMI(t *testing.T) {
	bmi, err := BMI(70, 175)
	require.NoError(t, err)
	assert.Equal(t, 22.86, bmi)

	_, err = BMI(70, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = BMI(70, -10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBMR(t *testing.T) {
	assert.Equal(t, 1674.0, BMR(70, 175, 25, types.GenderMale))
	assert.Equal(t, 1508.0, BMR(70, 175, 25, types.GenderFemale))

	// Unrecognized gender strings take the female branch.
	assert.Equal(t, 1508.0, BMR(70, 175, 25, types.ParseGender("other")))
	assert.Equal(t, 1674.0, BMR(70, 175, 25, types.ParseGender("MALE")))
}

func TestTDEE(t *testing.T) {
	tests := []struct {
		activity string
		expected float64
	}{
		{"sedentary", 2040},
		{"Moderate", 2635},
		{"active", 2975},
	}
	for _, tt := range tests {
		t.Run(tt.activity, func(t *testing.T) {
			got, err := TDEE(1700, tt.activity)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := TDEE(1700, "Unknown")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAdjustForGoal(t *testing.T) {
	assert.Equal(t, 2100, AdjustForGoal(2500, "weight_loss"))
	assert.Equal(t, 2100, AdjustForGoal(2500, "Weight Loss"))
	assert.Equal(t, 2900, AdjustForGoal(2500, "muscle_gain"))
	assert.Equal(t, 2500, AdjustForGoal(2500, "maintenance"))
	assert.Equal(t, 2500, AdjustForGoal(2500, "anything else"))
	// Truncation, not rounding.
	assert.Equal(t, 2100, AdjustForGoal(2500.9, "weight_loss"))
}

func TestComputeTargets(t *testing.T) {
	targets, err := ComputeTargets(types.UserProfile{
		Age: 25, Gender: "Male", HeightCm: 175, WeightKg: 70,
		Goal: "Weight Loss", Activity: "Moderate",
	})
	require.NoError(t, err)
	assert.Equal(t, 22.86, targets.BMI)
	assert.Equal(t, 1674.0, targets.BMR)
	assert.Equal(t, 2595.0, targets.TDEE)
	assert.Equal(t, 2195, targets.CalorieTarget)

	_, err = ComputeTargets(types.UserProfile{
		Age: 25, Gender: "male", HeightCm: 175, WeightKg: 70, Activity: "couch",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
