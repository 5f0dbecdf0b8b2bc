package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGender(t *testing.T) {
	tests := []struct {
		input    string
		expected Gender
	}{
		{"male", GenderMale},
		{"Male", GenderMale},
		{" MALE ", GenderMale},
		{"female", GenderFemale},
		{"Female", GenderFemale},
		{"nonbinary", GenderFemale},
		{"", GenderFemale},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseGender(tt.input))
		})
	}
}

func TestParseGoal(t *testing.T) {
	assert.Equal(t, GoalWeightLoss, ParseGoal("Weight Loss"))
	assert.Equal(t, GoalWeightLoss, ParseGoal("weight_loss"))
	assert.Equal(t, GoalMuscleGain, ParseGoal("muscle-gain"))
	assert.Equal(t, GoalMaintenance, ParseGoal("Maintenance"))
	assert.Equal(t, Goal("bulking"), ParseGoal("Bulking"))
}

func TestGoalLabel(t *testing.T) {
	assert.Equal(t, "Weight Loss", GoalWeightLoss.Label())
	assert.Equal(t, "Muscle Gain", GoalMuscleGain.Label())
	assert.Equal(t, "bulking", Goal("bulking").Label())
}

func TestParseActivity(t *testing.T) {
	assert.Equal(t, ActivityModerate, ParseActivity("Moderate"))
	assert.Equal(t, ActivitySedentary, ParseActivity(" sedentary"))
	assert.Equal(t, Activity("unknown"), ParseActivity("Unknown"))
}
