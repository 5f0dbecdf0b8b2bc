package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/pageza/nutriplan/backend/internal/types"
)

var activityFactors = map[types.Activity]float64{
	types.ActivitySedentary: 1.2,
	types.ActivityModerate:  1.55,
	types.ActivityActive:    1.75,
}

const goalCalorieDelta = 400

// BMI returns weight / height_m² rounded to two decimals.
func BMI(weightKg, heightCm float64) (float64, error) {
	if heightCm <= 0 {
		return 0, fmt.Errorf("%w: height must be positive, got %v", ErrInvalidInput, heightCm)
	}
	h := heightCm / 100
	return math.Round(weightKg/(h*h)*100) / 100, nil
}

// BMR applies the Mifflin-St Jeor equation.
func BMR(weightKg, heightCm float64, age int, gender types.Gender) float64 {
	base := 10*weightKg + 6.25*heightCm - 5*float64(age)
	switch gender {
	case types.GenderMale:
		base += 5
	default:
		base -= 161
	}
	return math.RoundToEven(base)
}

// TDEE scales a BMR by the activity factor. Unknown activity levels are
// rejected rather than defaulted.
func TDEE(bmr float64, activity string) (float64, error) {
	factor, ok := activityFactors[types.ParseActivity(activity)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown activity level %q", ErrInvalidInput, activity)
	}
	return math.RoundToEven(bmr * factor), nil
}

// AdjustForGoal applies the goal delta and truncates to an integer.
func AdjustForGoal(tdee float64, goal string) int {
	switch types.ParseGoal(goal) {
	case types.GoalWeightLoss:
		return int(tdee - goalCalorieDelta)
	case types.GoalMuscleGain:
		return int(tdee + goalCalorieDelta)
	default:
		return int(tdee)
	}
}

// ComputeTargets derives the energy targets for a profile.
func ComputeTargets(p types.UserProfile) (types.EnergyTargets, error) {
	bmi, err := BMI(float64(p.WeightKg), float64(p.HeightCm))
	if err != nil {
		return types.EnergyTargets{}, err
	}
	bmr := BMR(float64(p.WeightKg), float64(p.HeightCm), p.Age, types.ParseGender(p.Gender))
	tdee, err := TDEE(bmr, strings.TrimSpace(p.Activity))
	if err != nil {
		return types.EnergyTargets{}, err
	}
	return types.EnergyTargets{
		BMI:           bmi,
		BMR:           bmr,
		TDEE:          tdee,
		CalorieTarget: AdjustForGoal(tdee, p.Goal),
	}, nil
}
