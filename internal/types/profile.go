package types

import (
	"strings"
)

// Gender selects the Mifflin-St Jeor branch.
type Gender int

const (
	GenderFemale Gender = iota
	GenderMale
)

// ParseGender maps the case-insensitive literal "male" to GenderMale and
// every other value, including unrecognized strings, to GenderFemale.
func ParseGender(s string) Gender {
	if strings.EqualFold(strings.TrimSpace(s), "male") {
		return GenderMale
	}
	return GenderFemale
}

func (g Gender) String() string {
	if g == GenderMale {
		return "male"
	}
	return "female"
}

// Goal is a normalized fitness goal such as "weight_loss".
type Goal string

const (
	GoalWeightLoss  Goal = "weight_loss"
	GoalMuscleGain  Goal = "muscle_gain"
	GoalMaintenance Goal = "maintenance"
)

// ParseGoal normalizes UI labels ("Weight Loss") and API values
// ("weight_loss") to the same Goal. Unknown goals are kept as-is.
func ParseGoal(s string) Goal {
	return Goal(normalizeKey(s))
}

// Label returns the display form used in prompts.
func (g Goal) Label() string {
	switch g {
	case GoalWeightLoss:
		return "Weight Loss"
	case GoalMuscleGain:
		return "Muscle Gain"
	case GoalMaintenance:
		return "Maintenance"
	}
	return string(g)
}

// Activity is a normalized activity level key such as "moderate".
type Activity string

const (
	ActivitySedentary Activity = "sedentary"
	ActivityModerate  Activity = "moderate"
	ActivityActive    Activity = "active"
)

// ParseActivity normalizes an activity label. Validity is checked by the
// energy model, not here.
func ParseActivity(s string) Activity {
	return Activity(normalizeKey(s))
}

// UserProfile is the per-request planning profile collected from the client.
type UserProfile struct {
	Age        int      `json:"age" binding:"required,min=18,max=90"`
	Gender     string   `json:"gender" binding:"required"`
	HeightCm   int      `json:"height_cm" binding:"required,min=140,max=210"`
	WeightKg   int      `json:"weight_kg" binding:"required,min=40,max=200"`
	Religion   string   `json:"religion"`
	Allergies  []string `json:"allergies"`
	Conditions []string `json:"conditions"`
	Goal       string   `json:"goal" binding:"required"`
	Activity   string   `json:"activity" binding:"required"`
}

// EnergyTargets holds the values derived from a UserProfile.
type EnergyTargets struct {
	BMI           float64 `json:"bmi"`
	BMR           float64 `json:"bmr"`
	TDEE          float64 `json:"tdee"`
	CalorieTarget int     `json:"calorie_target"`
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
