// Package testutil provides test data factories shared across packages.
package testutil

import (
	"github.com/brianvoe/gofakeit/v6"
	"github.com/pageza/nutriplan/backend/internal/types"
)

var (
	genders    = []string{"male", "female"}
	goals      = []string{"weight_loss", "muscle_gain", "maintenance"}
	activities = []string{"sedentary", "moderate", "active"}
	conditions = []string{"diabetes", "hypertension", "obesity"}
)

// ProfileFactory builds valid user profiles from a seeded faker.
type ProfileFactory struct {
	faker *gofakeit.Faker
}

func NewProfileFactory(seed int64) *ProfileFactory {
	return &ProfileFactory{faker: gofakeit.New(seed)}
}

// Profile returns a profile within the accepted input ranges.
func (f *ProfileFactory) Profile() types.UserProfile {
	return types.UserProfile{
		Age:        f.faker.Number(18, 90),
		Gender:     f.faker.RandomString(genders),
		HeightCm:   f.faker.Number(140, 210),
		WeightKg:   f.faker.Number(40, 200),
		Religion:   f.faker.RandomString([]string{"none", "jain", "halal", "kosher", "vegetarian"}),
		Allergies:  []string{f.faker.RandomString([]string{"peanuts", "gluten", "shellfish"})},
		Conditions: []string{f.faker.RandomString(conditions)},
		Goal:       f.faker.RandomString(goals),
		Activity:   f.faker.RandomString(activities),
	}
}

// Query returns a short free-text planning request.
func (f *ProfileFactory) Query() string {
	return "Plan my meals: " + f.faker.Sentence(6)
}
