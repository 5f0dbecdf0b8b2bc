package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pageza/nutriplan/backend/internal/types"
)

const (
	SummaryMarker = "=== WEEKLY STRATEGY SUMMARY ==="
	PlanMarker    = "=== 7 DAY MEAL PLAN ==="

	continuationInstruction = "\nContinue until Day 7."
)

// PromptInput is everything that goes into a meal plan prompt.
type PromptInput struct {
	FoodDescription string
	Macros          types.ImageMacros
	Targets         types.EnergyTargets
	Profile         types.UserProfile
	Catalog         []types.FoodRow
	Passages        []string
	History         []types.ConversationTurn
	Feedback        string
}

// BuildPlanPrompt renders the prompt. Sections always appear in the same
// order so identical input yields an identical prompt.
func BuildPlanPrompt(in PromptInput) (string, error) {
	catalog := in.Catalog
	if catalog == nil {
		catalog = []types.FoodRow{}
	}
	dataset, err := json.Marshal(catalog)
	if err != nil {
		return "", fmt.Errorf("failed to serialize catalog: %w", err)
	}

	feedback := strings.TrimSpace(in.Feedback)
	if feedback == "" {
		feedback = "None"
	}

	var history strings.Builder
	for _, turn := range in.History {
		fmt.Fprintf(&history, "User: %s\nAssistant: %s\n\n", turn.User, turn.Assistant)
	}

	var b strings.Builder
	b.WriteString("You are a certified clinical nutritionist.\n\n")
	b.WriteString("FIRST produce:\n\n")
	b.WriteString(SummaryMarker + "\n")
	b.WriteString("Explain:\n")
	for _, item := range []string{
		"calorie target", "protein plan", "carb strategy", "fat control",
		"condition handling", "religion fit", "sustainability",
	} {
		b.WriteString("• " + item + "\n")
	}
	b.WriteString("\nTHEN:\n\n")
	b.WriteString(PlanMarker + "\n\n")

	fmt.Fprintf(&b, "FOOD IMAGE:\n%s\n\n", in.FoodDescription)
	fmt.Fprintf(&b, "IMAGE MACROS:\nCalories: %d kcal, Protein: %d g, Carbs: %d g\n\n",
		in.Macros.Calories, in.Macros.Protein, in.Macros.Carbs)
	fmt.Fprintf(&b, "USER DATA:\nBMI:%.2f\nTarget:%d\n\n", in.Targets.BMI, in.Targets.CalorieTarget)
	fmt.Fprintf(&b, "PROFILE:\nAge:%d\nGoal:%s\n", in.Profile.Age, types.ParseGoal(in.Profile.Goal).Label())
	if in.Profile.Religion != "" {
		fmt.Fprintf(&b, "Religion:%s\n", in.Profile.Religion)
	}
	if len(in.Profile.Allergies) > 0 {
		fmt.Fprintf(&b, "Allergies:%s\n", strings.Join(in.Profile.Allergies, ", "))
	}
	if len(in.Profile.Conditions) > 0 {
		fmt.Fprintf(&b, "Conditions:%s\n", strings.Join(in.Profile.Conditions, ", "))
	}
	fmt.Fprintf(&b, "\nDATASET:\n%s\n\n", dataset)
	fmt.Fprintf(&b, "RESEARCH:\n%s\n\n", strings.Join(in.Passages, "\n\n"))
	fmt.Fprintf(&b, "CONVERSATION HISTORY:\n%s\n", history.String())
	fmt.Fprintf(&b, "FEEDBACK:\n%s\n\n", feedback)
	b.WriteString("RULES:\n- EXACTLY 7 days\n- Breakfast / Lunch / Dinner / Snacks\n- Calories + Why\n")

	return b.String(), nil
}

// SplitSections cuts text at the first plan marker. When the marker is
// absent, found is false and before holds the whole text.
func SplitSections(text string) (before, after string, found bool) {
	return strings.Cut(text, PlanMarker)
}

// JoinSections reverses SplitSections for text containing the marker.
func JoinSections(before, after string) string {
	return before + PlanMarker + after
}

// SplitPlan prepares a raw answer for display.
func SplitPlan(raw string) types.PlanResult {
	before, after, found := SplitSections(raw)
	if !found {
		return types.PlanResult{Raw: raw, Plan: strings.TrimSpace(raw)}
	}
	return types.PlanResult{
		Raw:     raw,
		Summary: strings.TrimSpace(strings.Replace(before, SummaryMarker, "", 1)),
		Plan:    strings.TrimSpace(after),
	}
}

// LooksTruncated reports whether a plan mentions "Day" fewer than seven times.
func LooksTruncated(text string) bool {
	return strings.Count(text, "Day") < 7
}
