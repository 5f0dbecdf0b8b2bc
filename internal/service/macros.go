package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/pageza/nutriplan/backend/internal/types"
	"go.uber.org/zap"
)

var (
	caloriesPattern = regexp.MustCompile(`Calories:\s*(\d+)`)
	proteinPattern  = regexp.MustCompile(`Protein:\s*(\d+)`)
	carbsPattern    = regexp.MustCompile(`Carbs:\s*(\d+)`)
)

// MacroEstimator asks the generation oracle for the macros of a described meal.
type MacroEstimator struct {
	generator TextGenerator
	logger    *zap.Logger
}

// NewMacroEstimator creates an estimator.
func NewMacroEstimator(generator TextGenerator, logger *zap.Logger) *MacroEstimator {
	return &MacroEstimator{generator: generator, logger: logger.Named("macros")}
}

// Estimate never fails: oracle errors and unparseable fields yield zeros.
func (m *MacroEstimator) Estimate(ctx context.Context, description string) types.ImageMacros {
	text, err := m.generator.Generate(ctx, BuildMacroPrompt(description))
	if err != nil {
		m.logger.Warn("macro estimation failed, using zeros", zap.Error(err))
		return types.ImageMacros{}
	}
	return ParseMacros(text)
}

// BuildMacroPrompt asks for the three values in a fixed line format.
func BuildMacroPrompt(description string) string {
	return fmt.Sprintf(`
Estimate nutrition for this meal.

Detected:
%s

Return exactly:

Calories: <number>
Protein: <number>
Carbs: <number>
`, description)
}

// ParseMacros extracts the first integer after each label; missing values are zero.
func ParseMacros(text string) types.ImageMacros {
	return types.ImageMacros{
		Calories: firstInt(caloriesPattern, text),
		Protein:  firstInt(proteinPattern, text),
		Carbs:    firstInt(carbsPattern, text),
	}
}

func firstInt(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
