package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pageza/nutriplan/backend/internal/types"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	columnAge       = "Age"
	columnDiet      = "Diet_Recommendation"
	columnCondition = "Medical_Condition"

	ageBand        = 10
	maxCatalogRows = 20
)

var goalDietPatterns = map[types.Goal][]string{
	types.GoalWeightLoss:  {"low", "low_carb", "low_sodium"},
	types.GoalMuscleGain:  {"high_protein", "balanced"},
	types.GoalMaintenance: {"balanced"},
}

// FoodCatalog filters the nutrition dataset. The backing file is read on
// first use and shared read-only afterwards.
type FoodCatalog struct {
	path   string
	logger *zap.Logger

	once    sync.Once
	columns []string
	rows    [][]string
	loadErr error
}

// NewFoodCatalog creates a catalog backed by an .xlsx or .csv file.
func NewFoodCatalog(path string, logger *zap.Logger) *FoodCatalog {
	return &FoodCatalog{path: path, logger: logger.Named("catalog")}
}

// Filter selects at most 20 rows matching the age band, goal and every
// condition, in file order with exact duplicates removed.
func (c *FoodCatalog) Filter(ctx context.Context, age int, conditions []string, goal string) ([]types.FoodRow, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
	}

	ageIdx := c.columnIndex(columnAge)
	dietIdx := c.columnIndex(columnDiet)
	condIdx := c.columnIndex(columnCondition)
	patterns := goalDietPatterns[types.ParseGoal(goal)]

	lowered := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		lowered = append(lowered, strings.ToLower(cond))
	}

	seen := make(map[string]struct{})
	out := make([]types.FoodRow, 0, maxCatalogRows)
	for _, row := range c.rows {
		if ageIdx >= 0 && !withinAgeBand(cell(row, ageIdx), age) {
			continue
		}
		if dietIdx >= 0 && len(patterns) > 0 && !containsAny(strings.ToLower(cell(row, dietIdx)), patterns) {
			continue
		}
		if condIdx >= 0 && !containsAll(strings.ToLower(cell(row, condIdx)), lowered) {
			continue
		}

		key := strings.Join(row, "\x1f")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		out = append(out, types.FoodRow{Columns: c.columns, Values: row})
		if len(out) == maxCatalogRows {
			break
		}
	}

	c.logger.Debug("filtered catalog",
		zap.Int("age", age),
		zap.Strings("conditions", conditions),
		zap.String("goal", goal),
		zap.Int("rows", len(out)))
	return out, nil
}

// Columns returns the catalog header, loading the file if needed.
func (c *FoodCatalog) Columns() ([]string, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	return c.columns, nil
}

func (c *FoodCatalog) load() error {
	c.once.Do(func() {
		records, err := readTable(c.path)
		if err != nil {
			c.loadErr = fmt.Errorf("%w: %v", ErrDataUnavailable, err)
			c.logger.Error("failed to load catalog", zap.String("path", c.path), zap.Error(err))
			return
		}
		if len(records) == 0 {
			c.loadErr = fmt.Errorf("%w: catalog %s has no header row", ErrDataUnavailable, c.path)
			return
		}

		c.columns = records[0]
		width := len(c.columns)
		c.rows = make([][]string, 0, len(records)-1)
		for _, r := range records[1:] {
			// Spreadsheet rows drop trailing empty cells.
			if len(r) < width {
				padded := make([]string, width)
				copy(padded, r)
				r = padded
			}
			c.rows = append(c.rows, r[:width])
		}
		c.logger.Info("catalog loaded", zap.String("path", c.path), zap.Int("rows", len(c.rows)))
	})
	return c.loadErr
}

func (c *FoodCatalog) columnIndex(name string) int {
	for i, col := range c.columns {
		if col == name {
			return i
		}
	}
	return -1
}

func readTable(path string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("nutrition dataset not found: %s", path)
		}
		return nil, fmt.Errorf("failed to stat dataset: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open dataset: %w", err)
		}
		defer f.Close()
		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		records, err := r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		return records, nil
	default:
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
		}
		return rows, nil
	}
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func withinAgeBand(value string, age int) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return false
	}
	return v >= float64(age-ageBand) && v <= float64(age+ageBand)
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
