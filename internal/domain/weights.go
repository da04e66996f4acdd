package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Field identifies a scored attribute of an Item
type Field string

const (
	FieldCategory    Field = "category"
	FieldItemName    Field = "itemName"
	FieldLocation    Field = "location"
	FieldDate        Field = "date"
	FieldDescription Field = "description"
)

// Fields lists the scored fields in aggregation order
var Fields = []Field{FieldCategory, FieldItemName, FieldLocation, FieldDate, FieldDescription}

// TotalWeight is the value every weight table must sum to
const TotalWeight = 100.0

const weightTolerance = 1e-9

// ParseField resolves a field name. Names are matched case-insensitively so
// config keys like "itemname" (viper lowercases map keys) resolve.
func ParseField(name string) (Field, bool) {
	for _, f := range Fields {
		if strings.EqualFold(string(f), strings.TrimSpace(name)) {
			return f, true
		}
	}
	return "", false
}

// FieldWeights maps each scored field to its share of the 100-point score
type FieldWeights struct {
	Category    float64 `json:"category"`
	ItemName    float64 `json:"itemName"`
	Location    float64 `json:"location"`
	Date        float64 `json:"date"`
	Description float64 `json:"description"`
}

// DefaultFieldWeights returns the standard weight table
func DefaultFieldWeights() FieldWeights {
	return FieldWeights{
		Category:    10,
		ItemName:    20,
		Location:    20,
		Date:        10,
		Description: 40,
	}
}

// ParseFieldWeights builds a weight table from a name->weight map.
// Fields missing from the map get weight 0.
func ParseFieldWeights(m map[string]float64) (FieldWeights, error) {
	var w FieldWeights
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, ok := ParseField(name)
		if !ok {
			return FieldWeights{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		w.Set(f, m[name])
	}
	if err := w.Validate(); err != nil {
		return FieldWeights{}, err
	}
	return w, nil
}

// Get returns the weight of field
func (w FieldWeights) Get(field Field) float64 {
	switch field {
	case FieldCategory:
		return w.Category
	case FieldItemName:
		return w.ItemName
	case FieldLocation:
		return w.Location
	case FieldDate:
		return w.Date
	case FieldDescription:
		return w.Description
	}
	return 0
}

// Set assigns the weight of field
func (w *FieldWeights) Set(field Field, v float64) {
	switch field {
	case FieldCategory:
		w.Category = v
	case FieldItemName:
		w.ItemName = v
	case FieldLocation:
		w.Location = v
	case FieldDate:
		w.Date = v
	case FieldDescription:
		w.Description = v
	}
}

// Sum returns the total of all weights
func (w FieldWeights) Sum() float64 {
	var total float64
	for _, f := range Fields {
		total += w.Get(f)
	}
	return total
}

// Map returns the table keyed by field name
func (w FieldWeights) Map() map[string]float64 {
	m := make(map[string]float64, len(Fields))
	for _, f := range Fields {
		m[string(f)] = w.Get(f)
	}
	return m
}

// Validate checks that no weight is negative and the table sums to 100
func (w FieldWeights) Validate() error {
	for _, f := range Fields {
		v := w.Get(f)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s weight must be a non-negative number, got %v", ErrInvalidWeights, f, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-TotalWeight) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want %v", ErrInvalidWeights, sum, TotalWeight)
	}
	return nil
}

// DateDecay is a step table indexed by the whole-day gap between two dates.
// Gaps beyond the end of the table score 0.
type DateDecay []float64

// DefaultDateDecay returns the standard table: 0 days 1.0 down to 4 days 0.2
func DefaultDateDecay() DateDecay {
	return DateDecay{1.0, 0.8, 0.6, 0.4, 0.2}
}

// Score returns the similarity for a gap of days
func (d DateDecay) Score(days int) float64 {
	if days < 0 {
		days = -days
	}
	if days >= len(d) {
		return 0
	}
	return d[days]
}

// Validate checks the table is non-empty, within [0,1] and non-increasing
func (d DateDecay) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("%w: date decay table is empty", ErrInvalidConfig)
	}
	for i, v := range d {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%w: date decay step %d must be within [0,1], got %v", ErrInvalidConfig, i, v)
		}
		if i > 0 && v > d[i-1] {
			return fmt.Errorf("%w: date decay step %d (%v) exceeds step %d (%v)", ErrInvalidConfig, i, v, i-1, d[i-1])
		}
	}
	return nil
}
