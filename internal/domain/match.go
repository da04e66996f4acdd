package domain

// Breakdown holds each field's weighted contribution to a match score.
// Values are in the same units as the field's weight (0..weight).
type Breakdown struct {
	Category    float64 `json:"category"`
	ItemName    float64 `json:"itemName"`
	Location    float64 `json:"location"`
	Date        float64 `json:"date"`
	Description float64 `json:"description"`
}

// Get returns the contribution recorded for field
func (b Breakdown) Get(field Field) float64 {
	switch field {
	case FieldCategory:
		return b.Category
	case FieldItemName:
		return b.ItemName
	case FieldLocation:
		return b.Location
	case FieldDate:
		return b.Date
	case FieldDescription:
		return b.Description
	}
	return 0
}

// Set records the contribution for field
func (b *Breakdown) Set(field Field, v float64) {
	switch field {
	case FieldCategory:
		b.Category = v
	case FieldItemName:
		b.ItemName = v
	case FieldLocation:
		b.Location = v
	case FieldDate:
		b.Date = v
	case FieldDescription:
		b.Description = v
	}
}

// Sum adds the contributions in field order
func (b Breakdown) Sum() float64 {
	var total float64
	for _, f := range Fields {
		total += b.Get(f)
	}
	return total
}

// MatchResult represents one ranked candidate
type MatchResult struct {
	ID        string    `json:"id"`
	Score     float64   `json:"score"` // 0-100
	Breakdown Breakdown `json:"breakdown"`
}

// MatchRequest represents a "find matches for this report" request
type MatchRequest struct {
	Query      *Item  `json:"query" binding:"required"`
	Candidates []Item `json:"candidates" binding:"dive"`
}
