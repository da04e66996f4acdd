package usecase

import (
	"context"
	"time"

	"github.com/lostfound/backend/internal/domain"
)

const day = 24 * time.Hour

// scoreCategory gives full credit only for an exact, case-sensitive match.
// Categories come from a closed vocabulary, so there is no partial credit.
func scoreCategory(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return 0.0
}

// scoreDate maps the whole-day gap between two calendar dates through the decay table.
// An unparseable date on either side is treated as maximally distant.
func scoreDate(a, b string, decay domain.DateDecay) float64 {
	da, ok := domain.ParseDate(a)
	if !ok {
		return 0.0
	}
	db, ok := domain.ParseDate(b)
	if !ok {
		return 0.0
	}
	return decay.Score(daysBetween(da, db))
}

// daysBetween returns the absolute number of whole days between two UTC midnights
func daysBetween(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(diff / day)
}

// scoreName applies the noise floor on top of semantic similarity:
// a raw similarity under the floor contributes nothing.
func (s *MatchingService) scoreName(ctx context.Context, a, b string) float64 {
	raw := s.similarity.Similarity(ctx, a, b)
	if raw < s.nameFloor {
		return 0.0
	}
	return raw
}

// scoreLocation delegates straight to semantic similarity
func (s *MatchingService) scoreLocation(ctx context.Context, a, b string) float64 {
	return s.similarity.Similarity(ctx, a, b)
}

// scoreDescription excludes the field when either side has no description
func (s *MatchingService) scoreDescription(ctx context.Context, query, candidate domain.Item) float64 {
	if !query.HasDescription() || !candidate.HasDescription() {
		return 0.0
	}
	return s.similarity.Similarity(ctx, query.DescriptionText(), candidate.DescriptionText())
}

// scoreField returns the raw [0,1] similarity of one field
func (s *MatchingService) scoreField(ctx context.Context, field domain.Field, query, candidate domain.Item) float64 {
	switch field {
	case domain.FieldCategory:
		return scoreCategory(query.Category, candidate.Category)
	case domain.FieldItemName:
		return s.scoreName(ctx, query.ItemName, candidate.ItemName)
	case domain.FieldLocation:
		return s.scoreLocation(ctx, query.Location, candidate.Location)
	case domain.FieldDate:
		return scoreDate(query.Date, candidate.Date, s.dateDecay)
	case domain.FieldDescription:
		return s.scoreDescription(ctx, query, candidate)
	}
	return 0.0
}
