package ratings

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	MinScore = 1
	MaxScore = 10

	// MaxStars is the top of the display scale that overall ratings are
	// mapped onto.
	MaxStars = 5
)

const (
	CategoryCharacters    = "Characters"
	CategoryWorldBuilding = "World Building"
	CategoryPlot          = "Plot"
	CategoryWritingStyle  = "Writing Style"
	CategoryEnjoyment     = "Enjoyment"
)

// Categories lists the rating categories in display order.
var Categories = []string{
	CategoryCharacters,
	CategoryWorldBuilding,
	CategoryPlot,
	CategoryWritingStyle,
	CategoryEnjoyment,
}

// Ratings holds the five sub-scores of a book. A nil score means the category
// was marked as not applicable.
type Ratings struct {
	Characters    *int `json:"characters"`
	WorldBuilding *int `json:"world_building"`
	Plot          *int `json:"plot"`
	WritingStyle  *int `json:"writing_style"`
	Enjoyment     *int `json:"enjoyment"`
}

// Score is a convenience for building Ratings literals.
func Score(v int) *int {
	return &v
}

func (r Ratings) scores() []*int {
	return []*int{r.Characters, r.WorldBuilding, r.Plot, r.WritingStyle, r.Enjoyment}
}

// Present returns the scores that aren't N/A, in category order.
func (r Ratings) Present() []int {
	present := make([]int, 0, 5)
	for _, s := range r.scores() {
		if s != nil {
			present = append(present, *s)
		}
	}
	return present
}

// Validate checks that every present score is within range.
func (r Ratings) Validate() error {
	for i, s := range r.scores() {
		if s == nil {
			continue
		}
		if *s < MinScore || *s > MaxScore {
			return fmt.Errorf("%s rating must be between %d and %d", Categories[i], MinScore, MaxScore)
		}
	}
	return nil
}

// Overall averages the present scores and rounds half-up to one decimal. A
// book where every category is N/A has an overall rating of 0.
func Overall(r Ratings) float64 {
	present := r.Present()
	if len(present) == 0 {
		return 0
	}
	return average(present, len(present))
}

// LegacyOverall is the older aggregation that always divided by the number of
// categories, counting N/A scores as zero.
func LegacyOverall(r Ratings) float64 {
	return average(r.Present(), len(Categories))
}

// Stars converts a 0-10 overall rating into the 0-5 display scale, rounded
// half-up to one decimal.
func Stars(overall float64) float64 {
	d := decimal.NewFromFloat(overall).
		Div(decimal.NewFromInt(MaxScore)).
		Mul(decimal.NewFromInt(MaxStars))
	return toFloat(d.Round(1))
}

// LegacyStars converts a rating produced by LegacyOverall. Both formulas share
// the 0-10 source scale so the conversion halves the value the same way.
func LegacyStars(overall float64) float64 {
	return toFloat(decimal.NewFromFloat(overall).Div(decimal.NewFromInt(2)).Round(1))
}

func average(values []int, divisor int) float64 {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromInt(int64(v)))
	}
	return toFloat(sum.Div(decimal.NewFromInt(int64(divisor))).Round(1))
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
