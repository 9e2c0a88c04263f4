// Package grader scores extracted C-test answers against an answer key and
// converts the raw result into a 0-5 placement score.
package grader

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/DaveyBK/c-test-intake-app/internal/i18n"
	"github.com/DaveyBK/c-test-intake-app/internal/model"
)

// Outcome is the result of grading one submission against one answer key.
type Outcome struct {
	NumItems       int
	NumCorrect     int
	Percentage     float64
	Score          int
	PlacementLevel string
	Items          []model.GradedItem
	Feedback       string
}

// Normalize canonicalizes an answer token for comparison: lower-case,
// surrounding whitespace trimmed, terminal punctuation stripped.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRightFunc(s, unicode.IsPunct)
}

// Grade compares answers against the key item by item. Items absent from
// the extraction are graded as incorrect with an empty student answer;
// extracted items beyond the key are ignored. The context carries the
// localizer used for the feedback text.
func Grade(ctx context.Context, key model.AnswerKey, answers model.ExtractedAnswers, acceptVariants bool) (Outcome, error) {
	if err := key.Validate(); err != nil {
		return Outcome{}, err
	}

	numItems := key.NumItems()
	items := make([]model.GradedItem, 0, numItems)
	numCorrect := 0
	for n := 1; n <= numItems; n++ {
		correct := key.Items[n]
		student := answers[n]
		ok := checkAnswer(student, correct, acceptVariants)
		if ok {
			numCorrect++
		}
		items = append(items, model.GradedItem{
			ItemNumber:    n,
			CorrectAnswer: correct,
			StudentAnswer: student,
			IsCorrect:     ok,
		})
	}

	percentage := float64(numCorrect) / float64(numItems) * 100
	score := ScoreForPercentage(percentage)
	out := Outcome{
		NumItems:       numItems,
		NumCorrect:     numCorrect,
		Percentage:     percentage,
		Score:          score,
		PlacementLevel: PlacementLevel(score),
		Items:          items,
	}
	out.Feedback = feedback(ctx, out)
	return out, nil
}

// checkAnswer reports whether a single normalized student answer matches the
// correct answer, optionally through the spelling-variant table. An empty
// student answer never matches.
func checkAnswer(student, correct string, acceptVariants bool) bool {
	s := Normalize(student)
	c := Normalize(correct)
	if s == "" {
		return false
	}
	if s == c {
		return true
	}
	return acceptVariants && IsVariantPair(s, c)
}

// ScoreForPercentage converts a 0-100 percentage into the 0-5 placement
// score. Band boundaries are inclusive on the lower bound.
func ScoreForPercentage(percentage float64) int {
	switch {
	case percentage >= 90:
		return 5
	case percentage >= 75:
		return 4
	case percentage >= 60:
		return 3
	case percentage >= 45:
		return 2
	case percentage >= 30:
		return 1
	default:
		return 0
	}
}

var placementLevels = map[int]string{
	5: "Advanced",
	4: "Upper-Intermediate",
	3: "Intermediate",
	2: "Pre-Intermediate",
	1: "Elementary",
	0: "Beginner",
}

// PlacementLevel returns the band label for a 0-5 score. Labels are stable
// identifiers shared with the inventory system and are not localized.
func PlacementLevel(score int) string {
	return placementLevels[score]
}

// feedback renders the deterministic item-by-item report.
func feedback(ctx context.Context, out Outcome) string {
	var b strings.Builder
	b.WriteString(i18n.T(ctx, "FeedbackTitle"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n")
	b.WriteString(i18n.Td(ctx, "FeedbackCorrectCount", map[string]any{
		"Correct": out.NumCorrect,
		"Total":   out.NumItems,
	}))
	b.WriteString("\n")
	b.WriteString(i18n.Td(ctx, "FeedbackPercentage", map[string]any{
		"Percentage": fmt.Sprintf("%.1f", out.Percentage),
	}))
	b.WriteString("\n")
	b.WriteString(i18n.Td(ctx, "FeedbackScore", map[string]any{
		"Score": out.Score,
		"Level": out.PlacementLevel,
	}))
	b.WriteString("\n\n")
	b.WriteString(i18n.T(ctx, "FeedbackItemHeader"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", 50))
	for _, item := range out.Items {
		b.WriteString("\n")
		if item.IsCorrect {
			b.WriteString(i18n.Td(ctx, "FeedbackItemCorrect", map[string]any{
				"Number": item.ItemNumber,
				"Answer": item.StudentAnswer,
			}))
		} else {
			b.WriteString(i18n.Td(ctx, "FeedbackItemWrong", map[string]any{
				"Number":   item.ItemNumber,
				"Answer":   item.StudentAnswer,
				"Expected": item.CorrectAnswer,
			}))
		}
	}
	return b.String()
}
