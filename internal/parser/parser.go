// Package parser extracts C-test answers from free-form submission text.
//
// Two input shapes are recognized. The numbered-list format carries item
// numbers on each line ("1. weather" or "1) weather") and supports
// out-of-order or partial lists. The bracket format interleaves completions
// with the prompt text ("The wea[weather] was col[cold]") and assigns item
// numbers by order of occurrence.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/DaveyBK/c-test-intake-app/internal/model"
)

var (
	numberedLineRe = regexp.MustCompile(`^\s*(\d+)[.)]\s*([a-zA-Z]+)`)
	bracketRe      = regexp.MustCompile(`\[([a-zA-Z]+)\]`)
)

// Extract parses a submission into answers for items 1..numItems.
// It is total: it never fails, and every item is present in the returned
// map, with unanswered items mapped to the empty string. The numbered-list
// format is tried first and wins as soon as it yields at least one item;
// otherwise the bracket format is tried. Raw answers are trimmed of
// surrounding whitespace but otherwise kept as the student wrote them.
func Extract(text string, numItems int) model.ExtractedAnswers {
	answers := make(model.ExtractedAnswers, numItems)
	for n := 1; n <= numItems; n++ {
		answers[n] = ""
	}

	found := parseNumberedList(text, numItems)
	if len(found) == 0 {
		found = parseBracketFormat(text, numItems)
	}
	for n, a := range found {
		answers[n] = a
	}
	return answers
}

// parseNumberedList collects "N. answer" / "N) answer" lines. Lines that do
// not match the pattern are ignored, as are item numbers outside 1..numItems.
func parseNumberedList(text string, numItems int) map[int]string {
	found := make(map[int]string)
	for _, line := range strings.Split(text, "\n") {
		m := numberedLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > numItems {
			continue
		}
		found[n] = strings.TrimSpace(m[2])
	}
	return found
}

// parseBracketFormat collects [completion] tokens in reading order and
// numbers them 1..numItems. Tokens beyond numItems are ignored.
func parseBracketFormat(text string, numItems int) map[int]string {
	found := make(map[int]string)
	for i, m := range bracketRe.FindAllStringSubmatch(text, -1) {
		n := i + 1
		if n > numItems {
			break
		}
		found[n] = strings.TrimSpace(m[1])
	}
	return found
}
