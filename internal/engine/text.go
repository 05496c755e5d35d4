package engine

import (
	"math"
	"sort"
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"

	"go-media-analyzer/pkg/models"
)

// ReadingOrder sorts regions top to bottom, then left to right. Regions
// whose vertical centres lie within half the median region height share a
// line. Regions without a box keep their order and go last.
func ReadingOrder(regions []models.TextRegion) [][]models.TextRegion {
	var boxed, loose []models.TextRegion
	for _, r := range regions {
		if r.BoundingBox == nil {
			loose = append(loose, r)
			continue
		}
		boxed = append(boxed, r)
	}

	tolerance := medianHeight(boxed) / 2
	sort.SliceStable(boxed, func(i, j int) bool {
		return centerY(boxed[i]) < centerY(boxed[j])
	})

	var lines [][]models.TextRegion
	var lineCenter float64
	for _, r := range boxed {
		cy := centerY(r)
		if len(lines) == 0 || math.Abs(cy-lineCenter) > tolerance {
			lines = append(lines, []models.TextRegion{r})
			lineCenter = cy
			continue
		}
		last := len(lines) - 1
		lines[last] = append(lines[last], r)
		// keep the line centre as the running mean of its members
		lineCenter += (cy - lineCenter) / float64(len(lines[last]))
	}
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool {
			return line[i].BoundingBox.X < line[j].BoundingBox.X
		})
	}
	if len(loose) > 0 {
		lines = append(lines, loose)
	}
	return lines
}

// AssembleText joins regions in reading order: words with spaces, lines with newlines
func AssembleText(regions []models.TextRegion) string {
	lines := ReadingOrder(regions)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		words := make([]string, 0, len(line))
		for _, r := range line {
			if t := strings.TrimSpace(r.Text); t != "" {
				words = append(words, t)
			}
		}
		if len(words) > 0 {
			out = append(out, strings.Join(words, " "))
		}
	}
	return strings.Join(out, "\n")
}

func centerY(r models.TextRegion) float64 {
	return r.BoundingBox.Y + r.BoundingBox.Height/2
}

func medianHeight(regions []models.TextRegion) float64 {
	if len(regions) == 0 {
		return 0
	}
	heights := make([]float64, len(regions))
	for i, r := range regions {
		heights[i] = r.BoundingBox.Height
	}
	sort.Float64s(heights)
	mid := len(heights) / 2
	if len(heights)%2 == 0 {
		return (heights[mid-1] + heights[mid]) / 2
	}
	return heights[mid]
}

// CompareText scores recognized text against the expected transcription.
// Comparison ignores case and collapses whitespace.
func CompareText(recognized, expected string) *models.TextAccuracy {
	rec := normalizeText(recognized)
	exp := normalizeText(expected)

	cer := errorRate(levenshtein.Distance(rec, exp), len([]rune(exp)), rec == "")
	wordRate := wordErrorRate(strings.Fields(rec), strings.Fields(exp))

	return &models.TextAccuracy{
		ExpectedText:       expected,
		CharacterErrorRate: round4(cer),
		WordErrorRate:      round4(wordRate),
		MatchScore:         math.Round(math.Max(0, 1-cer)*1e4) / 100,
	}
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func errorRate(distance, reference int, hypothesisEmpty bool) float64 {
	if reference == 0 {
		if hypothesisEmpty {
			return 0
		}
		return 1
	}
	return float64(distance) / float64(reference)
}

// wordErrorRate divides word edits by the expected word count. An empty
// expectation scores 0 for an empty recognition and 1 otherwise.
func wordErrorRate(recognized, expected []string) float64 {
	if len(expected) == 0 {
		return errorRate(0, 0, len(recognized) == 0)
	}
	rate, _ := wer.WER(expected, recognized)
	return rate
}
