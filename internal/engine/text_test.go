package engine

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-media-analyzer/pkg/models"
)

func region(text string, x, y, w, h float64) models.TextRegion {
	return models.TextRegion{
		Text:        text,
		Confidence:  90,
		BoundingBox: &models.BoundingBox{X: x, Y: y, Width: w, Height: h},
	}
}

func TestReadingOrderGroupsLines(t *testing.T) {
	regions := []models.TextRegion{
		region("world", 60, 10, 40, 20),
		region("second", 0, 50, 60, 20),
		region("hello", 0, 14, 50, 20),
		{Text: "tail"},
		region("line", 70, 52, 30, 18),
	}

	lines := ReadingOrder(regions)

	var got [][]string
	for _, line := range lines {
		var words []string
		for _, r := range line {
			words = append(words, r.Text)
		}
		got = append(got, words)
	}
	want := [][]string{{"hello", "world"}, {"second", "line"}, {"tail"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reading order mismatch (-want +got):\n%s", diff)
	}
}

func TestReadingOrderToleranceIsHalfMedianHeight(t *testing.T) {
	// centres 10 and 21 apart by 11 with median height 20: separate lines
	regions := []models.TextRegion{
		region("b", 0, 11, 10, 20),
		region("a", 50, 0, 10, 20),
	}
	assert.Equal(t, "a\nb", AssembleText(regions))

	// 9 apart: same line, ordered left to right
	regions[0].BoundingBox.Y = 9
	assert.Equal(t, "b a", AssembleText(regions))
}

func TestAssembleTextSkipsBlankRegions(t *testing.T) {
	regions := []models.TextRegion{
		region("  ", 0, 0, 10, 10),
		region("ok", 20, 0, 10, 10),
	}
	assert.Equal(t, "ok", AssembleText(regions))
	assert.Equal(t, "", AssembleText(nil))
}

func TestCompareText(t *testing.T) {
	tests := []struct {
		name       string
		recognized string
		expected   string
		cer, wer   float64
		match      float64
	}{
		{"exact ignoring case and spacing", "Hello   World", "hello world", 0, 0, 100},
		{"one missing character", "helo world", "hello world", 0.0909, 0.5, 90.91},
		{"both empty", "", "", 0, 0, 100},
		{"nothing expected", "abc", "", 1, 1, 0},
		{"nothing recognized", "", "two words", 1, 1, 0},
		{"word swap", "world hello", "hello world", 0.7273, 1, 27.27},
		{"extra word", "hello big world", "hello world", 0.3636, 0.5, 63.64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := CompareText(tt.recognized, tt.expected)
			require.NotNil(t, acc)
			assert.Equal(t, tt.expected, acc.ExpectedText)
			assert.InDelta(t, tt.cer, acc.CharacterErrorRate, 1e-4)
			assert.InDelta(t, tt.wer, acc.WordErrorRate, 1e-4)
			assert.InDelta(t, tt.match, acc.MatchScore, 1e-2)
		})
	}
}

func TestBuildOCRResult(t *testing.T) {
	started := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	dims := models.Dimensions{Width: 640, Height: 480}

	result := buildOCRResult(nil, "eng", dims, started, "")
	assert.NotNil(t, result.TextRegions)
	assert.Empty(t, result.FullText)
	assert.Nil(t, result.Accuracy)
	assert.Equal(t, "2024-05-01T08:00:00.000Z", result.Timestamp)

	regions := []models.TextRegion{region("total", 0, 0, 40, 12), region("42", 50, 1, 20, 12)}
	result = buildOCRResult(regions, "eng", dims, started, "total 42")
	assert.Equal(t, "total 42", result.FullText)
	require.NotNil(t, result.Accuracy)
	assert.Equal(t, 100.0, result.Accuracy.MatchScore)
	assert.Equal(t, dims, result.ImageDimensions)
}

func TestOCRLanguage(t *testing.T) {
	assert.Equal(t, "eng", ocrLanguage(""))
	assert.Equal(t, "deu", ocrLanguage(" DEU "))
	assert.Equal(t, "eng", ocrLanguage("klingon"))
}
