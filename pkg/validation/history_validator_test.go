package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-media-analyzer/pkg/models"
)

const detectionEntry = `{
	"id": "a1", "timestamp": "2024-01-01T00:00:00.000Z", "analysisType": "detection",
	"imageDataURL": "data:image/jpeg;base64,AAAA",
	"results": {"objects": [{"bbox": [1, 2, 3, 4], "class": "dog", "score": 0.9}], "inferenceTime": 12},
	"imageDimensions": {"width": 400, "height": 300}
}`

const classificationEntry = `{
	"id": "b2", "timestamp": "2024-01-01T00:00:01.000Z", "analysisType": "classification",
	"imageDataURL": "data:image/jpeg;base64,BBBB",
	"results": {"predictions": [{"label": "cat", "confidence": 0.8}], "inferenceTime": 5,
		"timestamp": "2024-01-01T00:00:01.000Z", "imageDimensions": {"width": 10, "height": 10}},
	"imageDimensions": {"width": 10, "height": 10}
}`

const ocrEntry = `{
	"id": "c3", "timestamp": "2024-01-01T00:00:02.000Z", "analysisType": "ocr",
	"imageDataURL": "data:image/jpeg;base64,CCCC",
	"results": {"textRegions": [{"text": "hi", "confidence": 91}], "fullText": "hi", "processingTime": 30,
		"timestamp": "2024-01-01T00:00:02.000Z", "imageDimensions": {"width": 20, "height": 20}, "language": "eng"},
	"imageDimensions": {"width": 20, "height": 20}
}`

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestIsValidEntry(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"detection", detectionEntry, true},
		{"classification", classificationEntry, true},
		{"ocr", ocrEntry, true},
		{"null", `null`, false},
		{"number", `42`, false},
		{"unknown type", `{"id":"x","timestamp":"t","analysisType":"segmentation","imageDataURL":"d","results":{},"imageDimensions":{"width":1,"height":1}}`, false},
		{"numeric id", `{"id":1,"timestamp":"t","analysisType":"ocr","imageDataURL":"d","results":{"fullText":"","textRegions":[]},"imageDimensions":{"width":1,"height":1}}`, false},
		{"missing dimensions", `{"id":"x","timestamp":"t","analysisType":"ocr","imageDataURL":"d","results":{"fullText":"","textRegions":[]}}`, false},
		{"string dimensions", `{"id":"x","timestamp":"t","analysisType":"ocr","imageDataURL":"d","results":{"fullText":"","textRegions":[]},"imageDimensions":{"width":"1","height":1}}`, false},
		{"null results", `{"id":"x","timestamp":"t","analysisType":"ocr","imageDataURL":"d","results":null,"imageDimensions":{"width":1,"height":1}}`, false},
		{"short bbox", `{"id":"x","timestamp":"t","analysisType":"detection","imageDataURL":"d","results":{"objects":[{"bbox":[1,2,3],"class":"a","score":1}]},"imageDimensions":{"width":1,"height":1}}`, false},
		{"object without class", `{"id":"x","timestamp":"t","analysisType":"detection","imageDataURL":"d","results":{"objects":[{"bbox":[1,2,3,4],"score":1}]},"imageDimensions":{"width":1,"height":1}}`, false},
		{"prediction without confidence", `{"id":"x","timestamp":"t","analysisType":"classification","imageDataURL":"d","results":{"predictions":[{"label":"a"}]},"imageDimensions":{"width":1,"height":1}}`, false},
		{"ocr without fullText", `{"id":"x","timestamp":"t","analysisType":"ocr","imageDataURL":"d","results":{"textRegions":[]},"imageDimensions":{"width":1,"height":1}}`, false},
		{"tag mismatch", `{"id":"x","timestamp":"t","analysisType":"detection","imageDataURL":"d","results":{"predictions":[]},"imageDimensions":{"width":1,"height":1}}`, false},
		{"mixed variants", `{"id":"x","timestamp":"t","analysisType":"detection","imageDataURL":"d","results":{"objects":[],"fullText":"x"},"imageDimensions":{"width":1,"height":1}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidEntry(decode(t, tt.raw)))
		})
	}
}

func TestFilterValid_NonArray(t *testing.T) {
	for _, raw := range []string{`null`, `{}`, `"history"`, `12`} {
		got := FilterValid(decode(t, raw))
		assert.NotNil(t, got)
		assert.Empty(t, got, raw)
	}
}

func TestFilterValid_KeepsWellFormedInOrder(t *testing.T) {
	raw := `[` + ocrEntry + `, null, 7, "junk", {"id": "half"}, ` + detectionEntry + `, [], ` + classificationEntry + `]`

	got := FilterValid(decode(t, raw))

	require.Len(t, got, 3)
	assert.Equal(t, "c3", got[0].ID)
	assert.Equal(t, "a1", got[1].ID)
	assert.Equal(t, "b2", got[2].ID)

	det, ok := got[1].Results.(models.DetectionResult)
	require.True(t, ok)
	assert.Equal(t, [4]float64{1, 2, 3, 4}, det.Objects[0].BBox)
	assert.Equal(t, models.ModeOCR, got[0].Results.Mode())
	assert.Equal(t, models.ModeClassification, got[2].Results.Mode())
}
