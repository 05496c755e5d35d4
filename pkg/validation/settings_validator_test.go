package validation

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-media-analyzer/pkg/models"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name    string
		setting SettingName
		in      float64
		want    float64
	}{
		{"within range", SettingConfidenceThreshold, 42, 42},
		{"below min", SettingConfidenceThreshold, -5, 0},
		{"above max", SettingConfidenceThreshold, 250, 100},
		{"max detections floor", SettingMaxDetections, 0, 1},
		{"max detections ceiling", SettingMaxDetections, 1e9, 50},
		{"fps floor", SettingVideoFPS, 0, 1},
		{"fps ceiling", SettingVideoFPS, 999, 15},
		{"negative infinity", SettingMinConfidence, math.Inf(-1), 0},
		{"positive infinity", SettingMinConfidence, math.Inf(1), 100},
		{"nan falls back to default", SettingVideoFPS, math.NaN(), 10},
		{"unknown setting passes through", SettingName("brightness"), 1234, 1234},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.in, tt.setting))
		})
	}
}

func TestClampAlwaysWithinRange(t *testing.T) {
	inputs := []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1e12, -1, 0, 0.5, 7, 49.9, 51, 1e12}
	for _, name := range []SettingName{SettingConfidenceThreshold, SettingMaxDetections, SettingMinConfidence, SettingVideoFPS} {
		r, ok := RangeFor(name)
		require.True(t, ok)
		for _, in := range inputs {
			got := Clamp(in, name)
			assert.False(t, math.IsNaN(got), "%s(%v)", name, in)
			assert.GreaterOrEqual(t, got, r.Min, "%s(%v)", name, in)
			assert.LessOrEqual(t, got, r.Max, "%s(%v)", name, in)
		}
	}
}

func TestValidateLanguage(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"eng", "eng"},
		{"  FRA ", "fra"},
		{"chi_sim", "chi_sim"},
		{"klingon", "eng"},
		{"", "eng"},
		{nil, "eng"},
		{42, "eng"},
		{[]string{"deu"}, "eng"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidateLanguage(tt.in), "input %#v", tt.in)
	}
}

func TestValidateSettings_EmptyYieldsDefaults(t *testing.T) {
	want := models.AppSettings{
		Detection: models.DetectionSettings{
			ConfidenceThreshold: 50,
			MaxDetections:       20,
			ShowLabels:          true,
			ShowScores:          true,
		},
		OCR:         models.OCRSettings{Language: "eng", MinConfidence: 60},
		Performance: models.PerformanceSettings{VideoFPS: 10},
		Version:     CurrentSettingsVersion,
	}

	if diff := cmp.Diff(want, ValidateSettings(map[string]any{})); diff != "" {
		t.Errorf("ValidateSettings({}) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, ValidateSettings(nil)); diff != "" {
		t.Errorf("ValidateSettings(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateSettings_DeepMerge(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"detection": {"confidenceThreshold": 75, "showLabels": false},
		"ocr": {"language": "DEU"},
		"version": 0
	}`), &raw))

	got := ValidateSettings(raw)

	want := DefaultSettings()
	want.Detection.ConfidenceThreshold = 75
	want.Detection.ShowLabels = false
	want.OCR.Language = "deu"

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("deep merge mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateSettings_MalformedFields(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"detection": {"confidenceThreshold": "high", "maxDetections": 7.6, "showScores": "yes"},
		"ocr": {"language": 12, "minConfidence": -30},
		"performance": {"videoFPS": 120}
	}`), &raw))

	got := ValidateSettings(raw)

	assert.Equal(t, 50.0, got.Detection.ConfidenceThreshold)
	assert.Equal(t, 8, got.Detection.MaxDetections)
	assert.True(t, got.Detection.ShowScores)
	assert.Equal(t, "eng", got.OCR.Language)
	assert.Equal(t, 0.0, got.OCR.MinConfidence)
	assert.Equal(t, 15, got.Performance.VideoFPS)
}

func TestValidateSettings_WrongSectionTypes(t *testing.T) {
	raw := map[string]any{
		"detection":   "nope",
		"ocr":         []any{1, 2},
		"performance": nil,
	}
	if diff := cmp.Diff(DefaultSettings(), ValidateSettings(raw)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeSettings(t *testing.T) {
	in := models.AppSettings{
		Detection: models.DetectionSettings{
			ConfidenceThreshold: math.NaN(),
			MaxDetections:       500,
			ShowLabels:          false,
		},
		OCR:         models.OCRSettings{Language: "xx", MinConfidence: 101},
		Performance: models.PerformanceSettings{VideoFPS: -3},
		Version:     7,
	}

	got := NormalizeSettings(in)

	assert.Equal(t, 50.0, got.Detection.ConfidenceThreshold)
	assert.Equal(t, 50, got.Detection.MaxDetections)
	assert.False(t, got.Detection.ShowLabels)
	assert.False(t, got.Detection.ShowScores)
	assert.Equal(t, "eng", got.OCR.Language)
	assert.Equal(t, 100.0, got.OCR.MinConfidence)
	assert.Equal(t, 1, got.Performance.VideoFPS)
	assert.Equal(t, CurrentSettingsVersion, got.Version)
}
