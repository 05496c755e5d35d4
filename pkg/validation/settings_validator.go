package validation

import (
	"math"
	"strings"

	"go-media-analyzer/pkg/models"
)

// SettingName identifies a numeric setting with a registered closed range
type SettingName string

const (
	SettingConfidenceThreshold SettingName = "confidenceThreshold"
	SettingMaxDetections       SettingName = "maxDetections"
	SettingMinConfidence       SettingName = "minConfidence"
	SettingVideoFPS            SettingName = "videoFPS"
)

// CurrentSettingsVersion is the shape version written by this build
const CurrentSettingsVersion = 1

// DefaultLanguage is used whenever a language value is missing or unsupported
const DefaultLanguage = "eng"

// SettingRange is an inclusive numeric range with its default value
type SettingRange struct {
	Min     float64
	Max     float64
	Default float64
}

var settingRanges = map[SettingName]SettingRange{
	SettingConfidenceThreshold: {Min: 0, Max: 100, Default: 50},
	SettingMaxDetections:       {Min: 1, Max: 50, Default: 20},
	SettingMinConfidence:       {Min: 0, Max: 100, Default: 60},
	SettingVideoFPS:            {Min: 1, Max: 15, Default: 10},
}

// SupportedLanguages are the OCR language codes the application accepts
var SupportedLanguages = []string{
	"eng", "spa", "fra", "deu", "ita", "por", "rus", "chi_sim", "jpn", "kor", "ara", "hin",
}

// RangeFor returns the registered range for a setting
func RangeFor(name SettingName) (SettingRange, bool) {
	r, ok := settingRanges[name]
	return r, ok
}

// DefaultSettings returns the documented default configuration
func DefaultSettings() models.AppSettings {
	return models.AppSettings{
		Detection: models.DetectionSettings{
			ConfidenceThreshold: settingRanges[SettingConfidenceThreshold].Default,
			MaxDetections:       int(settingRanges[SettingMaxDetections].Default),
			ShowLabels:          true,
			ShowScores:          true,
		},
		OCR: models.OCRSettings{
			Language:      DefaultLanguage,
			MinConfidence: settingRanges[SettingMinConfidence].Default,
		},
		Performance: models.PerformanceSettings{
			VideoFPS: int(settingRanges[SettingVideoFPS].Default),
		},
		Version: CurrentSettingsVersion,
	}
}

// Clamp limits value to the closed range registered for name.
// NaN yields the setting's default. Unknown names pass the value through.
func Clamp(value float64, name SettingName) float64 {
	r, ok := settingRanges[name]
	if !ok {
		return value
	}
	if math.IsNaN(value) {
		return r.Default
	}
	return math.Max(r.Min, math.Min(r.Max, value))
}

// ClampInt clamps and rounds to the nearest integer, for integral settings
func ClampInt(value float64, name SettingName) int {
	return int(math.Round(Clamp(value, name)))
}

// IsSupportedLanguage reports whether code is in SupportedLanguages
func IsSupportedLanguage(code string) bool {
	for _, lang := range SupportedLanguages {
		if lang == code {
			return true
		}
	}
	return false
}

// ValidateLanguage normalizes an arbitrary value to a supported language code
func ValidateLanguage(value any) string {
	s, ok := value.(string)
	if !ok {
		return DefaultLanguage
	}
	code := strings.ToLower(strings.TrimSpace(s))
	if !IsSupportedLanguage(code) {
		return DefaultLanguage
	}
	return code
}

// ValidateSettings deep-merges a decoded settings document over the defaults.
// Every present field is validated on its own; anything missing or malformed
// takes the default. It never fails.
func ValidateSettings(raw map[string]any) models.AppSettings {
	out := DefaultSettings()
	if raw == nil {
		return out
	}

	if detection, ok := raw["detection"].(map[string]any); ok {
		out.Detection.ConfidenceThreshold = numberSetting(detection["confidenceThreshold"], SettingConfidenceThreshold)
		out.Detection.MaxDetections = int(math.Round(numberSetting(detection["maxDetections"], SettingMaxDetections)))
		out.Detection.ShowLabels = boolSetting(detection["showLabels"], out.Detection.ShowLabels)
		out.Detection.ShowScores = boolSetting(detection["showScores"], out.Detection.ShowScores)
	}

	if ocr, ok := raw["ocr"].(map[string]any); ok {
		out.OCR.Language = ValidateLanguage(ocr["language"])
		out.OCR.MinConfidence = numberSetting(ocr["minConfidence"], SettingMinConfidence)
	}

	if performance, ok := raw["performance"].(map[string]any); ok {
		out.Performance.VideoFPS = int(math.Round(numberSetting(performance["videoFPS"], SettingVideoFPS)))
	}

	return out
}

// NormalizeSettings runs a typed settings value through the same rules as
// ValidateSettings.
func NormalizeSettings(s models.AppSettings) models.AppSettings {
	out := s
	out.Detection.ConfidenceThreshold = Clamp(s.Detection.ConfidenceThreshold, SettingConfidenceThreshold)
	out.Detection.MaxDetections = ClampInt(float64(s.Detection.MaxDetections), SettingMaxDetections)
	out.OCR.Language = ValidateLanguage(s.OCR.Language)
	out.OCR.MinConfidence = Clamp(s.OCR.MinConfidence, SettingMinConfidence)
	out.Performance.VideoFPS = ClampInt(float64(s.Performance.VideoFPS), SettingVideoFPS)
	out.Version = CurrentSettingsVersion
	return out
}

// numberSetting accepts JSON numbers only; anything else is the default
func numberSetting(value any, name SettingName) float64 {
	r := settingRanges[name]
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return r.Default
	}
	if math.IsNaN(f) {
		return r.Default
	}
	return Clamp(f, name)
}

func boolSetting(value any, fallback bool) bool {
	if b, ok := value.(bool); ok {
		return b
	}
	return fallback
}
