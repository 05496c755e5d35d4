package models

// DetectionSettings tune the object detection overlay
type DetectionSettings struct {
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	MaxDetections       int     `json:"maxDetections"`
	ShowLabels          bool    `json:"showLabels"`
	ShowScores          bool    `json:"showScores"`
}

// OCRSettings tune text recognition
type OCRSettings struct {
	Language      string  `json:"language"`
	MinConfidence float64 `json:"minConfidence"`
}

// PerformanceSettings tune live video analysis
type PerformanceSettings struct {
	VideoFPS int `json:"videoFPS"`
}

// AppSettings is the persisted user configuration
type AppSettings struct {
	Detection   DetectionSettings   `json:"detection"`
	OCR         OCRSettings         `json:"ocr"`
	Performance PerformanceSettings `json:"performance"`
	Version     int                 `json:"version"`
}
