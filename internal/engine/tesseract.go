//go:build tesseract

package engine

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	apperrors "go-media-analyzer/internal/errors"
	"go-media-analyzer/internal/logger"
	"go-media-analyzer/pkg/models"
	"go-media-analyzer/pkg/validation"
)

// TesseractEngine runs OCR through libtesseract. The client is not safe for
// concurrent use, so calls are serialized.
type TesseractEngine struct {
	dataPath string
	life     *Lifecycle
	log      *logrus.Entry

	mu     sync.Mutex
	client *gosseract.Client
}

var _ Engine = (*TesseractEngine)(nil)

// NewTesseractEngine creates an OCR engine; dataPath overrides TESSDATA_PREFIX when set
func NewTesseractEngine(dataPath string) *TesseractEngine {
	t := &TesseractEngine{dataPath: dataPath, log: logger.ForComponent("tesseract")}
	t.life = NewLifecycle("tesseract", t.open, t.close)
	return t
}

func (t *TesseractEngine) open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	client := gosseract.NewClient()
	if t.dataPath != "" {
		if err := client.SetTessdataPrefix(t.dataPath); err != nil {
			client.Close()
			return err
		}
	}
	if err := client.SetLanguage(validation.DefaultLanguage); err != nil {
		client.Close()
		return err
	}
	t.client = client
	t.log.WithField("version", client.Version()).Info("Tesseract initialized")
	return nil
}

func (t *TesseractEngine) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func (t *TesseractEngine) Mode() models.AnalysisMode { return models.ModeOCR }

func (t *TesseractEngine) Initialize(ctx context.Context) error { return t.life.Initialize(ctx) }

func (t *TesseractEngine) Ready() bool { return t.life.Ready() }

func (t *TesseractEngine) Dispose() error { return t.life.Dispose() }

func (t *TesseractEngine) Infer(ctx context.Context, frame image.Image, opts Options) (models.AnalysisResult, error) {
	if err := t.life.requireReady(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, apperrors.NewInferenceError("empty frame", nil)
	}

	started := time.Now()
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return nil, apperrors.NewInferenceError("failed to encode frame", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewInferenceError("recognition cancelled", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	language := ocrLanguage(opts.Language)
	regions, err := t.recognize(buf.Bytes(), language)
	if err != nil && language != validation.DefaultLanguage {
		langErr := apperrors.NewLanguagePackError("language pack "+language+" unavailable", err)
		t.log.WithError(langErr).Warn("Falling back to default OCR language")
		language = validation.DefaultLanguage
		regions, err = t.recognize(buf.Bytes(), language)
	}
	if err != nil {
		t.restart()
		return nil, apperrors.NewWorkerError("tesseract recognition failed", err)
	}

	return buildOCRResult(regions, language, frameDimensions(frame), started, opts.ExpectedText), nil
}

func (t *TesseractEngine) recognize(data []byte, language string) ([]models.TextRegion, error) {
	if err := t.client.SetLanguage(language); err != nil {
		return nil, err
	}
	if err := t.client.SetImageFromBytes(data); err != nil {
		return nil, err
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, err
	}

	regions := make([]models.TextRegion, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		regions = append(regions, models.TextRegion{
			Text:       text,
			Confidence: b.Confidence,
			BoundingBox: &models.BoundingBox{
				X:      float64(b.Box.Min.X),
				Y:      float64(b.Box.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
			Language: language,
		})
	}
	return regions, nil
}

// restart replaces a client that failed mid-recognition. Caller holds mu.
func (t *TesseractEngine) restart() {
	if t.client != nil {
		t.client.Close()
	}
	t.client = gosseract.NewClient()
	if t.dataPath != "" {
		t.client.SetTessdataPrefix(t.dataPath)
	}
	t.log.Warn("Tesseract client restarted")
}
