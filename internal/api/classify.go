package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sleeplessdev/voicedetect-go/internal/audio"
	"github.com/sleeplessdev/voicedetect-go/internal/conf"
	"github.com/sleeplessdev/voicedetect-go/internal/errors"
)

// classifyResponse mirrors the multipart endpoint's success payload.
type classifyResponse struct {
	Status               string             `json:"status"`
	Classification       string             `json:"classification"`
	ConfidenceScore      float64            `json:"confidenceScore"`
	LanguageDetected     string             `json:"languageDetected"`
	Probabilities        map[string]float64 `json:"probabilities"`
	AudioDurationSeconds float64            `json:"audioDurationSeconds"`
	ProcessingMs         float64            `json:"processingMs"`
	Explanation          string             `json:"explanation"`
}

// Classify handles POST /api/v1/classify: a multipart upload with a `file`
// part and a `language` form field. The filename extension is the declared
// format; decode failures and duration violations map to 400.
func (c *Controller) Classify(ctx echo.Context) error {
	lang, ok := c.matchLanguage(ctx.FormValue("language"))
	if !ok {
		return c.HandleError(ctx, nil, c.unsupportedLanguageMessage(), http.StatusBadRequest)
	}

	raw, filename, err := c.readUpload(ctx)
	if err != nil {
		return err
	}

	result, err := c.Engine.Detect(raw, audio.DetectFormat(raw, filename), lang.Code)
	if err != nil {
		return c.ingestErrorResponse(ctx, err)
	}

	c.logger.Info("classified upload",
		"language", lang.Code,
		"classification", result.Label,
		"confidence", result.Confidence,
		"duration_s", result.Duration,
		"processing_ms", result.ProcessingMs)

	return ctx.JSON(http.StatusOK, classifyResponse{
		Status:               "success",
		Classification:       string(result.Label),
		ConfidenceScore:      result.Confidence,
		LanguageDetected:     lang.Name,
		Probabilities:        probabilities(result.Score),
		AudioDurationSeconds: result.Duration,
		ProcessingMs:         float64(result.ProcessingMs),
		Explanation:          result.Explanation,
	})
}

// probabilities renders the AI score as the two-class probability map the
// clients consume.
func probabilities(aiScore float64) map[string]float64 {
	return map[string]float64{
		"human": 1 - aiScore,
		"ai":    aiScore,
	}
}

// matchLanguage resolves a request language against the configured profiles,
// accepting either the two letter code or the full name, case insensitively.
func (c *Controller) matchLanguage(input string) (conf.LanguageConfig, bool) {
	in := strings.TrimSpace(input)
	if in == "" {
		return conf.LanguageConfig{}, false
	}
	for _, lang := range c.Settings.Languages {
		if strings.EqualFold(lang.Code, in) || strings.EqualFold(lang.Name, in) {
			return lang, true
		}
	}
	return conf.LanguageConfig{}, false
}

func (c *Controller) unsupportedLanguageMessage() string {
	names := make([]string, 0, len(c.Settings.Languages))
	for _, lang := range c.Settings.Languages {
		names = append(names, lang.Name)
	}
	return "Unsupported language. Must be one of: " + strings.Join(names, ", ")
}

// readUpload pulls the audio bytes out of the multipart `file` part,
// enforcing the filename extension whitelist and the upload size cap. On
// failure it writes the error response itself and returns that error.
func (c *Controller) readUpload(ctx echo.Context) ([]byte, string, error) {
	file, err := ctx.FormFile("file")
	if err != nil {
		return nil, "", c.HandleError(ctx, err, "Missing file upload", http.StatusUnprocessableEntity)
	}

	if file.Filename == "" {
		return nil, "", c.HandleError(ctx, nil, "Missing filename", http.StatusBadRequest)
	}
	if !allowedExtension(file.Filename) {
		return nil, "", c.HandleError(ctx, nil, "Only WAV/FLAC/MP3 files are supported", http.StatusBadRequest)
	}

	maxBytes := c.maxUploadBytes()
	if file.Size > maxBytes {
		return nil, "", c.HandleError(ctx, nil, "File too large", http.StatusRequestEntityTooLarge)
	}

	raw, err := readAll(file, maxBytes)
	if err != nil {
		return nil, "", c.HandleError(ctx, err, "Failed to read upload", http.StatusBadRequest)
	}
	return raw, file.Filename, nil
}

func allowedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav", ".flac", ".mp3":
		return true
	}
	return false
}

func (c *Controller) maxUploadBytes() int64 {
	maxMB := c.Settings.WebServer.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 25
	}
	return maxMB * 1024 * 1024
}

// readAll reads the upload with a hard cap one byte past the limit, so a
// part whose header lies about its size still cannot exhaust memory.
func readAll(file *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer func() { _ = src.Close() }()

	raw, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("upload exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

// ingestErrorResponse maps the engine's ingest failures onto the wire
// contract. Duration and format violations are client errors; anything
// unrecognized is a 500.
func (c *Controller) ingestErrorResponse(ctx echo.Context, err error) error {
	var durErr *audio.DurationError
	switch {
	case errors.As(err, &durErr):
		if durErr.TooShort() {
			message := fmt.Sprintf("Audio too short; minimum is %g seconds", durErr.Min)
			return c.HandleError(ctx, err, message, http.StatusBadRequest)
		}
		message := fmt.Sprintf("Audio too long; maximum is %g seconds", durErr.Max)
		return c.HandleError(ctx, err, message, http.StatusBadRequest)
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return c.HandleError(ctx, err, "Only WAV/FLAC/MP3 files are supported", http.StatusBadRequest)
	case errors.Is(err, audio.ErrDecode):
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	default:
		return c.HandleError(ctx, err, "Internal server error", http.StatusInternalServerError)
	}
}
