package api

import (
	"encoding/base64"
	"net/http"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"

	"github.com/sleeplessdev/voicedetect-go/internal/audio"
)

// detectRequest is the JSON body for POST /api/v1/detect. AudioBase64Format
// is a legacy alias some clients still send instead of audioBase64.
type detectRequest struct {
	Language          string `json:"language"`
	AudioFormat       string `json:"audioFormat"`
	AudioBase64       string `json:"audioBase64"`
	AudioBase64Format string `json:"audioBase64Format"`
}

// detectResponse is the JSON endpoint's success payload. Confidence is
// rounded to two decimals on this endpoint.
type detectResponse struct {
	Status          string  `json:"status"`
	Language        string  `json:"language"`
	Classification  string  `json:"classification"`
	ConfidenceScore float64 `json:"confidenceScore"`
	Explanation     string  `json:"explanation"`
}

// Detect handles POST /api/v1/detect and its legacy alias
// /api/voice-detection: base64 encoded audio with a declared format and
// language. Field validation failures answer 422; the audio itself failing
// to decode is a 400 like the multipart endpoint.
func (c *Controller) Detect(ctx echo.Context) error {
	var req detectRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusUnprocessableEntity)
	}

	lang, ok := c.matchLanguage(req.Language)
	if !ok {
		return c.HandleError(ctx, nil, c.unsupportedLanguageMessage(), http.StatusUnprocessableEntity)
	}

	format := audio.Format(strings.ToLower(strings.TrimSpace(req.AudioFormat)))
	switch format {
	case audio.FormatWAV, audio.FormatFLAC, audio.FormatMP3:
	default:
		return c.HandleError(ctx, nil, "audioFormat must be one of: mp3, wav, flac", http.StatusUnprocessableEntity)
	}

	payload := req.AudioBase64
	if payload == "" {
		payload = req.AudioBase64Format
	}
	payload = normalizeBase64(payload)
	if payload == "" {
		return c.HandleError(ctx, nil, "audioBase64 must not be empty", http.StatusUnprocessableEntity)
	}

	raw, err := decodeBase64(payload)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid base64 audio payload", http.StatusBadRequest)
	}

	result, err := c.Engine.Detect(raw, format, lang.Code)
	if err != nil {
		return c.ingestErrorResponse(ctx, err)
	}

	c.logger.Info("classified payload",
		"language", lang.Code,
		"format", format,
		"classification", result.Label,
		"confidence", result.Confidence,
		"processing_ms", result.ProcessingMs)

	return ctx.JSON(http.StatusOK, detectResponse{
		Status:          "success",
		Language:        lang.Name,
		Classification:  string(result.Label),
		ConfidenceScore: round2(result.Confidence),
		Explanation:     result.Explanation,
	})
}

// normalizeBase64 tolerates the noise clients wrap payloads in: data URI
// prefixes, stray whitespace and line breaks from copy-pasted blobs.
func normalizeBase64(payload string) string {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, "base64,"); i >= 0 {
			payload = payload[i+len("base64,"):]
		}
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, payload)
}

// decodeBase64 accepts both padded and unpadded standard encoding.
func decodeBase64(payload string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(payload)
}
