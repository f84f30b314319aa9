package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sleeplessdev/voicedetect-go/internal/audio"
	"github.com/sleeplessdev/voicedetect-go/internal/features"
)

// initDebugRoutes registers the inspection endpoints. They are always
// registered but answer 404 unless webserver.debugroutes is enabled, so a
// production scrape cannot tell them apart from unknown paths.
func (c *Controller) initDebugRoutes() {
	debug := c.Group.Group("/debug", c.debugGate, c.RequireAPIKey)

	debug.POST("/upload", c.DebugUpload)
	debug.POST("/features", c.DebugFeatures)
	debug.POST("/detect", c.DebugDetect)
}

func (c *Controller) debugGate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !c.Settings.WebServer.DebugRoutes {
			return ctx.JSON(http.StatusNotFound, errorJSON("Not found"))
		}
		return next(ctx)
	}
}

// DebugUpload handles POST /api/v1/debug/upload: it validates and reads the
// multipart file like /classify does, reporting what arrived without
// touching the audio.
func (c *Controller) DebugUpload(ctx echo.Context) error {
	raw, filename, err := c.readUpload(ctx)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"filename": filename,
		"bytes":    len(raw),
	})
}

// featureValue is a single extracted feature in a debug payload. Neutral
// features carry the substitution reason so degraded extraction is visible
// instead of masquerading as a measured zero.
type featureValue struct {
	Value   float64 `json:"value"`
	Neutral bool    `json:"neutral,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

func featurePayload(fs *features.FeatureSet) map[string]featureValue {
	out := make(map[string]featureValue, len(features.Names()))
	for _, name := range features.Names() {
		v, ok := fs.Value(name)
		if !ok {
			continue
		}
		fv := featureValue{Value: v}
		if reason, neutral := fs.NeutralReason(name); neutral {
			fv.Neutral = true
			fv.Reason = reason
		}
		out[name] = fv
	}
	return out
}

// DebugFeatures handles POST /api/v1/debug/features: runs ingest and
// feature extraction only, exposing the full feature set with neutral
// markers.
func (c *Controller) DebugFeatures(ctx echo.Context) error {
	lang, ok := c.matchLanguage(ctx.FormValue("language"))
	if !ok {
		return c.HandleError(ctx, nil, "Unsupported language", http.StatusBadRequest)
	}

	raw, filename, err := c.readUpload(ctx)
	if err != nil {
		return err
	}

	fs, duration, err := c.Engine.ExtractFeatures(raw, audio.DetectFormat(raw, filename), lang.Code)
	if err != nil {
		return c.ingestErrorResponse(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"features":        featurePayload(fs),
		"durationSeconds": duration,
	})
}

// DebugDetect handles POST /api/v1/debug/detect: a full classification that
// also returns the probability split, for threshold tuning sessions.
func (c *Controller) DebugDetect(ctx echo.Context) error {
	lang, ok := c.matchLanguage(ctx.FormValue("language"))
	if !ok {
		return c.HandleError(ctx, nil, "Unsupported language", http.StatusBadRequest)
	}

	raw, filename, err := c.readUpload(ctx)
	if err != nil {
		return err
	}

	result, err := c.Engine.Detect(raw, audio.DetectFormat(raw, filename), lang.Code)
	if err != nil {
		return c.ingestErrorResponse(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"classification":  string(result.Label),
		"confidenceScore": result.Confidence,
		"probabilities":   probabilities(result.Score),
		"explanation":     result.Explanation,
	})
}
