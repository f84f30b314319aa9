package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/sleeplessdev/voicedetect-go/internal/cpuspec"
)

// ServiceName is the human readable identity reported by the banner.
const ServiceName = "AI Voice Detection API"

// healthResponse reports service liveness plus a host snapshot. The gpu
// block is always present so clients probing for accelerator support get a
// definitive answer; this build performs inference on the CPU only.
type healthResponse struct {
	Status string         `json:"status"`
	CPU    map[string]any `json:"cpu"`
	GPU    map[string]any `json:"gpu"`
}

// Health handles GET /api/v1/health. The snapshot calls never fail the
// endpoint; missing host facts degrade to zero values.
func (c *Controller) Health(ctx echo.Context) error {
	spec := cpuspec.GetCPUSpec()

	cpu := map[string]any{
		"platform":      runtime.GOOS + "/" + runtime.GOARCH,
		"goVersion":     runtime.Version(),
		"model":         spec.BrandName,
		"cores":         runtime.NumCPU(),
		"threads":       spec.GetOptimalThreadCount(),
		"pid":           os.Getpid(),
		"uptimeSeconds": int64(time.Since(startTime).Seconds()),
	}

	if hostInfo, err := host.Info(); err == nil {
		cpu["platform"] = hostInfo.Platform + " " + hostInfo.PlatformVersion
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		cpu["memoryUsedPercent"] = round2(memInfo.UsedPercent)
	}

	return ctx.JSON(http.StatusOK, healthResponse{
		Status: "healthy",
		CPU:    cpu,
		GPU:    map[string]any{"available": false},
	})
}

// languagesResponse lists the configured language profiles by full name.
type languagesResponse struct {
	Languages []string `json:"languages"`
}

// Languages handles GET /api/v1/languages.
func (c *Controller) Languages(ctx echo.Context) error {
	names := make([]string, 0, len(c.Settings.Languages))
	for _, lang := range c.Settings.Languages {
		names = append(names, lang.Name)
	}
	return ctx.JSON(http.StatusOK, languagesResponse{Languages: names})
}

// RootBanner handles GET /: a small service identity payload pointing
// clients at the API base.
func (c *Controller) RootBanner(ctx echo.Context) error {
	version := c.Settings.Version
	if version == "" {
		version = "dev"
	}

	names := make([]string, 0, len(c.Settings.Languages))
	for _, lang := range c.Settings.Languages {
		names = append(names, lang.Name)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"service":            ServiceName,
		"version":            version,
		"supportedLanguages": names,
		"apiBase":            "/api/v1",
	})
}
