// Package desktop defines the contract for OS automation used by the
// desktop_screenshot and desktop_wait tools. Screen capture itself is
// platform code supplied by the host application; this package
// validates requests before handing them over.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error codes reported to the model.
const (
	CodeInvalidParams  = "INVALID_PARAMS"
	CodeTimeout        = "TIMEOUT"
	CodeTargetNotFound = "TARGET_NOT_FOUND"
	CodeInternal       = "INTERNAL_ERROR"
)

// Error is a desktop tool failure with a stable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func invalidParams(format string, args ...any) error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// ErrUnsupported is returned by Unsupported for every capture.
var ErrUnsupported = &Error{Code: CodeInternal, Message: "desktop capture is not available on this platform"}

// Screenshot modes.
const (
	ModeDesktop = "desktop"
	ModeMonitor = "monitor"
	ModeRegion  = "region"
)

// DefaultWebPQuality is used when a request leaves quality unset.
const DefaultWebPQuality = 75

// Bounds is a screen rectangle in pixels.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScreenshotRequest selects what to capture.
type ScreenshotRequest struct {
	Mode        string  `json:"mode,omitempty"`
	MonitorID   *int    `json:"monitorId,omitempty"`
	Region      *Bounds `json:"region,omitempty"`
	SavePath    string  `json:"savePath,omitempty"`
	WebPQuality float64 `json:"webpQuality,omitempty"`
}

// Normalize fills defaults and validates r.
func (r *ScreenshotRequest) Normalize() error {
	if r.Mode == "" {
		r.Mode = ModeDesktop
	}
	if r.WebPQuality == 0 {
		r.WebPQuality = DefaultWebPQuality
	}

	switch r.Mode {
	case ModeDesktop, ModeMonitor, ModeRegion:
	default:
		return invalidParams("unknown mode %q, use desktop, monitor, or region", r.Mode)
	}
	if r.Region != nil && (r.Region.Width <= 0 || r.Region.Height <= 0) {
		return invalidParams("region.width and region.height must be > 0")
	}
	if r.Mode == ModeMonitor && r.MonitorID == nil {
		return invalidParams("monitorId is required when mode=monitor")
	}
	if r.Mode == ModeRegion && r.Region == nil {
		return invalidParams("region is required when mode=region")
	}
	if r.WebPQuality < 1 || r.WebPQuality > 100 {
		return invalidParams("webpQuality must be between 1 and 100")
	}
	return nil
}

// ScreenshotResult is a captured image.
type ScreenshotResult struct {
	OK          bool      `json:"ok"`
	Path        string    `json:"path,omitempty"`
	ImageMime   string    `json:"imageMime"`
	ImageBase64 string    `json:"imageBase64"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Bounds      Bounds    `json:"bounds"`
	ElapsedMs   int64     `json:"elapsedMs"`
	Timestamp   time.Time `json:"timestamp"`
}

// Automation captures the screen. Implementations receive requests
// that have already passed Normalize.
type Automation interface {
	Screenshot(ctx context.Context, req ScreenshotRequest) (*ScreenshotResult, error)
}

// Unsupported is the Automation used when the host provides none.
type Unsupported struct{}

func (Unsupported) Screenshot(context.Context, ScreenshotRequest) (*ScreenshotResult, error) {
	return nil, ErrUnsupported
}

// Screenshot validates req and delegates it to a.
func Screenshot(ctx context.Context, a Automation, req ScreenshotRequest) (*ScreenshotResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	res, err := a.Screenshot(ctx, req)
	if err != nil {
		var de *Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, &Error{Code: CodeInternal, Message: err.Error()}
	}
	return res, nil
}

// MaxWait caps a single wait.
const MaxWait = 120_000

// WaitRequest asks the agent to pause.
type WaitRequest struct {
	Mode string `json:"mode,omitempty"`
	Ms   int64  `json:"ms"`
}

// WaitResult reports how long a wait took.
type WaitResult struct {
	OK        bool  `json:"ok"`
	WaitedMs  int64 `json:"waitedMs"`
	ElapsedMs int64 `json:"elapsedMs"`
}

// Wait sleeps for req.Ms milliseconds or until ctx is done.
func Wait(ctx context.Context, req WaitRequest) (*WaitResult, error) {
	if req.Mode != "" && req.Mode != "sleep" {
		return nil, invalidParams("unsupported wait mode %q, only 'sleep' is available", req.Mode)
	}
	if req.Ms < 0 {
		return nil, invalidParams("ms must be >= 0")
	}
	if req.Ms > MaxWait {
		return nil, invalidParams("ms must be <= %d for wait mode sleep", MaxWait)
	}

	start := time.Now()
	timer := time.NewTimer(time.Duration(req.Ms) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, &Error{Code: CodeTimeout, Message: "wait canceled: " + ctx.Err().Error()}
	}
	return &WaitResult{OK: true, WaitedMs: req.Ms, ElapsedMs: time.Since(start).Milliseconds()}, nil
}
