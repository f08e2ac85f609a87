package snapshot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SnapshotOptions controls how long and how a page is driven before printing.
// Nil numeric fields fall back to the configured Defaults.
type SnapshotOptions struct {
	Device         string     `json:"device,omitempty"`
	Resolution     string     `json:"resolution,omitempty"`
	ScrollTimes    *int       `json:"scrollTimes,omitempty"`
	MinScrollTimes *int       `json:"minScrollTimes,omitempty"`
	ScrollDelay    *int       `json:"scrollDelay,omitempty"`
	ReadyState     ReadyState `json:"readyState,omitempty"`
	PageTimeout    *int       `json:"pageTimeout,omitempty"`
	ScrollOffset   *int       `json:"scrollOffset,omitempty"`
	Debug          bool       `json:"debug,omitempty"`
}

// Defaults holds the wait settings used when a request leaves them unset.
type Defaults struct {
	Resolution     string
	ScrollTimes    int
	MinScrollTimes int
	ScrollDelay    time.Duration
	ReadyState     ReadyState
	PageTimeout    time.Duration
	ScrollOffset   int
	NetworkIdle    time.Duration
}

// Limits for caller-supplied values.
const (
	MaxScrollTimes  = 100
	MaxScrollDelay  = 10 * time.Second
	MinPageTimeout  = time.Second
	MaxPageTimeout  = 2 * time.Minute
	maxViewportSide = 8192
)

// DefaultResolution is the desktop viewport when no device is named.
const DefaultResolution = "1920x1080"

// Device is an emulation preset.
type Device struct {
	Width             int64
	Height            int64
	DeviceScaleFactor float64
	Mobile            bool
	UserAgent         string
}

const (
	iosUA     = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"
	ipadUA    = "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"
	androidUA = "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
)

// Devices lists the supported presets, keyed by lower-case name.
var Devices = map[string]Device{
	"iphone x":      {Width: 375, Height: 812, DeviceScaleFactor: 3, Mobile: true, UserAgent: iosUA},
	"iphone 12 pro": {Width: 390, Height: 844, DeviceScaleFactor: 3, Mobile: true, UserAgent: iosUA},
	"iphone 14 pro": {Width: 393, Height: 852, DeviceScaleFactor: 3, Mobile: true, UserAgent: iosUA},
	"ipad":          {Width: 768, Height: 1024, DeviceScaleFactor: 2, Mobile: true, UserAgent: ipadUA},
	"ipad pro":      {Width: 1024, Height: 1366, DeviceScaleFactor: 2, Mobile: true, UserAgent: ipadUA},
	"pixel 5":       {Width: 393, Height: 851, DeviceScaleFactor: 2.75, Mobile: true, UserAgent: androidUA},
	"pixel 7":       {Width: 412, Height: 915, DeviceScaleFactor: 2.625, Mobile: true, UserAgent: androidUA},
	"galaxy s9+":    {Width: 320, Height: 658, DeviceScaleFactor: 4.5, Mobile: true, UserAgent: androidUA},
}

// Resolve validates the options and merges them with defaults.
func (o SnapshotOptions) Resolve(def Defaults) (WaitPlan, error) {
	plan := WaitPlan{
		ReadyState:     def.ReadyState,
		ScrollTimes:    def.ScrollTimes,
		MinScrollTimes: def.MinScrollTimes,
		ScrollDelay:    def.ScrollDelay,
		ScrollOffset:   def.ScrollOffset,
		PageTimeout:    def.PageTimeout,
		NetworkIdle:    def.NetworkIdle,
		Debug:          o.Debug,
	}
	if o.ReadyState != "" {
		plan.ReadyState = ReadyState(strings.ToLower(string(o.ReadyState)))
	}
	if plan.ReadyState == "" {
		plan.ReadyState = ReadyStateLoad
	}
	if !plan.ReadyState.Valid() {
		return WaitPlan{}, fmt.Errorf("%w: unknown readyState %q", ErrInvalidSnapshotOption, o.ReadyState)
	}

	if o.ScrollTimes != nil {
		plan.ScrollTimes = *o.ScrollTimes
	}
	if plan.ScrollTimes < 0 || plan.ScrollTimes > MaxScrollTimes {
		return WaitPlan{}, fmt.Errorf("%w: scrollTimes must be between 0 and %d",
			ErrInvalidSnapshotOption, MaxScrollTimes)
	}
	if o.MinScrollTimes != nil {
		plan.MinScrollTimes = *o.MinScrollTimes
	}
	if plan.MinScrollTimes < 0 {
		return WaitPlan{}, fmt.Errorf("%w: minScrollTimes must be >= 0", ErrInvalidSnapshotOption)
	}
	if plan.MinScrollTimes == 0 {
		plan.MinScrollTimes = 1
	}
	if o.ScrollDelay != nil {
		plan.ScrollDelay = time.Duration(*o.ScrollDelay) * time.Millisecond
	}
	if plan.ScrollDelay < 0 || plan.ScrollDelay > MaxScrollDelay {
		return WaitPlan{}, fmt.Errorf("%w: scrollDelay must be between 0 and %d ms",
			ErrInvalidSnapshotOption, MaxScrollDelay.Milliseconds())
	}
	if o.ScrollOffset != nil {
		plan.ScrollOffset = *o.ScrollOffset
	}
	if plan.ScrollOffset < 0 {
		return WaitPlan{}, fmt.Errorf("%w: scrollOffset must be >= 0", ErrInvalidSnapshotOption)
	}
	if o.PageTimeout != nil {
		plan.PageTimeout = time.Duration(*o.PageTimeout) * time.Millisecond
	}
	if plan.PageTimeout < MinPageTimeout || plan.PageTimeout > MaxPageTimeout {
		return WaitPlan{}, fmt.Errorf("%w: pageTimeout must be between %d and %d ms",
			ErrInvalidSnapshotOption, MinPageTimeout.Milliseconds(), MaxPageTimeout.Milliseconds())
	}

	viewport, err := o.viewport(def.Resolution)
	if err != nil {
		return WaitPlan{}, err
	}
	plan.Viewport = viewport
	return plan, nil
}

func (o SnapshotOptions) viewport(defaultResolution string) (Viewport, error) {
	var vp Viewport
	if o.Device != "" {
		dev, ok := Devices[strings.ToLower(strings.TrimSpace(o.Device))]
		if !ok {
			return Viewport{}, fmt.Errorf("%w: unknown device %q", ErrInvalidSnapshotOption, o.Device)
		}
		vp = Viewport(dev)
	}
	resolution := o.Resolution
	if resolution == "" && o.Device == "" {
		resolution = defaultResolution
		if resolution == "" {
			resolution = DefaultResolution
		}
	}
	if resolution != "" {
		w, h, err := ParseResolution(resolution)
		if err != nil {
			return Viewport{}, err
		}
		vp.Width, vp.Height = w, h
	}
	if vp.DeviceScaleFactor == 0 {
		vp.DeviceScaleFactor = 1
	}
	return vp, nil
}

// ParseResolution parses "WIDTHxHEIGHT".
func ParseResolution(raw string) (int64, int64, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(raw)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: resolution %q must look like 1920x1080", ErrInvalidSnapshotOption, raw)
	}
	w, errW := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	h, errH := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 || w > maxViewportSide || h > maxViewportSide {
		return 0, 0, fmt.Errorf("%w: resolution %q out of range", ErrInvalidSnapshotOption, raw)
	}
	return w, h, nil
}
