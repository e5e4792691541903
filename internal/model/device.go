package model

// Environment captures the display/input signals the device profiler reads.
// In the browser these come from navigator.maxTouchPoints, the
// "(pointer:fine)" media query, and window.screen.width; an embedding
// application fills this struct from whatever platform APIs it has.
type Environment struct {
	MaxTouchPoints int  // simultaneous touch points the device reports
	FinePointer    bool // a fine-precision pointer (mouse/trackpad) is available
	ScreenWidth    int  // screen width in logical pixels
}

// DeviceProfile holds the two UI-affecting flags derived from Environment.
// Computed once at bootstrap, never persisted.
type DeviceProfile struct {
	IsMobileDevice bool `json:"is_mobile_device"`
	IsNarrowDevice bool `json:"is_narrow_device"`
}
