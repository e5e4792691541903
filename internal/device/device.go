// Package device derives the UI-affecting device flags from environment
// signals. The dashboard shows its mobile layout based on these.
package device

import "github.com/tuic/dashboard-session/internal/model"

// narrowWidth is the logical-pixel threshold below which the dashboard
// switches to its narrow layout.
const narrowWidth = 750

// Profile computes the device flags from the environment, applying the
// signals in fixed precedence:
//
//  1. more than two touch points          → mobile
//  2. a fine-precision pointer available  → NOT mobile (overrides 1 —
//     touch laptops report touch points but are desktop-class)
//  3. screen narrower than 750px          → narrow, independent of 1 and 2
//
// Flags are only ever set, never cleared: the profile starts from its
// zero value and each rule may flip its flag on (or, for rule 2, back
// off). There is no default-false branch.
func Profile(env model.Environment) model.DeviceProfile {
	var p model.DeviceProfile

	if env.MaxTouchPoints > 2 {
		p.IsMobileDevice = true
	}
	if env.FinePointer {
		p.IsMobileDevice = false
	}
	if env.ScreenWidth < narrowWidth {
		p.IsNarrowDevice = true
	}

	return p
}
