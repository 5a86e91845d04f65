// Package console contains the emulator-facing side of the pipeline: the
// Console interface the real emulator must satisfy, a print-only
// implementation for headless runs, and the Applicator loop that drains the
// action queue and drives button input.
package console

import (
	"github.com/chainplays/chainplays/log"
	"github.com/chainplays/chainplays/types"
)

// Console is the contract with the emulator collaborator. ROM loading and
// windowing are the implementation's concern; the pipeline only needs to set
// button state, advance the emulation one discrete step and optionally hint
// the display scale.
//
// A Console is not safe for concurrent use. All calls must come from the
// single goroutine running the Applicator.
type Console interface {
	// Button asserts or releases the pressed state of a button.
	Button(b types.Button, pressed bool)
	// Tick advances the emulation by one step. It returns false when the
	// session has terminated (e.g. the window was closed).
	Tick() bool
	// SetScale hints the display scale. Implementations may ignore it.
	SetScale(scale int)
}

// Printer is the print-only console: it never touches an emulator and only
// logs which actions would have been applied. Useful for headless testing of
// the pipeline.
type Printer struct{}

// NewPrinter returns a print-only console.
func NewPrinter() *Printer {
	return &Printer{}
}

// Button logs the would-be button transition at debug level.
func (p *Printer) Button(b types.Button, pressed bool) {
	if pressed {
		log.Debugw("would press button", "button", string(b))
	}
}

// Tick is a no-op step that never terminates the session.
func (p *Printer) Tick() bool { return true }

// SetScale is ignored, there is no display.
func (p *Printer) SetScale(int) {}
