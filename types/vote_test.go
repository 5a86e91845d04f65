package types

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCommandButtonMapping(t *testing.T) {
	c := qt.New(t)

	expected := []Button{
		ButtonUp, ButtonDown, ButtonLeft, ButtonRight,
		ButtonA, ButtonB, ButtonStart, ButtonSelect,
	}
	for i, want := range expected {
		b, ok := Command(i).Button()
		c.Assert(ok, qt.IsTrue)
		c.Assert(b, qt.Equals, want)
	}

	// the mapping must be stable across calls
	for i := range expected {
		b1, _ := Command(i).Button()
		b2, _ := Command(i).Button()
		c.Assert(b1, qt.Equals, b2)
	}

	// everything outside 0-7 yields no action
	for _, i := range []uint8{8, 9, 100, 255} {
		_, ok := Command(i).Button()
		c.Assert(ok, qt.IsFalse)
	}
}
