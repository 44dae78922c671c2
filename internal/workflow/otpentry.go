package workflow

import "strings"

// OTPCells is the number of single-digit slots in the passcode input.
const OTPCells = 6

// OTPEntry models the six-cell passcode input as plain data. The
// focused cell is always the first empty one, so typing a digit
// auto-advances and backspace retreats without any rendering-layer
// bookkeeping.
type OTPEntry struct {
	cells [OTPCells]string
}

// FocusIndex returns the index of the cell that would receive the next
// digit. When every cell is filled it returns OTPCells, i.e. focus sits
// past the last cell.
func (e *OTPEntry) FocusIndex() int {
	for i, c := range e.cells {
		if c == "" {
			return i
		}
	}
	return OTPCells
}

// Input stores a single digit at the focused cell. Non-digit runes and
// input past the last cell are discarded.
func (e *OTPEntry) Input(r rune) {
	if r < '0' || r > '9' {
		return
	}
	i := e.FocusIndex()
	if i >= OTPCells {
		return
	}
	e.cells[i] = string(r)
}

// Backspace clears the cell before the focus. On an empty entry it is a
// no-op; on a full entry it clears the last cell.
func (e *OTPEntry) Backspace() {
	i := e.FocusIndex()
	if i == 0 {
		return
	}
	e.cells[i-1] = ""
}

// Paste replaces the cells left-to-right with the digits of s. Anything
// that is not a digit is stripped first and digits beyond the sixth are
// discarded.
func (e *OTPEntry) Paste(s string) {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	e.Clear()
	for i, r := range digits.String() {
		if i >= OTPCells {
			break
		}
		e.cells[i] = string(r)
	}
}

func (e *OTPEntry) Clear() {
	e.cells = [OTPCells]string{}
}

// Complete reports whether all six cells hold a digit.
func (e *OTPEntry) Complete() bool {
	return e.FocusIndex() == OTPCells
}

// Code concatenates the filled cells in order.
func (e *OTPEntry) Code() string {
	return strings.Join(e.cells[:], "")
}

// Cells returns a copy of the slots for rendering.
func (e *OTPEntry) Cells() [OTPCells]string {
	return e.cells
}
