package workflow

import "testing"

func TestOTPEntryTypingAutoAdvances(t *testing.T) {
	var e OTPEntry

	for _, r := range "123" {
		e.Input(r)
	}
	if e.FocusIndex() != 3 {
		t.Fatalf("expected focus at 3 after three digits, got %d", e.FocusIndex())
	}
	if e.Code() != "123" {
		t.Fatalf("expected partial code 123, got %q", e.Code())
	}
	if e.Complete() {
		t.Fatal("three digits must not be complete")
	}

	for _, r := range "456" {
		e.Input(r)
	}
	if !e.Complete() || e.Code() != "123456" {
		t.Fatalf("expected complete code 123456, got %q", e.Code())
	}
	if e.FocusIndex() != OTPCells {
		t.Fatalf("expected focus past the last cell, got %d", e.FocusIndex())
	}

	// Input past the last cell is discarded.
	e.Input('7')
	if e.Code() != "123456" {
		t.Fatalf("expected overflow digit to be dropped, got %q", e.Code())
	}
}

func TestOTPEntryIgnoresNonDigits(t *testing.T) {
	var e OTPEntry
	for _, r := range "1a 2-b3" {
		e.Input(r)
	}
	if e.Code() != "123" {
		t.Fatalf("expected non-digits to be ignored, got %q", e.Code())
	}
}

func TestOTPEntryBackspaceRetreats(t *testing.T) {
	var e OTPEntry

	e.Backspace() // empty entry is a no-op
	if e.FocusIndex() != 0 {
		t.Fatalf("backspace on empty entry moved focus to %d", e.FocusIndex())
	}

	e.Paste("123456")
	e.Backspace()
	if e.Code() != "12345" || e.FocusIndex() != 5 {
		t.Fatalf("expected last cell cleared, got %q focus %d", e.Code(), e.FocusIndex())
	}

	e.Backspace()
	e.Input('9')
	if e.Code() != "12349" {
		t.Fatalf("expected retyped digit in cleared cell, got %q", e.Code())
	}
}

func TestOTPEntryPaste(t *testing.T) {
	cases := []struct {
		name  string
		paste string
		want  string
		full  bool
	}{
		{"clean code", "123456", "123456", true},
		{"formatted code", "123-456", "123456", true},
		{"with whitespace", " 12 34 56 ", "123456", true},
		{"too long", "1234567890", "123456", true},
		{"too short", "1234", "1234", false},
		{"no digits", "abcdef", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := OTPEntry{}
			e.Input('9') // pre-existing digit must be replaced
			e.Paste(tc.paste)
			if e.Code() != tc.want {
				t.Fatalf("Paste(%q) = %q, want %q", tc.paste, e.Code(), tc.want)
			}
			if e.Complete() != tc.full {
				t.Fatalf("Paste(%q) complete = %v, want %v", tc.paste, e.Complete(), tc.full)
			}
		})
	}
}

func TestOTPEntryCellsReturnsCopy(t *testing.T) {
	var e OTPEntry
	e.Paste("123456")

	cells := e.Cells()
	cells[0] = "9"
	if e.Code() != "123456" {
		t.Fatal("mutating the returned cells must not affect the entry")
	}
}
