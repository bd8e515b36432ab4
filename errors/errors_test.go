package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseDecode,
				Kind:     KindInvalidEnum,
				Op:       "ICU4XDate_day_of_week",
				Path:     []string{"date", "weekday"},
				GoType:   "icu.Weekday",
				WireType: "i32",
				Detail:   "ordinal 9",
			},
			contains: []string{"[decode]", "invalid_enum", "ICU4XDate_day_of_week", "date.weekday", "icu.Weekday", "i32", "ordinal 9"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[decode]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseEncode,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[encode]", "allocation", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseDecode,
		Kind:  KindInvalidEnum,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseDecode, Kind: KindInvalidEnum}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseEncode, Kind: KindInvalidEnum}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseDecode, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseDecode, Kind: KindInvalidEnum}
	if !errors.Is(fmt.Errorf("wrapped: %w", err), target) {
		t.Error("errors.Is should match through fmt wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDecode, KindLayout).
		Op("ICU4XLocale_create").
		Path("out", "flag").
		GoType("bool").
		WireType("u8").
		Value(7).
		Cause(cause).
		Detail("flag byte %d", 7).
		Build()

	if err.Phase != PhaseDecode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDecode)
	}
	if err.Kind != KindLayout {
		t.Errorf("Kind = %v, want %v", err.Kind, KindLayout)
	}
	if err.Op != "ICU4XLocale_create" {
		t.Errorf("Op = %v", err.Op)
	}
	if len(err.Path) != 2 || err.Path[0] != "out" || err.Path[1] != "flag" {
		t.Errorf("Path = %v, want [out flag]", err.Path)
	}
	if err.GoType != "bool" || err.WireType != "u8" {
		t.Errorf("GoType=%v WireType=%v", err.GoType, err.WireType)
	}
	if err.Value != 7 {
		t.Errorf("Value = %v, want 7", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "flag byte 7" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestIsProtocolViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid enum", InvalidDiscriminant(PhaseDecode, "CalendarError", 42), true},
		{"length mismatch", LengthMismatch(PhaseEncode, 6, 5), true},
		{"layout", Layout(PhaseDecode, "flag byte 3"), true},
		{"table drift", New(PhaseConfig, KindTableDrift).Build(), true},
		{"wrapped in fmt", fmt.Errorf("call: %w", LengthMismatch(PhaseEncode, 1, 2)), true},
		{"wrapped in Error", Wrap(PhaseCall, KindTrap, InvalidDiscriminant(PhaseDecode, "X", 1), "call"), true},
		{"out of memory", OutOfMemory(PhaseDecode, "write sink"), false},
		{"domain", Domain("CalendarError", "Unknown"), false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsProtocolViolation(tt.err); got != tt.want {
				t.Errorf("IsProtocolViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	err := Wrap(PhaseCall, KindTrap, OutOfMemory(PhaseDecode, "sink"), "call")
	if !IsKind(err, KindOutOfMemory) {
		t.Error("IsKind should find nested kind")
	}
	if IsKind(err, KindLayout) {
		t.Error("IsKind should not match absent kind")
	}
}

func TestDomainError(t *testing.T) {
	err := Domain("CalendarError", "UnknownMonthCode")
	if err.Error() != "CalendarError.UnknownMonthCode" {
		t.Errorf("Error() = %q", err.Error())
	}

	err.Op = "ICU4XDate_from_codes"
	if !strings.Contains(err.Error(), "ICU4XDate_from_codes") {
		t.Errorf("Error() = %q, want op", err.Error())
	}

	var de *DomainError
	if !errors.As(fmt.Errorf("wrap: %w", err), &de) || de.Kind != "UnknownMonthCode" {
		t.Fatal("errors.As should extract DomainError")
	}
	if !errors.Is(err, &DomainError{Enum: "CalendarError"}) {
		t.Error("empty kind should match any kind of enum")
	}
	if errors.Is(err, &DomainError{Enum: "CalendarError", Kind: "Unknown"}) {
		t.Error("different kind should not match")
	}
	if strings.Contains(err.Error(), "2") {
		t.Error("domain error must not expose the discriminant")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseEncode, 1024, 8)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseDecode, 70000, 4)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != uint32(70000) {
			t.Errorf("Value = %v, want 70000", err.Value)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseEncode, []string{"val"}, 300, "u8")
		if err.Kind != KindOverflow {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOverflow)
		}
	})

	t.Run("Closed", func(t *testing.T) {
		err := Closed(PhaseLifetime, "handle")
		if err.Kind != KindClosed {
			t.Errorf("Kind = %v, want %v", err.Kind, KindClosed)
		}
	})

	t.Run("Trap", func(t *testing.T) {
		err := Trap("f", errors.New("unreachable"))
		if err.Op != "f" || err.Kind != KindTrap {
			t.Errorf("got %+v", err)
		}
	})
}
