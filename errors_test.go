package simt

import (
	"errors"
	"fmt"
	"testing"
)

func TestStructuredErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		wantOp   string
		wantMsg  string
		checkFn  func(error) bool
	}{
		{
			name:     "Memory Error",
			err:      ErrOutOfMemory,
			wantType: ErrTypeMemory,
			wantOp:   "Malloc",
			wantMsg:  "out of memory",
			checkFn:  IsMemoryError,
		},
		{
			name:     "Invalid Arg Error",
			err:      ErrInvalidSize,
			wantType: ErrTypeInvalidArg,
			wantOp:   "Malloc",
			wantMsg:  "size must be positive",
			checkFn:  IsInvalidArgError,
		},
		{
			name:     "Invalid Device Error",
			err:      ErrInvalidDevice,
			wantType: ErrTypeInvalidArg,
			wantOp:   "SetDevice",
			wantMsg:  "invalid device ID",
			checkFn:  IsInvalidArgError,
		},
		{
			name:     "Double Free Error",
			err:      ErrDoubleFree,
			wantType: ErrTypeMemory,
			wantOp:   "Free",
			wantMsg:  "double free detected",
			checkFn:  IsMemoryError,
		},
		{
			name:     "Device Query Error",
			err:      NewDeviceError("Occupancy", "device reports no processing units", nil),
			wantType: ErrTypeDevice,
			wantOp:   "Occupancy",
			wantMsg:  "device reports no processing units",
			checkFn:  IsDeviceError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := tt.err.(*Error)
			if !ok {
				t.Fatalf("error is not *Error: %T", tt.err)
			}
			if e.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", e.Type, tt.wantType)
			}
			if e.Op != tt.wantOp {
				t.Errorf("Op = %q, want %q", e.Op, tt.wantOp)
			}
			if e.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", e.Message, tt.wantMsg)
			}
			if !tt.checkFn(tt.err) {
				t.Errorf("type predicate rejected %v", tt.err)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := NewExecutionError("Reduction", "first pass launch failed", cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is failed to find wrapped cause")
	}

	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("errors.As failed to extract *Error")
	}
	if se.Type != ErrTypeExecution {
		t.Errorf("Type = %v, want %v", se.Type, ErrTypeExecution)
	}
}

func TestErrorString(t *testing.T) {
	err := NewDeviceError("GetDeviceProperties", "invalid device ID: 3", nil)
	want := "simt Device error in GetDeviceProperties: invalid device ID: 3"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := NewMemoryError("Malloc", "pool exhausted", fmt.Errorf("oom"))
	want = "simt Memory error in Malloc: pool exhausted (caused by: oom)"
	if wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}
