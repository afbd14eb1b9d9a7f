package pkg

import (
	"errors"
	"testing"
)

func TestSentinelErrorsDistinct(t *testing.T) {
	errs := []error{
		ErrTransport,
		ErrBaudDetection,
		ErrInvalidResponse,
		ErrTimeout,
		ErrNetwork,
		ErrOverflow,
		ErrSocketSetFull,
		ErrInvalidSocket,
		ErrSocketClosed,
		ErrSocketNotConnected,
		ErrNotBound,
		ErrDuplicateSocket,
		ErrSupplicant,
		ErrUninitialized,
		ErrAlreadyRunning,
		ErrNotRunning,
	}

	for i, err1 := range errs {
		if err1 == nil {
			t.Errorf("error %d is nil", i)
			continue
		}
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("error %d and %d are equal", i, j)
			}
		}
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err     error
		wantMsg string
	}{
		{ErrTransport, "transport error"},
		{ErrBaudDetection, "baud detection failed"},
		{ErrTimeout, "command timeout"},
		{ErrSocketSetFull, "socket set full"},
		{ErrSupplicant, "wifi supplicant error"},
	}

	for _, tt := range tests {
		t.Run(tt.wantMsg, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("error.Error() = %v, want %v", got, tt.wantMsg)
			}
		})
	}
}
