package modem

import "testing"

func TestError_Retryable(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want bool
	}{
		{"circuit open never retryable", errCircuitOpen(), false},
		{"5xx http retryable", errHTTP(503, "unavailable"), true},
		{"4xx http not retryable", errHTTP(400, "bad request"), false},
		{"transport failure retryable", errHTTP(0, "connection reset"), true},
		{"timeout always retryable", errTimeout(nil), true},
		{"parse never retryable", errParse("bad xml", nil), false},
		{"modem code 114 not retryable", errModemCode(114, "box full"), false},
		{"modem code 117 not retryable", errModemCode(117, "bad number"), false},
		{"modem code 113 retryable", errModemCode(113, "busy"), true},
		{"unknown modem code retryable by default", errModemCode(999, "mystery"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_UnwrapAndMessage(t *testing.T) {
	cause := errParse("boom", nil)
	err := errTimeout(cause)
	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the wrapped cause")
	}
	if err.Error() == "" {
		t.Error("Expected a non-empty error message")
	}
}
