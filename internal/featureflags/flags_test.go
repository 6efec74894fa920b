package featureflags

import "testing"

func TestEnabled(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"true", true},
		{"YES", true},
		{"1", true},
		{"on", true},
		{"false", false},
		{"0", false},
	}
	for _, tt := range tests {
		t.Setenv("FLAG_DISABLE_PASSWORD_RESET", tt.value)
		if got := Enabled(DisablePasswordReset); got != tt.want {
			t.Errorf("Enabled with %q = %v, want %v", tt.value, got, tt.want)
		}
	}
}
