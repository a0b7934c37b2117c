package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("TEST_BOOL_TRUE", "yes")
	t.Setenv("TEST_BOOL_FALSE", "off")
	t.Setenv("TEST_BOOL_BAD", "maybe")

	if !ParseBoolEnv("TEST_BOOL_TRUE", false) {
		t.Error("expected true for 'yes'")
	}
	if ParseBoolEnv("TEST_BOOL_FALSE", true) {
		t.Error("expected false for 'off'")
	}
	if !ParseBoolEnv("TEST_BOOL_BAD", true) {
		t.Error("expected default for invalid value")
	}
	if ParseBoolEnv("TEST_BOOL_UNSET", false) {
		t.Error("expected default for unset variable")
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR", "36h")
	t.Setenv("TEST_DUR_BAD", "tomorrow")

	if got := ParseDurationEnv("TEST_DUR", time.Hour); got != 36*time.Hour {
		t.Errorf("ParseDurationEnv = %v, want 36h", got)
	}
	if got := ParseDurationEnv("TEST_DUR_BAD", 24*time.Hour); got != 24*time.Hour {
		t.Errorf("expected default for invalid value, got %v", got)
	}
	if got := ParseDurationEnv("TEST_DUR_UNSET", 24*time.Hour); got != 24*time.Hour {
		t.Errorf("expected default for unset variable, got %v", got)
	}
}
