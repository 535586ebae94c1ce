package appconfig

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestStringFallsBackToDefault(t *testing.T) {
	t.Setenv("APPCONFIG_TEST_STRING", "")
	if got := String("APPCONFIG_TEST_STRING", "fallback"); got != "fallback" {
		t.Fatalf("String = %q, want fallback", got)
	}
}

func TestStringReturnsSetValue(t *testing.T) {
	t.Setenv("APPCONFIG_TEST_STRING", "custom")
	if got := String("APPCONFIG_TEST_STRING", "fallback"); got != "custom" {
		t.Fatalf("String = %q, want custom", got)
	}
}

func TestDurationParsesValidValue(t *testing.T) {
	t.Setenv("APPCONFIG_TEST_DURATION", "250ms")
	got := Duration(zap.NewNop(), "APPCONFIG_TEST_DURATION", time.Second)
	if got != 250*time.Millisecond {
		t.Fatalf("Duration = %v, want 250ms", got)
	}
}

func TestDurationFallsBackOnMalformedValue(t *testing.T) {
	t.Setenv("APPCONFIG_TEST_DURATION", "not-a-duration")
	got := Duration(zap.NewNop(), "APPCONFIG_TEST_DURATION", 5*time.Second)
	if got != 5*time.Second {
		t.Fatalf("Duration on malformed value = %v, want the 5s default", got)
	}
}

func TestIntParsesValidValue(t *testing.T) {
	t.Setenv("APPCONFIG_TEST_INT", "7")
	if got := Int(zap.NewNop(), "APPCONFIG_TEST_INT", 1); got != 7 {
		t.Fatalf("Int = %d, want 7", got)
	}
}

func TestIntFallsBackOnMalformedValue(t *testing.T) {
	t.Setenv("APPCONFIG_TEST_INT", "nope")
	if got := Int(zap.NewNop(), "APPCONFIG_TEST_INT", 3); got != 3 {
		t.Fatalf("Int on malformed value = %d, want the default 3", got)
	}
}
