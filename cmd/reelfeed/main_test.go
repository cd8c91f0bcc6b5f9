package main

import (
	"testing"
)

func TestGetEnvReturnsValueWhenSet(t *testing.T) {
	const key = "TEST_GETENV_SET"
	const expected = "custom-value"

	t.Setenv(key, expected)

	result := getEnv(key, "fallback")
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestGetEnvReturnsFallbackWhenUnset(t *testing.T) {
	const key = "TEST_GETENV_UNSET"
	const fallback = "default-value"

	result := getEnv(key, fallback)
	if result != fallback {
		t.Errorf("expected fallback %q, got %q", fallback, result)
	}
}

func TestGetEnvInt64(t *testing.T) {
	const key = "TEST_GETENV_INT"

	t.Setenv(key, "42")
	if got := getEnvInt64(key, 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	t.Setenv(key, "not a number")
	if got := getEnvInt64(key, 7); got != 7 {
		t.Errorf("expected fallback 7, got %d", got)
	}
}
