package utils

import (
	"regexp"
	"testing"
)

func TestNewSessionCode(t *testing.T) {
	hexRe := regexp.MustCompile(`^[0-9a-f]{16}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := NewSessionCode()
		if err != nil {
			t.Fatalf("NewSessionCode: %v", err)
		}
		if !hexRe.MatchString(code) {
			t.Fatalf("code %q is not 16 lowercase hex chars", code)
		}
		if seen[code] {
			t.Fatalf("code %q repeated", code)
		}
		seen[code] = true
	}
}
