package services

import (
	"errors"
	"testing"
)

func TestNormalizeRegistration(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"latin passthrough", "CA1234BH", "CA1234BH"},
		{"lowercase latin", "ca1234bh", "CA1234BH"},
		{"surrounding whitespace", "  CA1234BH  ", "CA1234BH"},
		{"full cyrillic plate", "СО7007АК", "CO7007AK"},
		{"mixed cyrillic and latin", "А123AB", "A123AB"},
		{"all twelve confusables", "АВЕКМНОРСТУХ", "ABEKMHOPCTYX"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeRegistration(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}

	t.Run("idempotent on normalized output", func(t *testing.T) {
		once, err := NormalizeRegistration("СО7007АК")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		twice, err := NormalizeRegistration(once)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if once != twice {
			t.Fatalf("normalization must be idempotent: %q vs %q", once, twice)
		}
	})

	t.Run("unmapped cyrillic letter is rejected", func(t *testing.T) {
		_, err := NormalizeRegistration("Ж123АВ")
		var invalid *InvalidPlateCharError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidPlateCharError, got %v", err)
		}
		if invalid.Char != 'Ж' {
			t.Fatalf("expected offending char Ж, got %q", invalid.Char)
		}
	})

	t.Run("punctuation is rejected", func(t *testing.T) {
		if _, err := NormalizeRegistration("CA-1234"); err == nil {
			t.Fatal("expected error for punctuation")
		}
	})

	t.Run("empty input stays empty", func(t *testing.T) {
		got, err := NormalizeRegistration("   ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Fatalf("expected empty result, got %q", got)
		}
	})
}
