package doseparser

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/giygas/doselog/routes"
)

func TestParseStandardGrammar(t *testing.T) {
	tests := []struct {
		input     string
		amount    float64
		unit      Unit
		substance string
		token     string
	}{
		{"20mg methamphetamine oral", 20, Milligram, "methamphetamine", "oral"},
		{"0.4ug lsd sublingual", 0.4, Microgram, "lsd", "sublingual"},
		{"1.5g Ketamine snorted", 1.5, Gram, "ketamine", "snorted"},
		{"  10ml ghb   swallowed  ", 10, Millilitre, "ghb", "swallowed"},
		{"5mg n-ethyl intra-arterial", 5, Milligram, "n-ethyl", "intra-arterial"},
		{"20.mg caffeine oral", 20, Milligram, "caffeine", "oral"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if got.Amount != tt.amount {
				t.Errorf("Expected amount %v, got %v", tt.amount, got.Amount)
			}
			if got.Unit != tt.unit {
				t.Errorf("Expected unit %q, got %q", tt.unit, got.Unit)
			}
			if got.Substance != tt.substance {
				t.Errorf("Expected substance %q, got %q", tt.substance, got.Substance)
			}
			if got.Token != tt.token {
				t.Errorf("Expected token %q, got %q", tt.token, got.Token)
			}
		})
	}
}

func TestParseVerbGrammar(t *testing.T) {
	got, err := Parse("@ate 30mg Adderall")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Token != "@ate" {
		t.Errorf("Expected unresolved token @ate, got %q", got.Token)
	}
	if got.Amount != 30 || got.Unit != Milligram || got.Substance != "adderall" {
		t.Errorf("Unexpected parse result: %+v", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		kind  ErrorKind
		err   error
		token string
	}{
		{"20mg methamphetamine teleported", KindUnknownRoute, ErrUnknownRoute, "teleported"},
		{"20mg methamphetamine Oral", KindUnknownRoute, ErrUnknownRoute, "Oral"},
		{"@drank 30mg adderall", KindUnknownVerb, ErrUnknownVerb, "@drank"},
		{"", KindFormat, ErrInvalidFormat, ""},
		{"twenty mg caffeine oral", KindFormat, ErrInvalidFormat, ""},
		{"20 mg caffeine oral", KindFormat, ErrInvalidFormat, ""},
		{"20kg caffeine oral", KindFormat, ErrInvalidFormat, ""},
		{"-20mg caffeine oral", KindFormat, ErrInvalidFormat, ""},
		{"1e3mg caffeine oral", KindFormat, ErrInvalidFormat, ""},
		{"20mg caffeine @ate", KindFormat, ErrInvalidFormat, ""},
		{"20mg caffeine oral extra", KindFormat, ErrInvalidFormat, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Expected error for %q", tt.input)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected errors.Is(%v), got %v", tt.err, err)
			}
			if KindOf(err) != tt.kind {
				t.Errorf("Expected kind %q, got %q", tt.kind, KindOf(err))
			}
			var pe *ParseError
			if errors.As(err, &pe) && pe.Token != tt.token {
				t.Errorf("Expected token %q, got %q", tt.token, pe.Token)
			}
		})
	}
}

func TestFormatErrorNamesBothShapes(t *testing.T) {
	_, err := Parse("nonsense")
	if err == nil {
		t.Fatal("Expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, StandardShape) || !strings.Contains(msg, VerbShape) {
		t.Errorf("Expected both grammar shapes in %q", msg)
	}
}

func TestUnknownRouteErrorNamesToken(t *testing.T) {
	_, err := Parse("20mg caffeine beamed")
	if err == nil || !strings.Contains(err.Error(), "beamed") {
		t.Errorf("Expected error naming the token, got %v", err)
	}
}

func TestParseOverflowIsUnexpected(t *testing.T) {
	_, err := Parse(strings.Repeat("9", 400) + "mg caffeine oral")
	if KindOf(err) != KindUnexpected {
		t.Errorf("Expected unexpected kind, got %q (%v)", KindOf(err), err)
	}
}

func TestParserUsesCustomResolver(t *testing.T) {
	registry := routes.MustNew([]routes.Method{{Route: routes.Oral, Aliases: []string{"gulped"}}})
	p := NewParser(registry)

	if _, err := p.Parse("5mg caffeine gulped"); err != nil {
		t.Errorf("Expected custom alias to parse, got %v", err)
	}
	if _, err := p.Parse("5mg caffeine oral"); !errors.Is(err, ErrUnknownRoute) {
		t.Errorf("Expected oral to be unknown for the custom registry, got %v", err)
	}
}

func TestToMilligrams(t *testing.T) {
	tests := []struct {
		amount   float64
		unit     Unit
		policy   VolumePolicy
		expected float64
		wantErr  bool
	}{
		{20, Milligram, VolumeAsMass, 20, false},
		{0.4, Microgram, VolumeAsMass, 0.0004, false},
		{1.5, Gram, VolumeAsMass, 1500, false},
		{10, Millilitre, VolumeAsMass, 10, false},
		{10, Millilitre, VolumeReject, 0, true},
		{1, Unit("kg"), VolumeAsMass, 0, true},
	}

	for _, tt := range tests {
		got, err := ToMilligrams(tt.amount, tt.unit, tt.policy)
		if (err != nil) != tt.wantErr {
			t.Errorf("ToMilligrams(%v, %q): unexpected error state %v", tt.amount, tt.unit, err)
			continue
		}
		if math.Abs(got-tt.expected) > 1e-12 {
			t.Errorf("ToMilligrams(%v, %q) = %v, want %v", tt.amount, tt.unit, got, tt.expected)
		}
	}
}

func TestParseVolumePolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected VolumePolicy
		wantErr  bool
	}{
		{"", VolumeAsMass, false},
		{"mass", VolumeAsMass, false},
		{"Reject", VolumeReject, false},
		{"litres", VolumeAsMass, true},
	}
	for _, tt := range tests {
		got, err := ParseVolumePolicy(tt.input)
		if (err != nil) != tt.wantErr || got != tt.expected {
			t.Errorf("ParseVolumePolicy(%q) = %v, %v", tt.input, got, err)
		}
	}
}
