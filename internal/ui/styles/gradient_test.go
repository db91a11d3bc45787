package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

func TestGradientFill(t *testing.T) {
	from, to := T().Primary, T().Secondary
	tests := []struct {
		width int
		want  string
	}{
		{0, ""},
		{-3, ""},
		{1, "▓"},
		{6, "▓▓▓▓▓▓"},
	}
	for _, tt := range tests {
		got := ansi.Strip(GradientFill("▓", tt.width, from, to))
		if got != tt.want {
			t.Errorf("GradientFill(width %d) = %q, want %q", tt.width, got, tt.want)
		}
	}
}

func TestApplyBoldGradient_KeepsText(t *testing.T) {
	tests := []string{"", "a", "Ocean Drive", "日本語タイトル", "café ☕"}
	for _, text := range tests {
		got := ansi.Strip(ApplyBoldGradient(text, lipgloss.Color("#000000"), lipgloss.Color("#ffffff")))
		if got != text {
			t.Errorf("ApplyBoldGradient(%q) stripped = %q", text, got)
		}
	}
}

func TestBlend(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		from, to lipgloss.Color
		first    string
		last     string
	}{
		{"endpoints", 5, "#000000", "#ffffff", "#000000", "#ffffff"},
		{"single", 1, "#ff0000", "#0000ff", "#ff0000", "#ff0000"},
		{"ansi falls back", 2, "12", "#ffffff", "#808080", "#ffffff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := blend(tt.size, tt.from, tt.to)
			if len(got) != tt.size {
				t.Fatalf("blend() len = %d, want %d", len(got), tt.size)
			}
			if got[0].Hex() != tt.first || got[len(got)-1].Hex() != tt.last {
				t.Errorf("blend() = %s..%s, want %s..%s", got[0].Hex(), got[len(got)-1].Hex(), tt.first, tt.last)
			}
		})
	}
}
