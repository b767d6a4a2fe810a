package extractors

import (
	"testing"
	"time"
)

func TestExtractDocket(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "federal supreme court", text: "Urteil vom 31. Januar 2022 in Sachen 4A_500/2021 betreffend", expected: "4A_500/2021"},
		{name: "federal administrative court", text: "Arrêt du Tribunal administratif fédéral A-1234/2020", expected: "A-1234/2020"},
		{name: "cantonal dotted", text: "Entscheid OG.2020.123-XY des Obergerichts", expected: "OG.2020.123-XY"},
		{name: "zurich", text: "Geschäfts-Nr.: LB220031-O/U", expected: "LB220031"},
		{name: "bge reference only", text: "vgl. BGE 147 III 73 E. 2", expected: "BGE 147 III 73"},
		{name: "none", text: "Keine Geschäftsnummer hier.", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractDocket(tt.text); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestLooksLikeDocket(t *testing.T) {
	tests := []struct {
		query    string
		expected bool
	}{
		{"4A_500/2021", true},
		{" 6B_1234/2019 ", true},
		{"A-1234/2020", true},
		{"BGE 147 III 73", true},
		{"Mietrecht 4A_500/2021", false},
		{"Kündigung", false},
	}
	for _, tt := range tests {
		if got := LooksLikeDocket(tt.query); got != tt.expected {
			t.Errorf("LooksLikeDocket(%q) = %v, want %v", tt.query, got, tt.expected)
		}
	}
}

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "numeric", text: "Urteil vom 31.01.2022\nBesetzung", expected: "2022-01-31"},
		{name: "german words", text: "Urteil vom 3. März 2021", expected: "2021-03-03"},
		{name: "french words", text: "Arrêt du 12 juillet 2019", expected: "2019-07-12"},
		{name: "iso", text: "Entscheiddatum: 2020-11-05", expected: "2020-11-05"},
		{name: "earliest wins", text: "Urteil vom 1. Februar 2023, publiziert am 15.03.2023", expected: "2023-02-01"},
		{name: "invalid day skipped", text: "Nr. 31.02.2022 und dann 01.03.2022", expected: "2022-03-01"},
		{name: "none", text: "ohne Datum", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractDate(tt.text)
			if tt.expected == "" {
				if got != nil {
					t.Errorf("Expected no date, got %s", got.Format(time.DateOnly))
				}
				return
			}
			if got == nil {
				t.Fatalf("Expected %s, got nil", tt.expected)
			}
			if got.Format(time.DateOnly) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got.Format(time.DateOnly))
			}
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "german",
			text:     "Das Bundesgericht hat die Beschwerde abgewiesen, weil die Vorinstanz den Sachverhalt richtig festgestellt und das Recht korrekt angewendet hat.",
			expected: "de",
		},
		{
			name:     "french",
			text:     "Le Tribunal fédéral a rejeté le recours, car l'autorité précédente a correctement établi les faits et appliqué le droit.",
			expected: "fr",
		},
		{
			name:     "italian",
			text:     "Il Tribunale federale ha respinto il ricorso, poiché l'autorità inferiore ha accertato correttamente i fatti e applicato il diritto.",
			expected: "it",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLanguage(tt.text); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
