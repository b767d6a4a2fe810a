package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSources = `
sources:
  - id: zh_obergericht
    name: Obergericht Zürich
    level: Cantonal
    canton: zh
    homepage: https://www.gerichte-zh.ch
    start_urls: [https://www.gerichte-zh.ch/entscheide.html]
    languages: [DE]
    allowed_hosts: [" Docs.Gerichte-ZH.ch "]
  - id: bger
    name: Bundesgericht
    level: federal
    homepage: https://www.bger.ch
    connector: search
    languages: [de, fr, it]
    search:
      endpoint: https://www.bger.ch/ext/eurospider/live/de/php/aza/http/index.php
      page_param: page
      first_page: 1
  - id: be_verwaltungsgericht
    name: Verwaltungsgericht Bern
    level: cantonal
    canton: BE
    homepage: https://www.zsg-entscheide.apps.be.ch
    start_urls: [https://www.zsg-entscheide.apps.be.ch/sitemap.xml]
    connector: sitemap
  - id: bvger
    name: Bundesverwaltungsgericht
    level: federal
    homepage: https://www.bvger.ch
    start_urls: [https://www.bvger.ch]
    connector: sitemap
`

func ids(t *testing.T, r *Registry, selection ...string) string {
	t.Helper()
	sources, err := r.Select(selection)
	if err != nil {
		t.Fatalf("Select(%v) failed: %v", selection, err)
	}
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.ID
	}
	return strings.Join(out, ",")
}

func TestParseSources(t *testing.T) {
	r, err := ParseSources([]byte(testSources))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	zh, err := r.Get("zh_obergericht")
	if err != nil {
		t.Fatalf("Expected zh source, got %v", err)
	}
	if zh.Level != "cantonal" || zh.Canton == nil || *zh.Canton != "ZH" {
		t.Errorf("Expected normalised cantonal ZH source, got %s/%v", zh.Level, zh.Canton)
	}
	if zh.Strategy != "crawler" {
		t.Errorf("Expected default crawler strategy, got %s", zh.Strategy)
	}
	if zh.Languages[0] != "de" {
		t.Errorf("Expected lower-cased language, got %s", zh.Languages[0])
	}
	if len(zh.AllowedHosts) != 1 || zh.AllowedHosts[0] != "docs.gerichte-zh.ch" {
		t.Errorf("Expected normalised allowed host, got %v", zh.AllowedHosts)
	}

	bger, _ := r.Get("bger")
	if bger.Search == nil || bger.Search.PageParam != "page" || bger.Search.FirstPage != 1 {
		t.Errorf("Expected search block to decode, got %+v", bger.Search)
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Expected ErrUnknownSource, got %v", err)
	}
}

func TestRegistrySelect(t *testing.T) {
	r, err := ParseSources([]byte(testSources))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	tests := []struct {
		name      string
		selection []string
		expected  string
	}{
		{name: "empty means all", expected: "be_verwaltungsgericht,zh_obergericht,bger,bvger"},
		{name: "all", selection: []string{"all"}, expected: "be_verwaltungsgericht,zh_obergericht,bger,bvger"},
		{name: "federal group", selection: []string{"Federal"}, expected: "bger,bvger"},
		{name: "cantonal group", selection: []string{"cantonal"}, expected: "be_verwaltungsgericht,zh_obergericht"},
		{name: "ids", selection: []string{"bvger", "zh_obergericht"}, expected: "zh_obergericht,bvger"},
		{name: "comma separated with duplicates", selection: []string{"bger,federal", "bger"}, expected: "bger,bvger"},
		{name: "group plus id", selection: []string{"federal", "zh_obergericht"}, expected: "zh_obergericht,bger,bvger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(t, r, tt.selection...); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}

	if _, err := r.Select([]string{"bger", "nope"}); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Expected ErrUnknownSource, got %v", err)
	}
}

func TestParseSourcesInvalid(t *testing.T) {
	tests := []struct {
		name          string
		yaml          string
		expectedError error
	}{
		{
			name:          "duplicate id",
			yaml:          "sources:\n  - {id: a, name: A, level: federal}\n  - {id: a, name: B, level: federal}\n",
			expectedError: ErrDuplicateSource,
		},
		{
			name:          "bad level",
			yaml:          "sources:\n  - {id: a, name: A, level: district}\n",
			expectedError: ErrInvalidSource,
		},
		{
			name:          "cantonal without canton",
			yaml:          "sources:\n  - {id: a, name: A, level: cantonal}\n",
			expectedError: ErrInvalidSource,
		},
		{
			name:          "missing name",
			yaml:          "sources:\n  - {id: a, level: federal}\n",
			expectedError: ErrInvalidSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSources([]byte(tt.yaml))
			if !errors.Is(err, tt.expectedError) {
				t.Errorf("Expected %v, got %v", tt.expectedError, err)
			}
		})
	}

	if _, err := ParseSources([]byte("sources: [")); err == nil {
		t.Error("Expected a YAML error")
	}
}

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(testSources), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err := LoadSources(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(r.All()) != 4 {
		t.Errorf("Expected 4 sources, got %d", len(r.All()))
	}

	if _, err := LoadSources(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
