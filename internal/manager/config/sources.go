package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"

	"gopkg.in/yaml.v3"
)

// Selection keywords accepted by Registry.Select.
const (
	SelectAll      = "all"
	SelectFederal  = models.LevelFederal
	SelectCantonal = models.LevelCantonal
)

const defaultStrategy = "crawler"

var (
	ErrUnknownSource   = errors.New("unknown source")
	ErrDuplicateSource = errors.New("duplicate source id")
	ErrInvalidSource   = errors.New("invalid source")
)

type sourcesFile struct {
	Sources []*models.Source `yaml:"sources"`
}

// Registry is the immutable set of configured sources.
type Registry struct {
	sources []*models.Source
	byID    map[string]*models.Source
}

// LoadSources reads a sources YAML file.
func LoadSources(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates a sources document.
func ParseSources(data []byte) (*Registry, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	return NewRegistry(file.Sources)
}

// NewRegistry normalises and validates sources. Sources are ordered by level,
// canton and name.
func NewRegistry(sources []*models.Source) (*Registry, error) {
	r := &Registry{byID: make(map[string]*models.Source, len(sources))}
	var errs []error
	for i, s := range sources {
		if s == nil {
			errs = append(errs, fmt.Errorf("%w: entry %d is empty", ErrInvalidSource, i))
			continue
		}
		normalizeSource(s)
		if err := checkSource(s); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := r.byID[s.ID]; ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateSource, s.ID))
			continue
		}
		r.byID[s.ID] = s
		r.sources = append(r.sources, s)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	sort.SliceStable(r.sources, func(i, j int) bool {
		a, b := r.sources[i], r.sources[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if ca, cb := canton(a), canton(b); ca != cb {
			return ca < cb
		}
		return a.Name < b.Name
	})
	return r, nil
}

func normalizeSource(s *models.Source) {
	s.ID = strings.TrimSpace(s.ID)
	s.Level = strings.ToLower(strings.TrimSpace(s.Level))
	if s.Canton != nil {
		c := strings.ToUpper(strings.TrimSpace(*s.Canton))
		if c == "" {
			s.Canton = nil
		} else {
			s.Canton = &c
		}
	}
	s.Strategy = strings.ToLower(strings.TrimSpace(s.Strategy))
	if s.Strategy == "" {
		s.Strategy = defaultStrategy
	}
	for i, lang := range s.Languages {
		s.Languages[i] = strings.ToLower(strings.TrimSpace(lang))
	}
	for i, host := range s.AllowedHosts {
		s.AllowedHosts[i] = strings.ToLower(strings.TrimSpace(host))
	}
}

func checkSource(s *models.Source) error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidSource)
	case s.Name == "":
		return fmt.Errorf("%w: %s: missing name", ErrInvalidSource, s.ID)
	case s.Level != models.LevelFederal && s.Level != models.LevelCantonal:
		return fmt.Errorf("%w: %s: level must be federal or cantonal, got %q", ErrInvalidSource, s.ID, s.Level)
	case s.Level == models.LevelCantonal && s.Canton == nil:
		return fmt.Errorf("%w: %s: cantonal source needs a canton", ErrInvalidSource, s.ID)
	}
	return nil
}

func canton(s *models.Source) string {
	if s.Canton == nil {
		return ""
	}
	return *s.Canton
}

// All returns every source in registry order.
func (r *Registry) All() []*models.Source {
	out := make([]*models.Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Get returns the source with id.
func (r *Registry) Get(id string) (*models.Source, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return s, nil
}

// Select resolves a selection of ids and the groups all, federal and
// cantonal. An empty selection means all. Each source appears once, in
// registry order.
func (r *Registry) Select(selection []string) ([]*models.Source, error) {
	want := make(map[string]bool)
	var errs []error
	if len(selection) == 0 {
		selection = []string{SelectAll}
	}
	for _, raw := range selection {
		for _, token := range strings.Split(raw, ",") {
			token = strings.TrimSpace(token)
			switch strings.ToLower(token) {
			case "":
			case SelectAll:
				for _, s := range r.sources {
					want[s.ID] = true
				}
			case SelectFederal, SelectCantonal:
				for _, s := range r.sources {
					if s.Level == strings.ToLower(token) {
						want[s.ID] = true
					}
				}
			default:
				if _, ok := r.byID[token]; !ok {
					errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownSource, token))
					continue
				}
				want[token] = true
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	var out []*models.Source
	for _, s := range r.sources {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}
