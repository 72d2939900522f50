// Package prompts renders the prompt templates sent to the text generation service.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/rs/zerolog"
)

// Template names
const (
	Manual   = "manual"
	Autotest = "autotest"
)

// Names lists every template a Set must provide
var Names = []string{Manual, Autotest}

//go:embed templates/*.tmpl
var defaults embed.FS

// ManualData is the data passed to the manual template
type ManualData struct {
	FeatureDescription string
}

// AutotestData is the data passed to the autotest template
type AutotestData struct {
	ManualTestText string
	Language       string
}

// Set holds the parsed prompt templates. Templates found in the override
// directory replace the embedded defaults of the same name.
type Set struct {
	dir    string
	logger zerolog.Logger

	mu        sync.RWMutex
	templates map[string]*template.Template
}

// New parses the embedded templates and any overrides found in dir
func New(dir string, logger zerolog.Logger) (*Set, error) {
	s := &Set{
		dir:    dir,
		logger: logger.With().Str("component", "prompts").Logger(),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the override directory, empty when overrides are disabled
func (s *Set) Dir() string {
	return s.dir
}

// Reload re-parses all templates. On error the previous templates stay active.
func (s *Set) Reload() error {
	parsed := make(map[string]*template.Template, len(Names))
	overridden := 0

	for _, name := range Names {
		src, fromDir, err := s.source(name)
		if err != nil {
			return err
		}
		if fromDir {
			overridden++
		}

		tmpl, err := template.New(name).
			Funcs(sprig.TxtFuncMap()).
			Option("missingkey=error").
			Parse(src)
		if err != nil {
			return fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		parsed[name] = tmpl
	}

	s.mu.Lock()
	s.templates = parsed
	s.mu.Unlock()

	s.logger.Info().Int("overridden", overridden).Msg("Prompt templates loaded")
	return nil
}

// source returns the template text for name and whether it came from the override dir
func (s *Set) source(name string) (string, bool, error) {
	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, name+".tmpl"))
		if err == nil {
			return string(data), true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to read %s template: %w", name, err)
		}
	}

	data, err := defaults.ReadFile("templates/" + name + ".tmpl")
	if err != nil {
		return "", false, fmt.Errorf("no default %s template: %w", name, err)
	}
	return string(data), false, nil
}

// Render executes the named template with data
func (s *Set) Render(name string, data any) (string, error) {
	s.mu.RLock()
	tmpl, ok := s.templates[name]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown prompt template: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return buf.String(), nil
}
