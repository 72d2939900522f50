package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harun/casegen/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultFontDir is where Debian-based images install the DejaVu fonts
const DefaultFontDir = "/usr/share/fonts/truetype/dejavu"

// Exporter writes text to DOCX, PDF and source files inside Dir
type Exporter struct {
	Dir     string
	FontDir string
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// New creates an exporter writing into dir
func New(dir, fontDir string, logger zerolog.Logger) *Exporter {
	if fontDir == "" {
		fontDir = DefaultFontDir
	}
	return &Exporter{
		Dir:     dir,
		FontDir: fontDir,
		Logger:  logger.With().Str("component", "export").Logger(),
	}
}

var extensions = map[string]string{
	"python":     "py",
	"java":       "java",
	"javascript": "js",
	"typescript": "ts",
	"go":         "go",
	"kotlin":     "kt",
	"csharp":     "cs",
}

// Extension returns the source file extension for language
func Extension(language string) string {
	if ext, ok := extensions[strings.ToLower(language)]; ok {
		return ext
	}
	return "txt"
}

// ToSourceFile writes code verbatim to <dir>/<name>.<ext>
func (e *Exporter) ToSourceFile(text, name, language string) (string, error) {
	path, err := e.path(name, Extension(language))
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("failed to write source file: %w", err)
	}

	e.written("source", path)
	return path, nil
}

// path validates name and prepares the output directory
func (e *Exporter) path(name, ext string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid export name: %q", name)
	}

	dir := e.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	return filepath.Join(dir, name+"."+ext), nil
}

func (e *Exporter) written(format, path string) {
	e.Metrics.Export(format)
	e.Logger.Debug().Str("format", format).Str("path", path).Msg("Export file written")
}
