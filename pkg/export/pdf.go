package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
)

const (
	pdfFontSize   = 11
	pdfLineHeight = 5
	pdfMargin     = 15
)

// ToPDF writes text as an A4 PDF with **bold** spans set in bold
func (e *Exporter) ToPDF(text, name string) (string, error) {
	path, err := e.path(name, "pdf")
	if err != nil {
		return "", err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, pdfMargin)

	family, translate := e.pdfFont(pdf)
	pdf.AddPage()

	for _, s := range splitBold(text) {
		style := ""
		if s.Bold {
			style = "B"
		}
		pdf.SetFont(family, style, pdfFontSize)
		pdf.Write(pdfLineHeight, translate(s.Text))
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("failed to write pdf file: %w", err)
	}

	e.written("pdf", path)
	return path, nil
}

// pdfFont registers DejaVu from FontDir when available. Otherwise it falls
// back to core Helvetica, which only covers cp1252.
func (e *Exporter) pdfFont(pdf *fpdf.Fpdf) (string, func(string) string) {
	regular := filepath.Join(e.FontDir, "DejaVuSans.ttf")
	bold := filepath.Join(e.FontDir, "DejaVuSans-Bold.ttf")

	if fileExists(regular) && fileExists(bold) {
		pdf.AddUTF8Font("DejaVu", "", regular)
		pdf.AddUTF8Font("DejaVu", "B", bold)
		return "DejaVu", func(s string) string { return s }
	}

	e.Logger.Warn().Str("font_dir", e.FontDir).Msg("DejaVu fonts not found, falling back to Helvetica")
	return "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
