package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
)

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

// Normal style: Calibri 11pt (sizes are in half-points)
const docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:default="1" w:styleId="Normal">
<w:name w:val="Normal"/>
<w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:eastAsia="Calibri" w:cs="Calibri"/><w:sz w:val="22"/><w:szCs w:val="22"/></w:rPr>
</w:style>
</w:styles>`

// ToDocx writes text as a Word document. Paragraphs are separated by blank
// lines and **bold** spans become bold runs.
func (e *Exporter) ToDocx(text, name string) (string, error) {
	path, err := e.path(name, "docx")
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRootRels},
		{"word/_rels/document.xml.rels", docxDocumentRels},
		{"word/styles.xml", docxStyles},
		{"word/document.xml", docxDocument(text)},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return "", fmt.Errorf("failed to create docx part %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return "", fmt.Errorf("failed to write docx part %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish docx archive: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write docx file: %w", err)
	}

	e.written("docx", path)
	return path, nil
}

// docxDocument builds word/document.xml for text
func docxDocument(text string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	for _, para := range strings.Split(text, "\n\n") {
		sb.WriteString("<w:p>")
		for _, s := range splitBold(para) {
			writeRun(&sb, s)
		}
		sb.WriteString("</w:p>")
	}

	sb.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr>`)
	sb.WriteString("</w:body></w:document>")
	return sb.String()
}

// writeRun emits one run; line breaks and tabs inside it become w:br and w:tab
func writeRun(sb *strings.Builder, s span) {
	sb.WriteString("<w:r>")
	if s.Bold {
		sb.WriteString("<w:rPr><w:b/></w:rPr>")
	}
	for i, line := range strings.Split(s.Text, "\n") {
		if i > 0 {
			sb.WriteString("<w:br/>")
		}
		for j, field := range strings.Split(line, "\t") {
			if j > 0 {
				sb.WriteString("<w:tab/>")
			}
			if field == "" {
				continue
			}
			sb.WriteString(`<w:t xml:space="preserve">`)
			xml.EscapeText(sb, []byte(field))
			sb.WriteString("</w:t>")
		}
	}
	sb.WriteString("</w:r>")
}
