package project

import (
	"archive/zip"
	"fmt"
	"io"

	"zenith/pkg/domain"
)

// Export file names. The triple maps to three fixed files, byte-for-byte.
const (
	ExportHTMLName = "index.html"
	ExportCSSName  = "styles.css"
	ExportJSName   = "script.js"
)

// ExportFiles returns the project as its three fixed export files.
func ExportFiles(p domain.Project) map[string]string {
	return map[string]string{
		ExportHTMLName: p.HTML,
		ExportCSSName:  p.CSS,
		ExportJSName:   p.JavaScript,
	}
}

// WriteZip writes the project as a ZIP archive containing index.html,
// styles.css and script.js, unchanged from the store fields.
func WriteZip(w io.Writer, p domain.Project) error {
	zw := zip.NewWriter(w)

	// Fixed order keeps archives reproducible.
	entries := []struct {
		name    string
		content string
	}{
		{ExportHTMLName, p.HTML},
		{ExportCSSName, p.CSS},
		{ExportJSName, p.JavaScript},
	}

	for _, e := range entries {
		f, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("creating %s: %w", e.name, err)
		}
		if _, err := f.Write([]byte(e.content)); err != nil {
			return fmt.Errorf("writing %s: %w", e.name, err)
		}
	}

	return zw.Close()
}
