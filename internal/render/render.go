// Package render fills HTML templates from a directory with named
// placeholder values.
package render

import (
	"fmt"
	"html/template"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Placeholder names shared by the mail and page templates.
const (
	CompanyName    = "COMPANY_NAME"
	LogoURL        = "LOGO_URL"
	CompanyWebsite = "COMPANY_WEBSITE"
	UnsubscribeURL = "UNSUBSCRIBE_URL"
	Year           = "YEAR"
)

// Vars maps placeholder names to their values.
type Vars map[string]string

type Renderer interface {
	Render(name string, vars Vars) (string, error)
}

// Files renders templates read from dir. Templates are parsed on every
// call, so edits to the files show up without a restart.
type Files struct {
	dir string
	now func() time.Time
}

func New(dir string) *Files {
	return &Files{dir: dir, now: time.Now}
}

// Render executes the template called name. Placeholders without a
// value render as empty text. YEAR defaults to the current year.
func (f *Files) Render(name string, vars Vars) (string, error) {
	tmpl, err := template.ParseFiles(filepath.Join(f.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	tmpl.Option("missingkey=zero")

	data := Vars{Year: strconv.Itoa(f.now().Year())}
	for k, v := range vars {
		data[k] = v
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return b.String(), nil
}
