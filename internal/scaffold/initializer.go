// Package scaffold writes the starter configuration for a gauge project.
package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/dyluth/gauge/internal/config"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*
var templatesFS embed.FS

// DefaultDatabaseURL points at a store started with `gauge dev up`.
const DefaultDatabaseURL = "redis://localhost:6379"

// Params fill the templates.
type Params struct {
	Project     string
	DatabaseURL string
}

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

var files = []struct {
	template string
	name     string
	perm     os.FileMode
}{
	{"templates/gauge.yml.tmpl", config.DefaultFile, 0644},
	{"templates/env.tmpl", config.DefaultEnvFile, 0600}, // holds the API key
}

// Initialize writes gauge.yml and .env into dir and returns the paths
// written. Existing files are only replaced when force is set.
func Initialize(dir string, p Params, force bool) ([]string, error) {
	if err := config.ValidateProject(p.Project); err != nil {
		return nil, err
	}
	if p.DatabaseURL == "" {
		p.DatabaseURL = DefaultDatabaseURL
	}
	if !force {
		if err := CheckExisting(dir); err != nil {
			return nil, err
		}
	}

	rendered, err := render(dir, p)
	if err != nil {
		return nil, err
	}
	if err := validate(rendered[0].Content); err != nil {
		return nil, err
	}

	var written []string
	for _, f := range rendered {
		if err := os.WriteFile(f.Path, f.Content, f.Permissions); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
		written = append(written, f.Path)
	}
	return written, nil
}

func render(dir string, p Params) ([]FileInfo, error) {
	out := make([]FileInfo, 0, len(files))
	for _, f := range files {
		tmpl, err := template.ParseFS(templatesFS, f.template)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", f.name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, p); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", f.name, err)
		}
		out = append(out, FileInfo{Path: filepath.Join(dir, f.name), Content: buf.Bytes(), Permissions: f.perm})
	}
	return out, nil
}

// validate checks the rendered gauge.yml loads as a configuration.
func validate(content []byte) error {
	var cfg config.GaugeConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return fmt.Errorf("generated %s is not valid YAML: %w", config.DefaultFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("generated %s is invalid: %w", config.DefaultFile, err)
	}
	return nil
}

// CheckExisting returns an error naming every starter file already in dir.
func CheckExisting(dir string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(dir, f.name)); err == nil {
			existing = append(existing, f.name)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	msg := "project already initialized\n\nFound existing"
	if len(existing) == 1 {
		msg += fmt.Sprintf(": %s\n", existing[0])
	} else {
		msg += " files:\n"
		for _, name := range existing {
			msg += fmt.Sprintf("  - %s\n", name)
		}
	}
	msg += "\nUse 'gauge init --force' to overwrite them"
	return fmt.Errorf("%s", msg)
}
