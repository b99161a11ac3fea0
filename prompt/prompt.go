// Package prompt renders system prompts from text/template templates.
package prompt

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"text/template"

	"github.com/sweetpotato0/genui/capability"
)

// SystemTemplateName is the name the default system template is registered
// under by NewManager.
const SystemTemplateName = "system"

// DefaultSystemTemplate tells the model how to choose between answering and
// calling a capability.
const DefaultSystemTemplate = `{{- with .Instructions}}{{.}}

{{end -}}
{{- if .Capabilities -}}
Reply with plain text, or call exactly one of these capabilities when it answers the request better:
{{range .Capabilities}}- {{.Name}}{{with .Description}}: {{.}}{{end}}
{{end -}}
{{- else -}}
Reply with plain text.
{{- end}}`

// Template represents a prompt template with variables
type Template struct {
	Name     string
	Content  string
	template *template.Template
}

// NewTemplate creates a new prompt template
func NewTemplate(name, content string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Template{
		Name:     name,
		Content:  content,
		template: tmpl,
	}, nil
}

// Render executes the template with data, usually a SystemData or a map.
func (t *Template) Render(data any) (string, error) {
	var buf strings.Builder
	if err := t.template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// CapabilityInfo is what a template sees of one capability.
type CapabilityInfo struct {
	Name        string
	Description string
}

// SystemData is the input of a system prompt template.
type SystemData struct {
	Instructions string
	Capabilities []CapabilityInfo
}

// ForRegistry lists the capabilities of reg in registration order.
func ForRegistry(instructions string, reg *capability.Registry) SystemData {
	data := SystemData{Instructions: strings.TrimSpace(instructions)}
	if reg == nil {
		return data
	}
	for _, d := range reg.Descriptors() {
		data.Capabilities = append(data.Capabilities, CapabilityInfo{Name: d.Name, Description: d.Description})
	}
	return data
}

// Manager manages prompt templates
// All operations are thread-safe using RWMutex protection
type Manager struct {
	mu        sync.RWMutex // Protects templates map
	templates map[string]*Template
}

// NewManager creates a manager holding the default system template.
func NewManager() *Manager {
	m := &Manager{
		templates: make(map[string]*Template),
	}
	if err := m.RegisterString(SystemTemplateName, DefaultSystemTemplate); err != nil {
		panic(err)
	}
	return m
}

// Register adds a template to the manager, replacing one with the same name.
func (m *Manager) Register(tmpl *Template) error {
	if tmpl == nil || tmpl.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[tmpl.Name] = tmpl
	return nil
}

// RegisterString registers a template from string content
func (m *Manager) RegisterString(name, content string) error {
	tmpl, err := NewTemplate(name, content)
	if err != nil {
		return err
	}
	return m.Register(tmpl)
}

// Get retrieves a template by name
func (m *Manager) Get(name string) (*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tmpl, ok := m.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %s not found", name)
	}
	return tmpl, nil
}

// Render renders a template by name
func (m *Manager) Render(name string, data any) (string, error) {
	tmpl, err := m.Get(name)
	if err != nil {
		return "", err
	}
	return tmpl.Render(data)
}

// System renders the system template for instructions and reg.
func (m *Manager) System(instructions string, reg *capability.Registry) (string, error) {
	return m.Render(SystemTemplateName, ForRegistry(instructions, reg))
}

// List returns all registered template names, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.templates))
	for name := range m.templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RenderSystem renders the default system template.
func RenderSystem(instructions string, reg *capability.Registry) (string, error) {
	return NewManager().System(instructions, reg)
}
