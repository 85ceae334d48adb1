package notifx

import (
	"bytes"
	htmltemplate "html/template"
	"sync"
	texttemplate "text/template"
)

// Template is the source of one named e-mail
type Template struct {
	Subject string
	Text    string
	HTML    string
}

// Rendered is a template executed against its data
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

type parsed struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// TemplateRegistry stores parsed templates by name
type TemplateRegistry struct {
	templates map[string]parsed
	mu        sync.RWMutex
}

func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{templates: make(map[string]parsed)}
}

// Register parses tpl and stores it as name, replacing an earlier one
func (r *TemplateRegistry) Register(name string, tpl Template) error {
	var p parsed
	var err error

	if p.subject, err = texttemplate.New(name + ".subject").Parse(tpl.Subject); err != nil {
		return r.parseErr(name, err)
	}
	if tpl.Text != "" {
		if p.text, err = texttemplate.New(name + ".text").Parse(tpl.Text); err != nil {
			return r.parseErr(name, err)
		}
	}
	if tpl.HTML != "" {
		if p.html, err = htmltemplate.New(name + ".html").Parse(tpl.HTML); err != nil {
			return r.parseErr(name, err)
		}
	}

	r.mu.Lock()
	r.templates[name] = p
	r.mu.Unlock()
	return nil
}

// Render executes the template name with data
func (r *TemplateRegistry) Render(name string, data any) (*Rendered, error) {
	r.mu.RLock()
	p, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrTemplateNotFound(name)
	}

	var out Rendered
	var buf bytes.Buffer

	if err := p.subject.Execute(&buf, data); err != nil {
		return nil, r.renderErr(name, err)
	}
	out.Subject = buf.String()

	if p.text != nil {
		buf.Reset()
		if err := p.text.Execute(&buf, data); err != nil {
			return nil, r.renderErr(name, err)
		}
		out.Text = buf.String()
	}
	if p.html != nil {
		buf.Reset()
		if err := p.html.Execute(&buf, data); err != nil {
			return nil, r.renderErr(name, err)
		}
		out.HTML = buf.String()
	}
	return &out, nil
}

func (r *TemplateRegistry) parseErr(name string, err error) error {
	return ErrRegistry.NewWithCause(CodeTemplateParse, err).WithDetail("template", name)
}

func (r *TemplateRegistry) renderErr(name string, err error) error {
	return ErrRegistry.NewWithCause(CodeTemplateRender, err).WithDetail("template", name)
}
