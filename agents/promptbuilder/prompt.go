/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrUnbound is returned by Build when a placeholder has no value.
var ErrUnbound = errors.New("unbound placeholder")

// Prompt is a parsed template. Bind methods return a new Prompt and leave the
// receiver untouched, so a parsed template can be shared across requests.
type Prompt struct {
	segments []segment
	bindings map[string]binding
}

// Parse parses a template with {{name}} placeholders.
func Parse(template string) (*Prompt, error) {
	segs, err := scan(template)
	if err != nil {
		return nil, err
	}
	return &Prompt{segments: segs, bindings: map[string]binding{}}, nil
}

// Must panics if err is non-nil.
func Must(p *Prompt, err error) *Prompt {
	if err != nil {
		panic(err)
	}
	return p
}

// Placeholders returns the distinct placeholder names in template order.
func (p *Prompt) Placeholders() []string {
	var names []string
	for _, s := range p.segments {
		if s.placeholder != "" && !slices.Contains(names, s.placeholder) {
			names = append(names, s.placeholder)
		}
	}
	return names
}

// Has reports whether the template references name.
func (p *Prompt) Has(name string) bool {
	return slices.Contains(p.Placeholders(), name)
}

// BindText binds a plain string.
func (p *Prompt) BindText(name, value string) (*Prompt, error) {
	return p.bind(name, textBinding(value))
}

// BindJSON binds data rendered as indented JSON.
func (p *Prompt) BindJSON(name string, data any) (*Prompt, error) {
	return p.bind(name, jsonBinding{data: data})
}

// BindYAML binds data rendered as YAML.
func (p *Prompt) BindYAML(name string, data any) (*Prompt, error) {
	return p.bind(name, yamlBinding{data: data})
}

// BindVars binds every entry of vars whose name the template references.
// Entries the template does not use are ignored.
func (p *Prompt) BindVars(vars map[string]string) (*Prompt, error) {
	out := p.clone()
	for _, name := range p.Placeholders() {
		v, ok := vars[name]
		if !ok {
			continue
		}
		if _, bound := out.bindings[name]; bound {
			return nil, fmt.Errorf("placeholder %q already bound", name)
		}
		out.bindings[name] = textBinding(v)
	}
	return out, nil
}

// Build renders the prompt. Every placeholder must be bound.
func (p *Prompt) Build() (string, error) {
	values := make(map[string]string, len(p.bindings))
	for name, b := range p.bindings {
		v, err := b.render()
		if err != nil {
			return "", fmt.Errorf("render %q: %w", name, err)
		}
		values[name] = v
	}

	var n int
	for _, s := range p.segments {
		n += len(s.text) + len(values[s.placeholder])
	}
	buf := make([]byte, 0, n)
	for _, s := range p.segments {
		if s.placeholder == "" {
			buf = append(buf, s.text...)
			continue
		}
		v, ok := values[s.placeholder]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnbound, s.placeholder)
		}
		buf = append(buf, v...)
	}
	return string(buf), nil
}

// Render parses template and binds vars in one step.
func Render(template string, vars map[string]string) (string, error) {
	p, err := Parse(template)
	if err != nil {
		return "", err
	}
	if p, err = p.BindVars(vars); err != nil {
		return "", err
	}
	return p.Build()
}

func (p *Prompt) bind(name string, b binding) (*Prompt, error) {
	if !p.Has(name) {
		return nil, fmt.Errorf("placeholder %q not found in template", name)
	}
	if _, bound := p.bindings[name]; bound {
		return nil, fmt.Errorf("placeholder %q already bound", name)
	}
	out := p.clone()
	out.bindings[name] = b
	return out, nil
}

func (p *Prompt) clone() *Prompt {
	return &Prompt{segments: p.segments, bindings: maps.Clone(p.bindings)}
}
