package lesson

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"lessonforge/internal/generation"
	"lessonforge/internal/text"
)

//go:embed prompts.yaml
var promptsYAML []byte

type fieldPrompt struct {
	Temperature float32 `yaml:"temperature"`
	Prompt      string  `yaml:"prompt"`

	tmpl *template.Template
}

type promptCatalogue struct {
	System string                `yaml:"system"`
	Fields map[Field]fieldPrompt `yaml:"fields"`

	system *template.Template
}

// promptData is what every template can reference.
type promptData struct {
	Topic         string
	Complexity    text.Complexity
	Title         string
	Content       string
	ExerciseCount int
}

var catalogue = mustLoadCatalogue(promptsYAML)

func mustLoadCatalogue(raw []byte) promptCatalogue {
	c, err := loadCatalogue(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func loadCatalogue(raw []byte) (promptCatalogue, error) {
	var c promptCatalogue
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("parse prompt catalogue: %w", err)
	}

	sys, err := template.New("system").Option("missingkey=error").Parse(c.System)
	if err != nil {
		return c, fmt.Errorf("parse system prompt: %w", err)
	}
	c.system = sys

	for f, fp := range c.Fields {
		t, err := template.New(string(f)).Option("missingkey=error").Parse(fp.Prompt)
		if err != nil {
			return c, fmt.Errorf("parse %s prompt: %w", f, err)
		}
		fp.tmpl = t
		c.Fields[f] = fp
	}
	return c, nil
}

func exerciseCount(c text.Complexity) int {
	switch c {
	case text.Advanced:
		return 4
	case text.Intermediate:
		return 3
	}
	return 2
}

func (c promptCatalogue) request(f Field, data promptData) (generation.Request, error) {
	fp, ok := c.Fields[f]
	if !ok {
		return generation.Request{}, fmt.Errorf("no prompt for field %q", f)
	}

	var sys, user strings.Builder
	if err := c.system.Execute(&sys, data); err != nil {
		return generation.Request{}, fmt.Errorf("render system prompt: %w", err)
	}
	if err := fp.tmpl.Execute(&user, data); err != nil {
		return generation.Request{}, fmt.Errorf("render %s prompt: %w", f, err)
	}

	return generation.Request{
		System:      strings.TrimSpace(sys.String()),
		User:        strings.TrimSpace(user.String()),
		Temperature: fp.Temperature,
		Shape:       f.Shape(),
	}, nil
}
