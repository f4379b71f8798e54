// Package prompts holds the prompt templates for each pipeline task.
//
// Templates are embedded at build time and use ${name} placeholders.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/valyala/fasttemplate"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Name selects a template.
type Name string

const (
	SemanticRouter       Name = "semantic_router"
	RAGRouter            Name = "rag_router"
	RAGResponder         Name = "rag_responder"
	ResponderInstruction Name = "responder_instruction"
	RequestAttestation   Name = "request_attestation"
	Conversational       Name = "conversational"
)

var (
	// ErrUnknownPrompt is returned for a name with no template.
	ErrUnknownPrompt = errors.New("unknown prompt")
	// ErrMissingVariable is returned when a placeholder has no value.
	ErrMissingVariable = errors.New("missing prompt variable")
)

// EnumSchema constrains a JSON reply to an object with one string
// property drawn from Values.
type EnumSchema struct {
	Property string
	Values   []string
}

// Prompt is a rendered template plus the reply format it expects.
type Prompt struct {
	Name             Name
	Text             string
	ResponseMIMEType string      // empty means free text
	Schema           *EnumSchema // nil means unconstrained
}

type entry struct {
	tmpl   *fasttemplate.Template
	mime   string
	schema *EnumSchema
}

// Library renders named templates.
type Library struct {
	entries map[Name]entry
}

// formats records the reply format per template; templates not listed
// reply in free text.
var formats = map[Name]EnumSchema{
	SemanticRouter: {Property: "route", Values: []string{"REQUEST_ATTESTATION", "RAG_ROUTER", "CONVERSATIONAL"}},
	RAGRouter:      {Property: "classification", Values: []string{"FACT_CHECK", "NOT_RELEVANT"}},
}

// New parses every embedded template.
func New() (*Library, error) {
	files, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("reading templates: %w", err)
	}

	lib := &Library{entries: make(map[Name]entry, len(files))}
	for _, f := range files {
		raw, err := templateFS.ReadFile("templates/" + f.Name())
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", f.Name(), err)
		}
		name := Name(strings.TrimSuffix(f.Name(), ".tmpl"))
		tmpl, err := fasttemplate.NewTemplate(string(raw), "${", "}")
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		e := entry{tmpl: tmpl}
		if s, ok := formats[name]; ok {
			s := s
			e.mime = "application/json"
			e.schema = &s
		}
		lib.entries[name] = e
	}
	return lib, nil
}

// MustNew is New for package-level initialization in binaries and tests.
func MustNew() *Library {
	lib, err := New()
	if err != nil {
		panic(err)
	}
	return lib
}

// Format renders name with vars. Every placeholder must have a value.
func (l *Library) Format(name Name, vars map[string]string) (Prompt, error) {
	e, ok := l.entries[name]
	if !ok {
		return Prompt{}, fmt.Errorf("%w: %s", ErrUnknownPrompt, name)
	}

	text, err := e.tmpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		v, ok := vars[tag]
		if !ok {
			return 0, fmt.Errorf("%w: %s in %s", ErrMissingVariable, tag, name)
		}
		return w.Write([]byte(v))
	})
	if err != nil {
		return Prompt{}, err
	}

	return Prompt{
		Name:             name,
		Text:             strings.TrimSpace(text),
		ResponseMIMEType: e.mime,
		Schema:           e.schema,
	}, nil
}

// Names lists the loaded templates.
func (l *Library) Names() []Name {
	names := make([]Name, 0, len(l.entries))
	for n := range l.entries {
		names = append(names, n)
	}
	return names
}
