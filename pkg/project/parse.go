package project

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "mockapi-project.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// ParseError reports configuration text that is not a valid project.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "invalid project configuration: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Schema returns the JSON schema project documents are validated against.
func Schema() []byte {
	return bytes.Clone(schemaJSON)
}

func projectSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Parse validates data against the project schema and decodes it. Every
// failure is returned as a *ParseError carrying the underlying parser text.
func Parse(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Err: err}
	}

	schema, err := projectSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &ParseError{Err: err}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &cfg, nil
}

// ParseString is Parse for text.
func ParseString(text string) (*Config, error) {
	return Parse([]byte(text))
}

// YAMLToJSON converts a YAML-authored project into its JSON form.
func YAMLToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return out, nil
}

// ParseYAML converts data from YAML and parses the result.
func ParseYAML(data []byte) (*Config, error) {
	out, err := YAMLToJSON(data)
	if err != nil {
		return nil, err
	}
	return Parse(out)
}
