// Package schema validates book-record exports against the expected shape.
//
// The merge and index passes already tolerate malformed records by skipping
// them; this package exists to surface those records explicitly, before they
// silently drop out of the archive.
package schema

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed book.cue
var bookSchema string

// Finding is one schema violation within a document.
type Finding struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Validator checks book-record documents against the embedded CUE schema.
// Safe for reuse across documents; compile the schema once per process.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New compiles the embedded book-record schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(bookSchema)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile book schema: %w", err)
	}
	schema := v.LookupPath(cue.ParsePath("#BookRecord"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("book schema has no #BookRecord: %w", err)
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

// Validate checks one JSON document against the schema. Violations come back
// as findings; the error return is reserved for documents that are not valid
// JSON at all.
func (v *Validator) Validate(name string, data []byte) ([]Finding, error) {
	// JSON is a subset of CUE, so the document compiles directly.
	doc := v.ctx.CompileBytes(data, cue.Filename(name))
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	unified := v.schema.Unify(doc)
	err := unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil, nil
	}

	var findings []Finding
	for _, e := range cueerrors.Errors(err) {
		f := Finding{Message: e.Error()}
		if p := e.Path(); len(p) > 0 {
			f.Path = strings.Join(p, ".")
		}
		findings = append(findings, f)
	}
	return findings, nil
}
