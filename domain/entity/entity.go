// Package entity provides entity definition value types and the pure
// functions that validate them and render their creation statements.
package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ReservedName is the entity name taken by the schema-mutation endpoint.
const ReservedName = "types"

// ErrInvalidDefinition is wrapped by every validation failure.
var ErrInvalidDefinition = errors.New("invalid entity definition")

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Field is one named, typed column of an entity.
// Type is handed verbatim to the creation statement.
type Field struct {
	Name string
	Type string
}

// Fields is an ordered field list.
//
// It decodes from either an array of [name, type] pairs or a JSON object,
// in which case document order is kept.
type Fields []Field

// Definition describes a new entity (immutable value type).
type Definition struct {
	Name   string `json:"name"`
	Fields Fields `json:"fields"`
}

// TableName returns the name the entity is stored under.
func (d Definition) TableName() string {
	return strings.ToLower(strings.TrimSpace(d.Name))
}

// Validate checks the definition shape.
func (d Definition) Validate() error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if !IsIdentifier(name) {
		return fmt.Errorf("%w: name %q is not a valid identifier", ErrInvalidDefinition, name)
	}
	if IsReserved(name) {
		return fmt.Errorf("%w: name %q is reserved", ErrInvalidDefinition, name)
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("%w: at least one field is required", ErrInvalidDefinition)
	}

	seen := make(map[string]bool, len(d.Fields))
	for i, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: fields[%d] name is required", ErrInvalidDefinition, i)
		}
		if !IsIdentifier(f.Name) {
			return fmt.Errorf("%w: field %q is not a valid identifier", ErrInvalidDefinition, f.Name)
		}
		if strings.TrimSpace(f.Type) == "" {
			return fmt.Errorf("%w: field %q type is required", ErrInvalidDefinition, f.Name)
		}
		// Column names are case-insensitive in both backends.
		key := strings.ToLower(f.Name)
		if seen[key] {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidDefinition, f.Name)
		}
		seen[key] = true
	}
	return nil
}

// CreateStatement renders the creation statement for the definition:
//
//	CREATE TABLE post (
//	title	TEXT,
//	body	TEXT
//	)
//
// It does not validate; call Validate first.
func (d Definition) CreateStatement() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(d.TableName())
	b.WriteString(" (\n")
	for i, f := range d.Fields {
		b.WriteString(f.Name)
		b.WriteByte('\t')
		b.WriteString(f.Type)
		if i < len(d.Fields)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(")")
	return b.String()
}

// IsIdentifier reports whether s is usable as a table or column name.
func IsIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// IsReserved reports whether name collides with a fixed route.
func IsReserved(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), ReservedName)
}

// UnmarshalJSON accepts [["title","TEXT"], ...] or {"title": "TEXT", ...}.
func (fs *Fields) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*fs = nil
		return nil
	}

	switch data[0] {
	case '[':
		var pairs [][]string
		if err := json.Unmarshal(data, &pairs); err != nil {
			return fmt.Errorf("fields: %w", err)
		}
		out := make(Fields, 0, len(pairs))
		for i, p := range pairs {
			if len(p) != 2 {
				return fmt.Errorf("fields[%d]: expected [name, type] pair, got %d elements", i, len(p))
			}
			out = append(out, Field{Name: p[0], Type: p[1]})
		}
		*fs = out
		return nil

	case '{':
		return fs.decodeObject(data)

	default:
		return fmt.Errorf("fields: expected array of pairs or object")
	}
}

// decodeObject walks the token stream so object order survives decoding.
func (fs *Fields) decodeObject(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("fields: %w", err)
	}

	var out Fields
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("fields: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("fields: unexpected key %v", tok)
		}
		var typ string
		if err := dec.Decode(&typ); err != nil {
			return fmt.Errorf("fields: %s: %w", name, err)
		}
		out = append(out, Field{Name: name, Type: typ})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("fields: %w", err)
	}
	*fs = out
	return nil
}

// MarshalJSON writes the canonical pair form.
func (fs Fields) MarshalJSON() ([]byte, error) {
	pairs := make([][2]string, len(fs))
	for i, f := range fs {
		pairs[i] = [2]string{f.Name, f.Type}
	}
	return json.Marshal(pairs)
}
