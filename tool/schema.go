//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

// Parameter types understood by InputSchema.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// InputSchema converts the declaration into the object schema handed to
// backends. An explicit Schema takes precedence over Parameters.
func (d *Declaration) InputSchema() *Schema {
	if d == nil {
		return nil
	}
	if d.Schema != nil {
		return d.Schema
	}
	s := &Schema{
		Type:       TypeObject,
		Properties: make(map[string]*Schema, len(d.Parameters)),
	}
	for _, p := range d.Parameters {
		typ := p.Type
		if typ == "" {
			typ = TypeString
		}
		prop := &Schema{
			Type:        typ,
			Description: p.Description,
			Enum:        p.Enum,
		}
		if typ == TypeArray {
			prop.Items = p.Items
			if prop.Items == nil {
				prop.Items = &Schema{Type: TypeString}
			}
		}
		s.Properties[p.Name] = prop
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// Clone returns a copy of the declaration with its own parameter slice.
func (d *Declaration) Clone() *Declaration {
	if d == nil {
		return nil
	}
	c := *d
	c.Parameters = append([]Parameter(nil), d.Parameters...)
	return &c
}
