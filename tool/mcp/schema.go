//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package mcp

import (
	"encoding/json"

	"trpc.group/trpc-go/trpc-agent-graph/tool"
)

// convertSchema converts whatever schema value the MCP library carries into
// a tool.Schema by way of its JSON form.
func convertSchema(mcpSchema any) *tool.Schema {
	fallback := &tool.Schema{Type: tool.TypeObject}
	if mcpSchema == nil {
		return fallback
	}
	data, err := json.Marshal(mcpSchema)
	if err != nil {
		return fallback
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return fallback
	}
	s := schemaFromMap(m)
	if s.Type == "" {
		s.Type = tool.TypeObject
	}
	return s
}

func schemaFromMap(m map[string]any) *tool.Schema {
	s := &tool.Schema{}
	if v, ok := m["type"].(string); ok {
		s.Type = v
	}
	if v, ok := m["description"].(string); ok {
		s.Description = v
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*tool.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = schemaFromMap(pm)
			}
		}
	}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = schemaFromMap(items)
	}
	if enum, ok := m["enum"].([]any); ok {
		s.Enum = enum
	}
	return s
}
