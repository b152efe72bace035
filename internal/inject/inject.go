//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inject fills state placeholders in instruction templates.
package inject

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"trpc.group/trpc-go/trpc-agent-graph/state"
)

// mustachePlaceholderRE matches Mustache-style placeholders like {{key}}
// and {{key?}}. It purposely restricts the allowed characters to avoid
// over-replacing in free text.
var mustachePlaceholderRE = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)(\?)?\s*\}\}`)

// stateVarRE matches the native single-brace form.
var stateVarRE = regexp.MustCompile(`\{([^{}]+)\}`)

// normalizePlaceholders converts supported Mustache-style placeholders
// to the native single-brace form before injection.
//
//	{{key}}          -> {key}
//	{{key?}}         -> {key?}
//	{{node.answer}}  -> {node.answer}
func normalizePlaceholders(s string) string {
	if s == "" {
		return s
	}
	return mustachePlaceholderRE.ReplaceAllString(s, `{$1$2}`)
}

// Instruction replaces state placeholders in template with values of st:
//   - {key}: the value under key; left untouched when missing so the model
//     sees the unresolved name.
//   - {key?}: optional, replaced by the empty string when missing.
//
// Keys are identifiers that may contain dots, such as {triage.answer}.
// Strings are inserted verbatim, other values as JSON.
//
//	template: "Tell me about the city stored in {capital_city}."
//	state:    {"capital_city": "Paris"}
//	result:   "Tell me about the city stored in Paris."
func Instruction(template string, st *state.State) string {
	if template == "" || !strings.Contains(template, "{") {
		return template
	}
	template = normalizePlaceholders(template)
	return stateVarRE.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.Trim(match, "{}")
		optional := strings.HasSuffix(name, "?")
		name = strings.TrimSuffix(name, "?")
		if !isValidStateName(name) {
			return match
		}
		if st != nil {
			if v, ok := st.Get(name); ok {
				return format(v)
			}
		}
		if optional {
			return ""
		}
		return match
	})
}

func format(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	bts, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(bts)
}

// isValidStateName reports whether name is a dot-separated list of
// identifiers.
func isValidStateName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if !isIdentifier(part) {
			return false
		}
	}
	return true
}

// isIdentifier checks if the string is a valid Go identifier.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	if !isLetterOrUnderscore(rune(s[0])) {
		return false
	}
	for _, r := range s[1:] {
		if !isLetterOrDigitOrUnderscore(r) {
			return false
		}
	}
	return true
}

func isLetterOrUnderscore(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isLetterOrDigitOrUnderscore(r rune) bool {
	return isLetterOrUnderscore(r) || (r >= '0' && r <= '9')
}
