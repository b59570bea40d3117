//go:build wasm

package main

import (
	"encoding/json"
	"sync"
	"syscall/js"

	"github.com/Lucaterre/tsvlink/pkg/schema"
	"github.com/Lucaterre/tsvlink/pkg/types"
	"github.com/Lucaterre/tsvlink/pkg/wtsv"
)

var (
	parsers   = make(map[int]*schema.Schema)
	parsersMu sync.RWMutex
	nextID    int
)

// SpanInfo is one annotated span in a parse result.
type SpanInfo struct {
	Sentence      int    `json:"sentence"`
	Surface       string `json:"surface"`
	Label         string `json:"label"`
	Identifier    string `json:"identifier,omitempty"`
	Discontinuous bool   `json:"discontinuous,omitempty"`
	OutOfTagset   bool   `json:"outOfTagset,omitempty"`
}

// ParseResult is the document summary returned to JavaScript.
type ParseResult struct {
	Sentences int        `json:"sentences"`
	Tokens    int        `json:"tokens"`
	Spans     []SpanInfo `json:"spans"`
}

// BuiltinSchema describes one embedded tagset.
type BuiltinSchema struct {
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
}

// newParser creates a parser with the given schema YAML.
// JS: TsvlinkNewParser(schemaYAML, lenient?) -> handle (int) or error string
func newParser(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return map[string]interface{}{"error": "schemaYAML argument required"}
	}

	var (
		sch *schema.Schema
		err error
	)
	if yml := args[0].String(); yml == "builtin" {
		sch, err = schema.Default()
	} else {
		sch, err = schema.NewLoader().Load([]byte(yml))
	}
	if err != nil {
		return map[string]interface{}{"error": "failed to load schema: " + err.Error()}
	}
	if len(args) > 1 && args[1].Truthy() {
		sch.Lenient = true
	}

	// Register parser
	parsersMu.Lock()
	id := nextID
	nextID++
	parsers[id] = sch
	parsersMu.Unlock()

	return map[string]interface{}{"handle": id}
}

// parse parses a WebAnno TSV document and returns a span summary.
// JS: TsvlinkParse(handle, tsvText) -> JSON summary or error
func parse(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return map[string]interface{}{"error": "handle and tsvText arguments required"}
	}

	handle := args[0].Int()
	text := args[1].String()

	parsersMu.RLock()
	sch, ok := parsers[handle]
	parsersMu.RUnlock()

	if !ok {
		return map[string]interface{}{"error": "invalid parser handle"}
	}

	doc, err := wtsv.Parse([]byte(text), sch)
	if err != nil {
		return map[string]interface{}{"error": "parse failed: " + err.Error()}
	}

	result, err := summarize(doc)
	if err != nil {
		return map[string]interface{}{"error": "summarize failed: " + err.Error()}
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return map[string]interface{}{"error": "failed to marshal result: " + err.Error()}
	}

	return string(jsonBytes)
}

// normalize parses a document and renders it back in canonical form.
// JS: TsvlinkNormalize(handle, tsvText) -> canonical TSV text or error
func normalize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return map[string]interface{}{"error": "handle and tsvText arguments required"}
	}

	handle := args[0].Int()
	text := args[1].String()

	parsersMu.RLock()
	sch, ok := parsers[handle]
	parsersMu.RUnlock()

	if !ok {
		return map[string]interface{}{"error": "invalid parser handle"}
	}

	doc, err := wtsv.Parse([]byte(text), sch)
	if err != nil {
		return map[string]interface{}{"error": "parse failed: " + err.Error()}
	}

	rendered, err := wtsv.Render(doc, sch)
	if err != nil {
		return map[string]interface{}{"error": "render failed: " + err.Error()}
	}

	return string(rendered)
}

// closeParser releases a parser handle.
// JS: TsvlinkCloseParser(handle)
func closeParser(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return map[string]interface{}{"error": "handle argument required"}
	}

	handle := args[0].Int()

	parsersMu.Lock()
	_, ok := parsers[handle]
	if ok {
		delete(parsers, handle)
	}
	parsersMu.Unlock()

	if !ok {
		return map[string]interface{}{"error": "invalid parser handle"}
	}

	return nil
}

// getBuiltinSchemas returns the embedded tagsets as JSON.
// JS: TsvlinkGetBuiltinSchemas() -> JSON schema array
func getBuiltinSchemas(this js.Value, args []js.Value) interface{} {
	loader := schema.NewLoader()
	names, err := loader.Builtins()
	if err != nil {
		return map[string]interface{}{"error": "failed to list builtin schemas: " + err.Error()}
	}

	out := make([]BuiltinSchema, 0, len(names))
	for _, name := range names {
		sch, err := loader.LoadBuiltin(name)
		if err != nil {
			return map[string]interface{}{"error": "failed to load builtin schema: " + err.Error()}
		}
		out = append(out, BuiltinSchema{Name: sch.Name, Labels: sch.Labels()})
	}

	jsonBytes, err := json.Marshal(out)
	if err != nil {
		return map[string]interface{}{"error": "failed to marshal schemas: " + err.Error()}
	}

	return string(jsonBytes)
}

// summarize flattens a parsed document into the JS-facing shape.
func summarize(doc *types.Document) (*ParseResult, error) {
	result := &ParseResult{
		Sentences: len(doc.Sentences),
		Spans:     make([]SpanInfo, 0, len(doc.Spans)),
	}
	for i := range doc.Sentences {
		result.Tokens += len(doc.Sentences[i].Tokens)
	}
	for i := range doc.Spans {
		sp := &doc.Spans[i]
		surface, err := doc.SpanSurface(sp)
		if err != nil {
			return nil, err
		}
		result.Spans = append(result.Spans, SpanInfo{
			Sentence:      sp.Sentence,
			Surface:       surface,
			Label:         sp.Label,
			Identifier:    sp.Identifier,
			Discontinuous: sp.Discontinuous(),
			OutOfTagset:   sp.Sentinel,
		})
	}
	return result, nil
}
