package models

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// Extra holds JSON keys a type does not model, such as presentation fields
// written by other editors. They are kept so a load/save cycle is lossless.
type Extra map[string]json.RawMessage

type (
	nodeDataFields NodeData
	edgeFields     Edge
)

var (
	nodeDataKeys = jsonKeys(reflect.TypeOf(nodeDataFields{}))
	edgeKeys     = jsonKeys(reflect.TypeOf(edgeFields{}))
)

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (d *NodeData) UnmarshalJSON(data []byte) error {
	var f nodeDataFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := unknownKeys(data, nodeDataKeys)
	if err != nil {
		return err
	}
	f.Extra = extra
	*d = NodeData(f)
	return nil
}

// MarshalJSON writes the known fields followed by Extra.
func (d NodeData) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(nodeDataFields(d), d.Extra)
}

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var f edgeFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := unknownKeys(data, edgeKeys)
	if err != nil {
		return err
	}
	f.Extra = extra
	*e = Edge(f)
	return nil
}

// MarshalJSON writes the known fields followed by Extra.
func (e Edge) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(edgeFields(e), e.Extra)
}

func jsonKeys(t reflect.Type) map[string]struct{} {
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = struct{}{}
		}
	}
	return keys
}

func unknownKeys(data []byte, known map[string]struct{}) (Extra, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var extra Extra
	for k, v := range all {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(Extra)
		}
		extra[k] = v
	}
	return extra, nil
}

func marshalWithExtra(v any, extra Extra) ([]byte, error) {
	out, err := marshalNoEscape(v)
	if err != nil || len(extra) == 0 {
		return out, err
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(out[:len(out)-1])
	empty := len(bytes.TrimSpace(out[1:len(out)-1])) == 0
	for _, k := range keys {
		name, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		if !empty {
			buf.WriteByte(',')
		}
		empty = false
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
