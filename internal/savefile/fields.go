package savefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// fields holds every key of a JSON object as raw bytes, in document order,
// so that keys this package does not model survive a load/store cycle
// unchanged and in place. New keys are appended.
type fields struct {
	keys []string
	vals map[string]json.RawMessage
}

func (f *fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("expected a JSON object")
	}
	f.keys = nil
	f.vals = make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if _, dup := f.vals[key]; !dup {
			f.keys = append(f.keys, key)
		}
		f.vals[key] = raw
	}
	_, err = dec.Token()
	return err
}

func (f *fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(f.vals[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *fields) has(key string) bool {
	_, ok := f.vals[key]
	return ok
}

func (f *fields) get(key string, v any) error {
	raw, ok := f.vals[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (f *fields) set(key string, v any) error {
	raw, err := marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if f.vals == nil {
		f.vals = make(map[string]json.RawMessage)
	}
	if _, ok := f.vals[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.vals[key] = raw
	return nil
}

func (f *fields) clone() fields {
	out := fields{
		keys: append([]string(nil), f.keys...),
		vals: make(map[string]json.RawMessage, len(f.vals)),
	}
	for k, v := range f.vals {
		out.vals[k] = v
	}
	return out
}

// marshal encodes v without HTML escaping; saves carry XML and Lua where
// <, > and & are common and must be written back as they were read.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
