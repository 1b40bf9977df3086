package zigbee

import (
	"bytes"
	"encoding/json"
	"iter"

	"github.com/tidwall/gjson"
)

// Message is a decoded command payload: capability keys mapped to requested
// values, in the order they appeared.
type Message struct {
	keys   []string
	values map[string]any
}

// DecodeMessage decodes a command payload. A JSON object yields its
// top-level keys in order. Anything else becomes {"state": <text>}, where
// text is the string form of a JSON scalar or the raw payload.
// It never fails.
func DecodeMessage(payload []byte) Message {
	var m Message

	if gjson.ValidBytes(payload) {
		r := gjson.ParseBytes(payload)
		if r.IsObject() {
			r.ForEach(func(key, value gjson.Result) bool {
				m.set(key.String(), decodeValue(value))
				return true
			})
			if m.values == nil {
				m.values = map[string]any{}
			}
			return m
		}
		if r.Type == gjson.String {
			m.set("state", r.Str)
			return m
		}
		m.set("state", string(bytes.TrimSpace(payload)))
		return m
	}

	m.set("state", string(payload))
	return m
}

// decodeValue converts a gjson value into its Go form. Numbers are kept as
// json.Number so large integers keep their precision.
func decodeValue(r gjson.Result) any {
	switch {
	case r.Type == gjson.Number:
		return json.Number(r.Raw)
	case r.IsObject():
		obj := map[string]any{}
		r.ForEach(func(key, value gjson.Result) bool {
			obj[key.String()] = decodeValue(value)
			return true
		})
		return obj
	case r.IsArray():
		arr := []any{}
		r.ForEach(func(_, value gjson.Result) bool {
			arr = append(arr, decodeValue(value))
			return true
		})
		return arr
	default:
		return r.Value()
	}
}

// NewMessage builds a message from key/value pairs, mainly for tests and
// programmatic callers.
func NewMessage(pairs ...any) Message {
	var m Message
	m.values = map[string]any{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if k, ok := pairs[i].(string); ok {
			m.set(k, pairs[i+1])
		}
	}
	return m
}

// set keeps the first position of a repeated key and the last value.
func (m *Message) set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key.
func (m Message) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in payload order.
func (m Message) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of keys.
func (m Message) Len() int {
	return len(m.keys)
}

// All iterates over key/value pairs in payload order.
func (m Message) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// MarshalJSON encodes the message as an object in payload order.
func (m Message) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
