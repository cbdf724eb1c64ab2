package claims

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ToJSON renders the claim set as a JSON object in insertion order. An
// empty set renders as "{}" and nil values as null. A value that cannot be
// encoded is rendered as the JSON string of its fmt representation.
func (c *Claims) ToJSON() string {
	b, err := c.encode(true)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// MarshalJSON implements json.Marshaler, preserving insertion order.
func (c *Claims) MarshalJSON() ([]byte, error) {
	return c.encode(false)
}

func (c *Claims) encode(lenient bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		v := c.values[k]
		if err := writeJSON(&buf, v); err != nil {
			if !lenient {
				return nil, fmt.Errorf("claim %q: %w", k, err)
			}
			_ = writeJSON(&buf, fmt.Sprint(v))
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. Top-level names keep their
// document order; nested objects decode to map[string]any and numbers to
// float64.
func (c *Claims) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("claims: expected JSON object, got %v", tok)
	}
	out := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("claims: expected object key, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("claims: decoding %q: %w", name, err)
		}
		out.Put(name, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = *out
	return nil
}
