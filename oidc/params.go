// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

// Param is a single request parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of request parameters. Order matters: it is
// the order the parameters appear in a query string or form body, and
// duplicate keys are allowed. url.Values is not used because it sorts keys
// when encoding.
type Params []Param

// Get returns the value of the first occurrence of key.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Add appends key=value.
func (p *Params) Add(key, value string) {
	*p = append(*p, Param{Key: key, Value: value})
}

// Set replaces the first occurrence of key in place and drops any later
// occurrences. When key is absent it is appended.
func (p *Params) Set(key, value string) {
	out := (*p)[:0]
	found := false
	for _, kv := range *p {
		if kv.Key != key {
			out = append(out, kv)
			continue
		}
		if !found {
			out = append(out, Param{Key: key, Value: value})
			found = true
		}
	}
	if !found {
		out = append(out, Param{Key: key, Value: value})
	}
	*p = out
}

// componentEscaper undoes the escapes url.QueryEscape applies to characters
// a uri component leaves alone, and encodes spaces as %20.
var componentEscaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EscapeComponent escapes s the way a uri component is escaped.
func EscapeComponent(s string) string {
	return componentEscaper.Replace(url.QueryEscape(s))
}

// Encode returns the params as key=value pairs joined by "&", in order.
func (p Params) Encode() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(EscapeComponent(kv.Key))
		b.WriteByte('=')
		b.WriteString(EscapeComponent(kv.Value))
	}
	return b.String()
}

// ParseParams parses an encoded query string keeping the order of its
// parameters.
func ParseParams(raw string) (Params, error) {
	const op = "oidc.ParseParams"
	raw = strings.TrimLeft(raw, "?#")
	var p Params
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid key %q: %w", op, k, err)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid value for %q: %w", op, key, err)
		}
		p.Add(key, value)
	}
	return p, nil
}

// splitURL splits raw into the part before "?" and its parsed query.
func splitURL(raw string) (string, Params, error) {
	base, query, found := strings.Cut(raw, "?")
	if !found {
		return raw, nil, nil
	}
	p, err := ParseParams(query)
	if err != nil {
		return "", nil, err
	}
	return base, p, nil
}

// joinURL appends the encoded params to base.
func joinURL(base string, p Params) string {
	if len(p) == 0 {
		return base
	}
	return base + "?" + p.Encode()
}

// UnmarshalYAML decodes a yaml mapping keeping the order of its keys.
func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: custom params must be a mapping", node.Line)
	}
	out := make(Params, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: custom param %q must be a scalar", v.Line, k.Value)
		}
		out.Add(k.Value, v.Value)
	}
	*p = out
	return nil
}

// MarshalYAML encodes the params as a yaml mapping in order.
func (p Params) MarshalYAML() (interface{}, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, kv := range p {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Value},
		)
	}
	return n, nil
}

// UnmarshalJSON decodes a json object keeping the order of its keys. String,
// number and boolean values are accepted.
func (p *Params) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("custom params must be an object")
	}
	var out Params
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key := kt.(string)
		vt, err := dec.Token()
		if err != nil {
			return err
		}
		switch v := vt.(type) {
		case string:
			out.Add(key, v)
		case json.Number:
			out.Add(key, v.String())
		case bool:
			out.Add(key, fmt.Sprint(v))
		default:
			return fmt.Errorf("custom param %q must be a string, number or boolean", key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

// MarshalJSON encodes the params as a json object in order.
func (p Params) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, kv := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
