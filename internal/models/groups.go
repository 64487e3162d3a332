package models

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// GroupCount is the number of qualifying matches in one group.
type GroupCount struct {
	Group string
	Count int
}

// GroupCounts keeps per-group counts in order of first appearance. It marshals to a JSON object
// whose keys keep that order.
type GroupCounts []GroupCount

// Increment adds one to group, appending it if unseen.
func (g GroupCounts) Increment(group string) GroupCounts {
	for i := range g {
		if g[i].Group == group {
			g[i].Count++
			return g
		}
	}
	return append(g, GroupCount{Group: group, Count: 1})
}

// Get returns the count for group (0 if absent).
func (g GroupCounts) Get(group string) int {
	for _, gc := range g {
		if gc.Group == group {
			return gc.Count
		}
	}
	return 0
}

// MarshalJSON writes the counts as an ordered object, e.g. {"b":2,"a":1}.
func (g GroupCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, gc := range g {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(gc.Group)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(gc.Count)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object written by MarshalJSON, keeping key order.
func (g *GroupCounts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*g = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("group counts: expected object, got %v", tok)
	}
	out := GroupCounts{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("group counts: expected key, got %v", tok)
		}
		var n int
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("group counts: %s: %w", key, err)
		}
		out = append(out, GroupCount{Group: key, Count: n})
	}
	*g = out
	return nil
}
