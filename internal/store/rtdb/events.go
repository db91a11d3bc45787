package rtdb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

type event struct {
	name string
	data string
}

// readEvents parses a text/event-stream body and calls fn per event.
func readEvents(r io.Reader, fn func(event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)

	var ev event
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if ev.name != "" || len(data) > 0 {
				ev.data = strings.Join(data, "\n")
				if err := fn(ev); err != nil {
					return err
				}
			}
			ev, data = event{}, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// tree mirrors the subscribed location from put and patch events.
type tree struct {
	root any
}

func decode(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func segments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// setAt returns node with value stored under segs. A nil value deletes.
func setAt(node any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	m, ok := node.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	child := setAt(m[segs[0]], segs[1:], value)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func (t *tree) put(path string, raw json.RawMessage) error {
	v, err := decode(raw)
	if err != nil {
		return err
	}
	t.root = setAt(t.root, segments(path), v)
	return nil
}

func (t *tree) patch(path string, raw json.RawMessage) error {
	v, err := decode(raw)
	if err != nil {
		return err
	}
	fields, ok := v.(map[string]any)
	if !ok {
		return t.put(path, raw)
	}
	base := segments(path)
	for k, child := range fields {
		t.root = setAt(t.root, append(append([]string{}, base...), segments(k)...), child)
	}
	return nil
}

// json returns the current value, or nil when the location is empty.
func (t *tree) json() (json.RawMessage, error) {
	if t.root == nil {
		return nil, nil
	}
	return json.Marshal(t.root)
}
