package generation

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var ErrMalformedList = errors.New("malformed list payload")

// Shape is the payload shape a caller expects back.
type Shape int

const (
	ShapeText Shape = iota
	ShapeList
)

func (s Shape) String() string {
	if s == ShapeList {
		return "list"
	}
	return "text"
}

type Request struct {
	System      string
	User        string
	Temperature float32
	Shape       Shape
}

// Payload holds a usable response. List is set only for ShapeList requests.
type Payload struct {
	Text string
	List []string
}

// Items returns the list form of the payload, parsing Text when the
// generator did not do it already.
func (p Payload) Items() ([]string, error) {
	if p.List != nil {
		return p.List, nil
	}
	return ParseList(p.Text)
}

// Result is either Ok with a payload or Fail with an error, never both.
type Result struct {
	data Payload
	err  error
}

func Ok(p Payload) Result { return Result{data: p} }

func Fail(err error) Result {
	if err == nil {
		err = errors.New("generation failed")
	}
	return Result{err: err}
}

func (r Result) OK() bool { return r.err == nil }

func (r Result) Data() Payload { return r.data }

func (r Result) Err() error { return r.err }

// Generator is the text-generation service boundary. Timeouts and retries are
// the implementation's concern and surface as Fail results.
type Generator interface {
	Invoke(ctx context.Context, req Request) Result
}

type GeneratorFunc func(ctx context.Context, req Request) Result

func (f GeneratorFunc) Invoke(ctx context.Context, req Request) Result { return f(ctx, req) }

// Failing returns a generator that fails every call with err.
func Failing(err error) Generator {
	return GeneratorFunc(func(context.Context, Request) Result { return Fail(err) })
}

var (
	listItemRe = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])\s+(.+)$`)
	fenceRe    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}

// ParseList reads a list payload. Accepted forms are a JSON string array, a
// JSON object holding exactly one array, and a bulleted or numbered list.
func ParseList(raw string) ([]string, error) {
	body := StripFences(raw)
	if body == "" {
		return nil, ErrMalformedList
	}

	switch body[0] {
	case '[':
		var items []any
		if err := json.Unmarshal([]byte(body), &items); err != nil {
			return nil, errors.Join(ErrMalformedList, err)
		}
		return stringItems(items)
	case '{':
		var obj map[string]any
		if err := json.Unmarshal([]byte(body), &obj); err != nil {
			return nil, errors.Join(ErrMalformedList, err)
		}
		var found []any
		arrays := 0
		for _, v := range obj {
			if arr, ok := v.([]any); ok {
				found = arr
				arrays++
			}
		}
		if arrays != 1 {
			return nil, ErrMalformedList
		}
		return stringItems(found)
	}

	var items []string
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := listItemRe.FindStringSubmatch(line)
		if m == nil {
			return nil, ErrMalformedList
		}
		items = append(items, strings.TrimSpace(m[1]))
	}
	if len(items) == 0 {
		return nil, ErrMalformedList
	}
	return items, nil
}

func stringItems(items []any) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			// Models sometimes wrap each item, e.g. {"question": "..."}.
			if len(v) != 1 {
				return nil, ErrMalformedList
			}
			for _, inner := range v {
				s, ok := inner.(string)
				if !ok {
					return nil, ErrMalformedList
				}
				out = append(out, strings.TrimSpace(s))
			}
		default:
			return nil, ErrMalformedList
		}
	}
	return out, nil
}
