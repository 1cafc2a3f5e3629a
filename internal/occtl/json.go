package occtl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/racp/ocserv-agent/pkg/apierror"
)

// Shape is the top-level JSON type a caller expects from occtl.
type Shape string

const (
	ShapeArray  Shape = "array"
	ShapeObject Shape = "object"
)

// JSONReader runs occtl in --json mode and decodes the whole payload.
type JSONReader struct {
	exec Executor
}

func NewJSONReader(exec Executor) *JSONReader {
	return &JSONReader{exec: exec}
}

// ReadArray runs `occtl --json <args>` and requires a top-level array.
func (r *JSONReader) ReadArray(ctx context.Context, args ...string) ([]any, error) {
	v, err := r.read(ctx, ShapeArray, args)
	if err != nil {
		return nil, err
	}
	return v.([]any), nil
}

// ReadObject runs `occtl --json <args>` and requires a top-level object.
func (r *JSONReader) ReadObject(ctx context.Context, args ...string) (map[string]any, error) {
	v, err := r.read(ctx, ShapeObject, args)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func (r *JSONReader) read(ctx context.Context, expect Shape, args []string) (any, error) {
	full := append([]string{"--json"}, args...)
	res, err := r.exec.Run(ctx, full...)
	if err != nil {
		return nil, err
	}
	v, err := DecodeJSON(res.Stdout, expect)
	if err != nil {
		if apiErr, ok := apierror.As(err); ok {
			apiErr.WithDetail("display", "occtl "+strings.Join(full, " "))
		}
		return nil, err
	}
	return v, nil
}

// DecodeJSON parses text as exactly one JSON value of the expected shape.
// Numbers are kept as json.Number so large counters survive intact.
func DecodeJSON(text string, expect Shape) (any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, apierror.Upstream(apierror.CodeOcctlBadJSON, "occtl returned empty output")
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, apierror.Upstream(apierror.CodeOcctlBadJSON, fmt.Sprintf("occtl returned invalid JSON: %v", err)).
			WithDetail("sample", truncate(trimmed, stderrDetailMax))
	}
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return nil, apierror.Upstream(apierror.CodeOcctlBadJSON, "occtl returned trailing data after JSON value").
			WithDetail("sample", truncate(trimmed, stderrDetailMax))
	}

	if actual := shapeOf(v); actual != string(expect) {
		return nil, apierror.Upstream(apierror.CodeOcctlBadJSON, fmt.Sprintf("occtl JSON has unexpected shape: expected %s, got %s", expect, actual)).
			WithDetail("expected", string(expect)).
			WithDetail("actual", actual)
	}
	return v, nil
}

func shapeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return string(ShapeArray)
	case map[string]any:
		return string(ShapeObject)
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
