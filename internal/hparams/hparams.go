// Package hparams reads hyperparameters from YAML, TOML or JSON files and
// from key=value pairs.
package hparams

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/GuyChahine/deeplogs/internal/record"
)

// ErrUnsupportedFormat is returned for files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported hyperparameter file format")

// LoadFile reads a hyperparameter file. The format is chosen by extension:
// .yaml/.yml, .toml or .json.
func LoadFile(path string) (map[string]record.Param, error) {
	// #nosec G304 -- the path is supplied by the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hyperparameters: %w", err)
	}
	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		_, err = toml.Decode(string(data), &raw)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return fromRaw(raw)
}

// ParsePairs parses "key=value" pairs. Values use YAML scalar and flow
// syntax, so "3" is an int, "0.1" a float, "[1, 2]" a list and "x" a
// string.
func ParsePairs(pairs []string) (map[string]record.Param, error) {
	raw := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("hyperparameter %q: want key=value", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(value), &v); err != nil {
			return nil, fmt.Errorf("hyperparameter %q: %w", key, err)
		}
		raw[key] = v
	}
	return fromRaw(raw)
}

// Merge returns base overridden by each of overrides in turn.
func Merge(base map[string]record.Param, overrides ...map[string]record.Param) map[string]record.Param {
	out := make(map[string]record.Param, len(base))
	for k, v := range base {
		out[k] = v
	}
	for _, o := range overrides {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

func fromRaw(raw map[string]any) (map[string]record.Param, error) {
	norm, ok := normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("hyperparameters must be a mapping")
	}
	params, err := record.ParamsFromMap(norm)
	if err != nil {
		return nil, fmt.Errorf("hyperparameters: %w", err)
	}
	return params, nil
}

// normalize turns decoder values with no Param counterpart, such as dates,
// into strings.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalize(item)
		}
		return out
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return v
	}
}
