package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// FormatVersion tags every serialized record.
const FormatVersion = "deeplogs.record.v1"

// ErrMalformedRecord is returned when serialized bytes cannot be decoded into
// a consistent Record.
var ErrMalformedRecord = errors.New("malformed record")

type wireRecord struct {
	Version     string           `json:"version"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	RunID       string           `json:"run_id,omitempty"`
	Hyperparams map[string]Param `json:"hyperparams"`
	Timesteps   []jsonFloat      `json:"timesteps"`
	Series      []wireSeries     `json:"series"`
}

type wireSeries struct {
	Name   string   `json:"name"`
	Values []Scalar `json:"values"`
}

// Marshal serializes r. It refuses to write a record that violates the shape
// invariant.
func Marshal(r *Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	w := wireRecord{
		Version:     FormatVersion,
		Name:        r.Name,
		Description: r.Description,
		RunID:       r.RunID,
		Hyperparams: r.Hyperparams,
		Timesteps:   make([]jsonFloat, len(r.Timesteps)),
		Series:      make([]wireSeries, len(r.Metrics)),
	}
	if w.Hyperparams == nil {
		w.Hyperparams = map[string]Param{}
	}
	for i, t := range r.Timesteps {
		w.Timesteps[i] = jsonFloat(t)
	}
	for i, name := range r.Metrics {
		w.Series[i] = wireSeries{Name: name, Values: r.Series[name]}
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode record %q: %w", r.Name, err)
	}
	return data, nil
}

// Unmarshal decodes bytes written by Marshal. Any decoding or validation
// failure wraps ErrMalformedRecord.
func Unmarshal(data []byte) (*Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedRecord)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w wireRecord
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedRecord)
	}
	if w.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedRecord, w.Version)
	}

	r := New(w.Name, w.Description, w.Hyperparams)
	r.RunID = w.RunID
	r.Timesteps = make([]float64, len(w.Timesteps))
	for i, t := range w.Timesteps {
		r.Timesteps[i] = float64(t)
	}
	for _, s := range w.Series {
		if _, dup := r.Series[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate series %q", ErrMalformedRecord, s.Name)
		}
		values := s.Values
		if values == nil {
			values = []Scalar{}
		}
		r.Metrics = append(r.Metrics, s.Name)
		r.Series[s.Name] = values
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return r, nil
}
