package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// LabelEncoder maps class labels to the indices a classifier works with.
// Classes are kept sorted so that the same label set always yields the same indices.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// NewLabelEncoder fits an encoder on the given labels.
func NewLabelEncoder(labels ...string) *LabelEncoder {
	seen := make(map[string]bool)
	classes := make([]string, 0)
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Strings(classes)
	return newEncoder(classes)
}

func newEncoder(classes []string) *LabelEncoder {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	return &LabelEncoder{
		classes: classes,
		index:   index,
	}
}

// Classes returns the labels in index order.
func (e *LabelEncoder) Classes() []string {
	cc := make([]string, len(e.classes))
	copy(cc, e.classes)
	return cc
}

// Len returns the number of classes.
func (e *LabelEncoder) Len() int {
	return len(e.classes)
}

// Encode returns the class index of the label.
func (e *LabelEncoder) Encode(label string) (int, error) {
	if i, ok := e.index[label]; ok {
		return i, nil
	}
	return -1, fmt.Errorf("label '%s': %w", label, ErrUnknownLabel)
}

// EncodeAll encodes a label column.
func (e *LabelEncoder) EncodeAll(labels []string) ([]int, error) {
	y := make([]int, len(labels))
	for i, l := range labels {
		c, err := e.Encode(l)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		y[i] = c
	}
	return y, nil
}

// Decode returns the label of the class index.
func (e *LabelEncoder) Decode(i int) (string, error) {
	if i < 0 || i >= len(e.classes) {
		return "", fmt.Errorf("class index %d of %d: %w", i, len(e.classes), ErrUnknownLabel)
	}
	return e.classes[i], nil
}

type encoderJSON struct {
	Classes []string `json:"classes"`
}

func (e *LabelEncoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(encoderJSON{Classes: e.classes})
}

func (e *LabelEncoder) UnmarshalJSON(b []byte) error {
	var ej encoderJSON
	if err := json.Unmarshal(b, &ej); err != nil {
		return err
	}
	*e = *newEncoder(ej.Classes)
	return nil
}
