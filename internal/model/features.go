package model

import (
	"fmt"
	"strings"
)

// Feature names in the order every trained model expects them.
const (
	PM25                 = "pm25"
	PM10                 = "pm10"
	Temperature          = "temperature"
	Humidity             = "humidity"
	PollenLevel          = "pollen_level"
	WindSpeed            = "wind_speed"
	Pressure             = "pressure"
	PatientAge           = "patient_age"
	PatientSevereAttacks = "patient_history_severe_attacks"
	MedicationAdherence  = "medication_adherence"
)

// Fields is the feature schema, the contract between training and serving.
var Fields = []string{
	PM25,
	PM10,
	Temperature,
	Humidity,
	PollenLevel,
	WindSpeed,
	Pressure,
	PatientAge,
	PatientSevereAttacks,
	MedicationAdherence,
}

// Schema returns a copy of the feature field order.
func Schema() []string {
	ff := make([]string, len(Fields))
	copy(ff, Fields)
	return ff
}

// Index returns the position of the given field in the schema or -1.
func Index(field string) int {
	for i, f := range Fields {
		if f == field {
			return i
		}
	}
	return -1
}

// Feature is a single named input value.
type Feature struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// FeatureVector is an ordered set of named numeric inputs.
type FeatureVector []Feature

// NewFeatureVector pairs the given values with the schema fields in order.
// Extra or missing values are kept as they are and surface as a mismatch when aligned.
func NewFeatureVector(values ...float64) FeatureVector {
	fv := make(FeatureVector, len(values))
	for i, v := range values {
		name := fmt.Sprintf("x%d", i)
		if i < len(Fields) {
			name = Fields[i]
		}
		fv[i] = Feature{Name: name, Value: v}
	}
	return fv
}

// FeatureVectorFrom builds a vector in schema order from a name->value mapping.
// Unknown keys are ignored, missing schema fields are an error.
func FeatureVectorFrom(values map[string]float64) (FeatureVector, error) {
	fv := make(FeatureVector, 0, len(Fields))
	missing := make([]string, 0)
	for _, f := range Fields {
		v, ok := values[f]
		if !ok {
			missing = append(missing, f)
			continue
		}
		fv = append(fv, Feature{Name: f, Value: v})
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing fields [%s]: %w", strings.Join(missing, ","), ErrFeatureMismatch)
	}
	return fv, nil
}

// Names returns the feature names in order.
func (fv FeatureVector) Names() []string {
	nn := make([]string, len(fv))
	for i, f := range fv {
		nn[i] = f.Name
	}
	return nn
}

// Values returns the raw values in order.
func (fv FeatureVector) Values() []float64 {
	vv := make([]float64, len(fv))
	for i, f := range fv {
		vv[i] = f.Value
	}
	return vv
}

// Get returns the value for the named feature.
func (fv FeatureVector) Get(name string) (float64, bool) {
	for _, f := range fv {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// Align checks the vector against the persisted column order and returns the values.
// Arity and order must match exactly, nothing is re-ordered silently.
func (fv FeatureVector) Align(columns []string) ([]float64, error) {
	if len(fv) != len(columns) {
		return nil, &FeatureMismatchError{Expected: columns, Got: fv.Names()}
	}
	for i, c := range columns {
		if fv[i].Name != c {
			return nil, &FeatureMismatchError{Expected: columns, Got: fv.Names()}
		}
	}
	return fv.Values(), nil
}

// Clone creates a deep copy of the vector.
func (fv FeatureVector) Clone() FeatureVector {
	c := make(FeatureVector, len(fv))
	copy(c, fv)
	return c
}
