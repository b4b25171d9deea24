package model

// PredictionResult is the outcome of a single prediction.
// Confidence and Probabilities are nil when the model has no probability output.
type PredictionResult struct {
	Model         string             `json:"model"`
	RiskLevel     Risk               `json:"risk_level"`
	ClassIndex    int                `json:"class_index"`
	Confidence    *float64           `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	Explanations  *Explanations      `json:"xai_explanations,omitempty"`
	Advice        string             `json:"advice,omitempty"`
}

// Method names an attribution method.
type Method string

const (
	Additive  Method = "shap"
	Surrogate Method = "lime"
	Both      Method = "both"
)

// ParseMethod accepts the method names and their long aliases.
func ParseMethod(s string) (Method, bool) {
	switch s {
	case "shap", "additive":
		return Additive, true
	case "lime", "surrogate":
		return Surrogate, true
	case "both", "":
		return Both, true
	}
	return "", false
}

// Attribution is a single feature contribution.
type Attribution struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Explanation is the output of one attribution method.
// Exactly one of Error or the attribution fields is meaningful.
type Explanation struct {
	Method         Method             `json:"explanation_method"`
	Algorithm      string             `json:"algorithm,omitempty"`
	ClassIndex     int                `json:"class_index"`
	PredictedClass string             `json:"predicted_class,omitempty"`
	Attributions   map[string]float64 `json:"feature_importance,omitempty"`
	Ranked         []Attribution      `json:"explanation,omitempty"`
	BaseValue      float64            `json:"base_value,omitempty"`
	Output         float64            `json:"output,omitempty"`
	Score          float64            `json:"score,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// Failed reports if the method could not produce an explanation.
func (e *Explanation) Failed() bool {
	return e != nil && e.Error != ""
}

// Explanations holds one slot per requested method.
type Explanations struct {
	Additive  *Explanation `json:"shap,omitempty"`
	Surrogate *Explanation `json:"lime,omitempty"`
}
