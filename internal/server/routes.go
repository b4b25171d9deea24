package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/drakos74/asthma-risk/internal/predict"
	"github.com/drakos74/asthma-risk/internal/registry"
	"github.com/drakos74/asthma-risk/internal/severity"
)

// PredictRequest is the payload of the prediction route.
// Explain names the explanation method, empty for a plain prediction.
type PredictRequest struct {
	Features map[string]float64 `json:"features"`
	Model    string             `json:"model"`
	Explain  string             `json:"explain,omitempty"`
}

// Predict serves risk predictions and their explanations.
func Predict(p *predict.Predictor, debug bool) Route {
	return Route{
		Action: Api,
		Path:   "predict",
		Method: POST,
		Exec: func(r *http.Request) ([]byte, int, error) {
			var req PredictRequest
			if err := JsonRead(r, debug, &req); err != nil {
				return nil, http.StatusBadRequest, fmt.Errorf("could not read request: %w", err)
			}
			features, err := model.FeatureVectorFrom(req.Features)
			if err != nil {
				return nil, status(err), err
			}
			if req.Model == "" {
				req.Model = registry.Best
			}

			var result *model.PredictionResult
			if req.Explain == "" {
				result, err = p.Predict(r.Context(), features, req.Model)
			} else {
				method, ok := model.ParseMethod(req.Explain)
				if !ok {
					return nil, http.StatusBadRequest, fmt.Errorf("unknown explanation method '%s'", req.Explain)
				}
				result, err = p.Explain(r.Context(), features, req.Model, method)
			}
			if err != nil {
				return nil, status(err), err
			}
			return encode(result)
		},
	}
}

// Importance serves the global feature importance of a model.
func Importance(p *predict.Predictor) Route {
	return Route{
		Action: Api,
		Path:   "importance",
		Method: GET,
		Exec: func(r *http.Request) ([]byte, int, error) {
			name := r.URL.Query().Get("model")
			if name == "" {
				name = registry.Best
			}
			importance, err := p.FeatureImportance(name)
			if err != nil {
				return nil, status(err), err
			}
			return encode(map[string]interface{}{
				"model":              name,
				"feature_importance": importance,
			})
		},
	}
}

// Severity scores a symptom report.
func Severity(debug bool) Route {
	return Route{
		Action: Api,
		Path:   "severity",
		Method: POST,
		Exec: func(r *http.Request) ([]byte, int, error) {
			var report model.SymptomReport
			if err := JsonRead(r, debug, &report); err != nil {
				return nil, http.StatusBadRequest, fmt.Errorf("could not read report: %w", err)
			}
			return encode(severity.Triage(report))
		},
	}
}

func encode(v interface{}) ([]byte, int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("could not encode response: %w", err)
	}
	return b, http.StatusOK, nil
}

// status maps the prediction errors to http codes.
func status(err error) int {
	switch {
	case errors.Is(err, model.ErrFeatureMismatch):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrArtifactNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
