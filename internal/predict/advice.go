package predict

import (
	"fmt"
	"strings"

	"github.com/drakos74/asthma-risk/internal/model"
)

// Advice composes the health advice for the prediction.
func Advice(result *model.PredictionResult, features model.FeatureVector) string {
	value := func(name string) float64 {
		v, _ := features.Get(name)
		return v
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Air quality conditions: PM2.5=%.1f μg/m³, PM10=%.1f μg/m³, Temperature=%.1f°C, Humidity=%.1f%%.",
		value(model.PM25), value(model.PM10), value(model.Temperature), value(model.Humidity)))
	if result.Confidence != nil && *result.Confidence > 0 {
		sb.WriteString(fmt.Sprintf(" Prediction confidence: %.0f%%.", *result.Confidence*100))
	}

	patient := fmt.Sprintf("Patient age: %v years, History of severe attacks: %v, Medication adherence: %.0f%%.",
		value(model.PatientAge), value(model.PatientSevereAttacks), value(model.MedicationAdherence)*100)

	sb.WriteString(" ")
	switch result.RiskLevel {
	case model.HighRisk:
		sb.WriteString("High risk detected. Consider staying indoors during peak pollution hours. ")
		sb.WriteString(patient)
		sb.WriteString(" Please consult your healthcare provider immediately.")
	case model.ModerateRisk:
		sb.WriteString("Moderate risk detected. Limit outdoor activities during peak pollution hours. ")
		sb.WriteString(patient)
		sb.WriteString(" Monitor your symptoms closely.")
	case model.LowRisk:
		sb.WriteString("Low risk. Enjoy outdoor activities but stay hydrated. ")
		sb.WriteString(patient)
		sb.WriteString(" Continue your regular routine.")
	default:
		sb.WriteString("General advice: Monitor your symptoms and follow your asthma action plan.")
	}
	return sb.String()
}
