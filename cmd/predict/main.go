package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/drakos74/asthma-risk/infra/config"
	"github.com/drakos74/asthma-risk/internal/explain"
	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/drakos74/asthma-risk/internal/predict"
	"github.com/drakos74/asthma-risk/internal/registry"
	"github.com/drakos74/asthma-risk/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

func main() {

	values := map[string]*float64{
		model.PM25:                 flag.Float64(model.PM25, 50, "PM2.5 in μg/m³"),
		model.PM10:                 flag.Float64(model.PM10, 80, "PM10 in μg/m³"),
		model.Temperature:          flag.Float64(model.Temperature, 25, "temperature in °C"),
		model.Humidity:             flag.Float64(model.Humidity, 60, "relative humidity in %"),
		model.PollenLevel:          flag.Float64(model.PollenLevel, 30, "pollen level"),
		model.WindSpeed:            flag.Float64(model.WindSpeed, 5, "wind speed in m/s"),
		model.Pressure:             flag.Float64(model.Pressure, 1013, "pressure in hPa"),
		model.PatientAge:           flag.Float64(model.PatientAge, 35, "patient age"),
		model.PatientSevereAttacks: flag.Float64(model.PatientSevereAttacks, 0, "number of past severe attacks"),
		model.MedicationAdherence:  flag.Float64(model.MedicationAdherence, 0.8, "medication adherence in [0,1]"),
	}
	name := flag.String("model", registry.Best, "model to predict with")
	method := flag.String("explain", "", "explanation method, one of shap|lime|both")
	root := flag.String("registry", config.RegistryDir(storage.DefaultDir), "model registry directory")
	flag.Parse()

	raw := make(map[string]float64, len(values))
	for k, v := range values {
		raw[k] = *v
	}
	features, err := model.FeatureVectorFrom(raw)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid features")
	}

	cfg := explain.DefaultConfig()
	if _, err := config.Load("explain", &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Msg("invalid explain config")
	}
	predictor := predict.New(registry.New(*root)).WithExplainConfig(cfg)

	var result *model.PredictionResult
	if *method == "" {
		result, err = predictor.Predict(context.Background(), features, *name)
	} else {
		m, ok := model.ParseMethod(*method)
		if !ok {
			log.Fatal().Str("method", *method).Msg("unknown explanation method")
		}
		result, err = predictor.Explain(context.Background(), features, *name, m)
	}
	if err != nil {
		log.Fatal().Err(err).Str("model", *name).Msg("prediction failed")
	}

	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("could not encode result")
	}
	fmt.Println(string(b))
}
