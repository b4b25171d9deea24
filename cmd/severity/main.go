package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/drakos74/asthma-risk/internal/severity"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

func main() {

	symptoms := make(map[string]*bool)
	for _, indicator := range severity.Indicators() {
		symptoms[indicator] = flag.Bool(indicator, false, fmt.Sprintf("report %s", indicator))
	}
	lat := flag.Float64("lat", 0, "latitude of the report")
	lon := flag.Float64("lon", 0, "longitude of the report")
	flag.Parse()

	report := model.SymptomReport{
		Timestamp: time.Now(),
		Symptoms:  make(map[string]bool, len(symptoms)),
	}
	for k, v := range symptoms {
		report.Symptoms[k] = *v
	}
	if *lat != 0 || *lon != 0 {
		report.Location = &model.Location{Latitude: *lat, Longitude: *lon}
	}
	report = severity.Triage(report)

	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("could not encode report")
	}
	fmt.Println(string(b))
}
