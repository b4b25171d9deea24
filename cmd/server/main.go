package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"

	"github.com/drakos74/asthma-risk/infra/config"
	"github.com/drakos74/asthma-risk/internal/dataset"
	"github.com/drakos74/asthma-risk/internal/explain"
	"github.com/drakos74/asthma-risk/internal/metrics"
	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/drakos74/asthma-risk/internal/predict"
	"github.com/drakos74/asthma-risk/internal/registry"
	"github.com/drakos74/asthma-risk/internal/server"
	"github.com/drakos74/asthma-risk/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {

	port := flag.Int("port", 6080, "port to serve the api on")
	root := flag.String("registry", config.RegistryDir(storage.DefaultDir), "model registry directory")
	background := flag.String("background", "", "labeled table used as reference rows of the kernel attribution")
	debug := flag.Bool("debug", false, "log request payloads")
	flag.Parse()

	cfg := explain.DefaultConfig()
	if _, err := config.Load("explain", &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Msg("invalid explain config")
	}

	reg := prometheus.NewRegistry()
	predictor := predict.New(registry.New(*root)).
		WithExplainConfig(cfg).
		WithMetrics(metrics.New(reg))
	if *background != "" {
		samples, err := dataset.LoadCSV(*background)
		if err != nil {
			log.Fatal().Err(err).Str("background", *background).Msg("could not load background rows")
		}
		x, _ := model.Matrix(samples)
		predictor = predictor.WithBackground(x)
	}

	s := server.NewServer("asthma-risk", *port).
		Add(
			server.Live(),
			server.Predict(predictor, *debug),
			server.Importance(predictor),
			server.Severity(*debug),
		).
		Mount("/metrics", metrics.Handler(reg))
	if *debug {
		s = s.Debug()
	}

	ctx, cnl := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cnl()
	if err := s.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
