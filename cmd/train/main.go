package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/drakos74/asthma-risk/infra/config"
	"github.com/drakos74/asthma-risk/internal/metrics"
	"github.com/drakos74/asthma-risk/internal/registry"
	"github.com/drakos74/asthma-risk/internal/storage"
	"github.com/drakos74/asthma-risk/internal/trainer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {

	data := flag.String("data", config.DataPath("data/asthma_data.csv"), "labeled sample table")
	name := flag.String("model", trainer.Best, "model family to train, 'best' trains all and keeps the most accurate")
	noAugment := flag.Bool("no-augment", false, "disable data augmentation")
	root := flag.String("registry", config.RegistryDir(storage.DefaultDir), "model registry directory")
	addr := flag.String("metrics-addr", "", "address to expose the training metrics on, e.g. ':9090'")
	flag.Parse()

	cfg := trainer.DefaultConfig()
	if _, err := config.Load("training", &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatal().Err(err).Msg("invalid training config")
		}
		log.Info().Msg("using default training config")
	}

	reg := prometheus.NewRegistry()
	if *addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler(reg))
			if err := http.ListenAndServe(*addr, mux); err != nil {
				log.Error().Err(err).Str("addr", *addr).Msg("metrics server stopped")
			}
		}()
	}

	ctx, cnl := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cnl()

	result, err := trainer.New(cfg).
		WithMetrics(metrics.New(reg)).
		Run(ctx, trainer.Job{
			Data:     *data,
			Model:    *name,
			Augment:  !*noAugment,
			Registry: registry.New(*root),
		})
	if err != nil {
		log.Fatal().Err(err).Str("data", *data).Str("model", *name).Msg("training failed")
	}

	fmt.Println(result.Report.String())
	fmt.Printf("Model saved as '%s' version %s in %s\n", result.Best.Manifest.Name, result.Best.Manifest.Version, *root)
}
