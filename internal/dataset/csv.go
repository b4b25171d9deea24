package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/drakos74/asthma-risk/internal/severity"
	"github.com/rs/zerolog/log"
)

// LabelColumns are the accepted names of the label column, in order of preference.
var LabelColumns = []string{"asthma_risk", "risk_label"}

// LoadCSV reads the labeled samples from the file at the given path.
func LoadCSV(path string) ([]model.LabeledSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open data set '%s': %w", path, err)
	}
	defer f.Close()
	samples, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("could not read data set '%s': %w", path, err)
	}
	log.Info().Str("path", path).Int("samples", len(samples)).Msg("loaded data set")
	return samples, nil
}

// ReadCSV parses a header driven csv table.
// All schema fields and one of the label columns are required, symptom indicator
// columns are optional and any other column is ignored.
func ReadCSV(r io.Reader) ([]model.LabeledSample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.TrimSpace(strings.ToLower(h))] = i
	}

	fields := make([]int, len(model.Fields))
	for i, f := range model.Fields {
		idx, ok := columns[f]
		if !ok {
			return nil, fmt.Errorf("missing column '%s': %w", f, model.ErrFeatureMismatch)
		}
		fields[i] = idx
	}

	label := -1
	for _, l := range LabelColumns {
		if idx, ok := columns[l]; ok {
			label = idx
			break
		}
	}
	if label < 0 {
		return nil, fmt.Errorf("missing label column, expected one of %v", LabelColumns)
	}

	indicators := make(map[string]int)
	for _, name := range severity.Indicators() {
		if idx, ok := columns[name]; ok {
			indicators[name] = idx
		}
	}

	samples := make([]model.LabeledSample, 0)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values := make([]float64, len(fields))
		for i, idx := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value for '%s': %w", line, model.Fields[i], err)
			}
			values[i] = v
		}
		risk, err := model.ParseRisk(record[label])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		sample := model.LabeledSample{
			Features: model.NewFeatureVector(values...),
			Risk:     risk,
		}
		if len(indicators) > 0 {
			sample.Indicators = make(map[string]bool, len(indicators))
			for name, idx := range indicators {
				sample.Indicators[name] = parseBool(record[idx])
			}
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// WriteCSV writes the samples with the schema header and the asthma_risk label column.
func WriteCSV(w io.Writer, samples []model.LabeledSample) error {
	writer := csv.NewWriter(w)
	header := append(model.Schema(), LabelColumns[0])
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, s := range samples {
		record := make([]string, 0, len(header))
		for _, v := range s.Features.Values() {
			record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
		}
		record = append(record, string(s.Risk))
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
