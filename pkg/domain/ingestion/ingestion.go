// Package ingestion exports raw records from the document store
// and splits them into train and test sets.
package ingestion

import (
	"context"
	"strings"

	"github.com/labstack/gommon/log"
	configs "github.com/opst/netsec/pkg/configs/pipeline"
	"github.com/opst/netsec/pkg/domain"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/store"
	"github.com/opst/netsec/pkg/table"
)

// NA is the sentinel of missing values in raw records.
const NA = "na"

type Ingestion struct {
	store  store.Store
	source *configs.StoreConfig
	conf   *configs.IngestionConfig
	layout domain.Layout
	logger *log.Logger
}

func New(
	st store.Store,
	source *configs.StoreConfig,
	conf *configs.IngestionConfig,
	layout domain.Layout,
	logger *log.Logger,
) *Ingestion {
	return &Ingestion{store: st, source: source, conf: conf, layout: layout, logger: logger}
}

// ExportAsTable fetches all documents of the configured collection as a table.
//
// Columns are keys in order of first appearance, without the internal identifier.
// Keys absent in a document and "na" values become table.Missing.
//
// # Returns
//
// - *table.Table
//
// - error: ExternalServiceError when the store fails or the collection is empty.
func (in *Ingestion) ExportAsTable(ctx context.Context) (*table.Table, error) {
	docs, err := in.store.Find(ctx, in.source.Database(), in.source.Collection())
	if err != nil {
		return nil, xe.WrapAs(xe.KindExternalService, err)
	}
	if len(docs) == 0 {
		return nil, xe.WrapWithNote(in.source.Database()+"."+in.source.Collection(), store.ErrNoDocuments)
	}

	columns := []string{}
	index := map[string]int{}
	for _, d := range docs {
		for _, f := range d {
			if f.Key == store.IDKey {
				continue
			}
			if _, ok := index[f.Key]; !ok {
				index[f.Key] = len(columns)
				columns = append(columns, f.Key)
			}
		}
	}

	rows := make([][]string, len(docs))
	for i, d := range docs {
		row := make([]string, len(columns))
		for _, f := range d {
			j, ok := index[f.Key]
			if !ok {
				continue
			}
			cell := store.Cell(f.Value)
			if strings.TrimSpace(cell) == NA {
				cell = table.Missing
			}
			row[j] = cell
		}
		rows[i] = row
	}
	return table.New(columns, rows)
}

// PersistFeatureStore writes t to the feature store path, and returns t as it is.
func (in *Ingestion) PersistFeatureStore(t *table.Table) (*table.Table, error) {
	if err := t.SaveCSV(in.layout.FeatureStore()); err != nil {
		return nil, err
	}
	return t, nil
}

// SplitTrainTest splits t with ratio (fraction of test rows) and seed, and writes both splits.
func (in *Ingestion) SplitTrainTest(t *table.Table, ratio float64, seed uint64) (domain.IngestionArtifact, error) {
	train, test, err := t.Split(ratio, seed)
	if err != nil {
		return domain.IngestionArtifact{}, err
	}
	if err := train.SaveCSV(in.layout.IngestedTrain()); err != nil {
		return domain.IngestionArtifact{}, err
	}
	if err := test.SaveCSV(in.layout.IngestedTest()); err != nil {
		return domain.IngestionArtifact{}, err
	}
	in.logger.Infof("split %d rows into train (%d) and test (%d)", t.Len(), train.Len(), test.Len())
	return domain.IngestionArtifact{
		FeatureStorePath: in.layout.FeatureStore(),
		TrainFilePath:    in.layout.IngestedTrain(),
		TestFilePath:     in.layout.IngestedTest(),
	}, nil
}

// Run exports, persists and splits in order.
//
// When any step fails, no artifact is returned.
func (in *Ingestion) Run(ctx context.Context) (domain.IngestionArtifact, error) {
	t, err := in.ExportAsTable(ctx)
	if err != nil {
		return domain.IngestionArtifact{}, err
	}
	in.logger.Infof(
		"exported %d records (%d columns) from %s.%s",
		t.Len(), len(t.Columns()), in.source.Database(), in.source.Collection(),
	)
	if t, err = in.PersistFeatureStore(t); err != nil {
		return domain.IngestionArtifact{}, err
	}
	return in.SplitTrainTest(t, in.conf.SplitRatio(), in.conf.Seed())
}
