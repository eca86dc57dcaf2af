// Package trainer tunes candidate classifiers, selects the best one and bundles it for serving.
package trainer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/labstack/gommon/log"
	configs "github.com/opst/netsec/pkg/configs/pipeline"
	"github.com/opst/netsec/pkg/domain"
	"github.com/opst/netsec/pkg/domain/transformation"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/ml"
	"github.com/opst/netsec/pkg/ml/bundle"
	"github.com/opst/netsec/pkg/ml/metrics"
	"github.com/opst/netsec/pkg/ml/search"
	"github.com/opst/netsec/pkg/tracking"
	"gonum.org/v1/gonum/mat"
)

// Evaluation is the outcome of tuning a candidate.
type Evaluation struct {
	Name   string
	Params ml.Params

	// CVScore is the mean cross-validation accuracy of Params.
	CVScore float64

	// TestScore is R2 of the refitted model on the test split.
	TestScore float64

	// Model is refitted with Params on the whole train split.
	Model ml.Classifier
}

// Report is a list of evaluations in the order of candidates.
type Report []Evaluation

// Scores maps candidate names to test scores.
func (r Report) Scores() map[string]float64 {
	out := make(map[string]float64, len(r))
	for _, e := range r {
		out[e.Name] = e.TestScore
	}
	return out
}

// SelectBest returns the evaluation with the highest test score.
//
// On tie, the earlier one wins.
//
// # Returns
//
// - Evaluation
//
// - error: TrainingError when the report is empty.
func SelectBest(r Report) (Evaluation, error) {
	if len(r) == 0 {
		return Evaluation{}, xe.WrapAs(xe.KindTraining, fmt.Errorf("no model is evaluated"))
	}
	best := r[0]
	for _, e := range r[1:] {
		if best.TestScore < e.TestScore {
			best = e
		}
	}
	return best, nil
}

type Trainer struct {
	conf           *configs.TrainerConfig
	input          domain.TransformationArtifact
	layout         domain.Layout
	finalModelPath string
	sink           tracking.Sink
	candidates     []Candidate
	logger         *log.Logger
}

type Option func(*Trainer)

// WithCandidates replaces the registry.
func WithCandidates(c []Candidate) Option {
	return func(tr *Trainer) {
		tr.candidates = c
	}
}

// New creates the trainer stage.
//
// finalModelPath is where the bundle is written for serving, in addition to the run directory.
func New(
	conf *configs.TrainerConfig,
	input domain.TransformationArtifact,
	layout domain.Layout,
	finalModelPath string,
	sink tracking.Sink,
	logger *log.Logger,
	options ...Option,
) (*Trainer, error) {
	tr := &Trainer{
		conf:           conf,
		input:          input,
		layout:         layout,
		finalModelPath: finalModelPath,
		sink:           sink,
		logger:         logger,
	}
	for _, o := range options {
		o(tr)
	}
	if tr.candidates == nil {
		c, err := Registry(conf.Seed())
		if err != nil {
			return nil, xe.WrapAs(xe.KindTraining, err)
		}
		tr.candidates = c
	}
	return tr, nil
}

// Evaluate tunes each candidate by grid search on the train split,
// and scores the refitted model on the test split.
//
// Candidates are evaluated one by one, and the first failure stops the evaluation.
//
// # Returns
//
// - Report
//
// - error: error of ctx, when it is done.
// TrainingError noted with the candidate name, when a candidate can not be fitted or scored.
func (tr *Trainer) Evaluate(
	ctx context.Context,
	xTrain mat.Matrix, yTrain []float64,
	xTest mat.Matrix, yTest []float64,
) (Report, error) {
	cfg := search.Config{Folds: tr.conf.Folds(), Workers: tr.conf.Workers()}
	report := Report{}
	for _, c := range tr.candidates {
		result, err := search.GridSearch(ctx, c.Estimator, c.Grid, xTrain, yTrain, cfg)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, xe.WrapAsWithNote(xe.KindTraining, c.Name, err)
		}
		pred, err := result.Best.Predict(xTest)
		if err != nil {
			return nil, xe.WrapAsWithNote(xe.KindTraining, c.Name, err)
		}
		score, err := metrics.R2(yTest, pred)
		if err != nil {
			return nil, xe.WrapAsWithNote(xe.KindTraining, c.Name, err)
		}
		tr.logger.Infof(
			"%s: test score = %g, cv score = %g, params = %s (%d candidates)",
			c.Name, score, result.BestScore(), result.BestParams(), len(result.Candidates),
		)
		report = append(report, Evaluation{
			Name:      c.Name,
			Params:    result.BestParams(),
			CVScore:   result.BestScore(),
			TestScore: score,
			Model:     result.Best,
		})
	}
	return report, nil
}

func loadSplit(path string) (*mat.Dense, []float64, error) {
	m, err := transformation.LoadMatrix(path)
	if err != nil {
		return nil, nil, err
	}
	return transformation.Split(m)
}

// TrainBest evaluates candidates, and bundles the best model with the fitted preprocessor.
//
// The bundle is written to the run directory and to the final model path.
// The best model is also recorded to the tracking sink. Tracking failures are logged and ignored.
//
// # Returns
//
// - domain.TrainerArtifact
//
// - error: IOError when inputs can not be read or the bundle can not be written.
// TrainingError when a candidate can not be fitted, or no candidate is given.
func (tr *Trainer) TrainBest(ctx context.Context) (domain.TrainerArtifact, error) {
	pre, err := bundle.LoadTransformer(tr.input.TransformedObjectPath)
	if err != nil {
		return domain.TrainerArtifact{}, err
	}
	xTrain, yTrain, err := loadSplit(tr.input.TransformedTrainPath)
	if err != nil {
		return domain.TrainerArtifact{}, err
	}
	xTest, yTest, err := loadSplit(tr.input.TransformedTestPath)
	if err != nil {
		return domain.TrainerArtifact{}, err
	}
	if _, c := xTrain.Dims(); c != len(tr.input.Features) {
		return domain.TrainerArtifact{}, xe.WrapAs(
			xe.KindSchema,
			fmt.Errorf("train matrix has %d features, but %d names are given", c, len(tr.input.Features)),
		)
	}

	report, err := tr.Evaluate(ctx, xTrain, yTrain, xTest, yTest)
	if err != nil {
		return domain.TrainerArtifact{}, err
	}
	best, err := SelectBest(report)
	if err != nil {
		return domain.TrainerArtifact{}, err
	}
	tr.logger.Infof("best model: %s (test score = %g)", best.Name, best.TestScore)

	trainMetric, err := classify(best.Model, xTrain, yTrain)
	if err != nil {
		return domain.TrainerArtifact{}, err
	}
	testMetric, err := classify(best.Model, xTest, yTest)
	if err != nil {
		return domain.TrainerArtifact{}, err
	}

	b := bundle.New(tr.input.Features, pre, best.Model)
	tr.track(ctx, best, b, trainMetric, testMetric)

	for _, p := range []string{tr.layout.TrainedModel(), tr.finalModelPath} {
		if err := b.Save(p); err != nil {
			return domain.TrainerArtifact{}, err
		}
	}

	return domain.TrainerArtifact{
		TrainedModelPath: tr.layout.TrainedModel(),
		BestModel:        best.Name,
		BestScore:        best.TestScore,
		TrainMetric:      trainMetric,
		TestMetric:       testMetric,
	}, nil
}

func classify(model ml.Classifier, x mat.Matrix, y []float64) (metrics.Classification, error) {
	pred, err := model.Predict(x)
	if err != nil {
		return metrics.Classification{}, xe.WrapAs(xe.KindTraining, err)
	}
	return metrics.Classify(y, pred)
}

func (tr *Trainer) track(
	ctx context.Context,
	best Evaluation,
	b *bundle.Bundle,
	train, test metrics.Classification,
) {
	blob, err := json.Marshal(b)
	if err != nil {
		tr.logger.Warnf("tracking is skipped: %s", err)
		return
	}
	id, err := tr.sink.Record(ctx, tracking.Record{
		Model:  best.Name,
		Params: best.Params,
		Metrics: map[string]float64{
			"train_f1":        train.F1,
			"train_precision": train.Precision,
			"train_recall":    train.Recall,
			"test_f1":         test.F1,
			"test_precision":  test.Precision,
			"test_recall":     test.Recall,
			"test_score":      best.TestScore,
			"cv_score":        best.CVScore,
		},
		Blob: blob,
	})
	if err != nil {
		tr.logger.Warnf("failed to record the model to the tracker: %s", err)
		return
	}
	if id != "" {
		tr.logger.Infof("recorded as run %s", id)
	}
}
