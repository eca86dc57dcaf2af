package trainer

import (
	"github.com/opst/netsec/pkg/ml"
	"github.com/opst/netsec/pkg/ml/ensemble"
	"github.com/opst/netsec/pkg/ml/linear"
	"github.com/opst/netsec/pkg/ml/neighbors"
	"github.com/opst/netsec/pkg/ml/search"
	"github.com/opst/netsec/pkg/ml/tree"
)

// Candidate is a classifier family to be tuned.
type Candidate struct {
	Name string

	// Estimator is the prototype. Grid search derives instances with WithParams.
	Estimator ml.Classifier

	Grid search.Grid
}

// Registry returns candidates in evaluation order.
//
// seed is set as random_state of randomized estimators.
func Registry(seed uint64) ([]Candidate, error) {
	seeded := ml.Params{"random_state": seed}

	forest, err := ensemble.NewRandomForest().WithParams(seeded)
	if err != nil {
		return nil, err
	}
	dt, err := tree.NewDecisionTree().WithParams(seeded)
	if err != nil {
		return nil, err
	}
	gb, err := ensemble.NewGradientBoosting().WithParams(seeded)
	if err != nil {
		return nil, err
	}

	return []Candidate{
		{
			Name:      "Random Forest",
			Estimator: forest,
			Grid:      search.Grid{"n_estimators": {8, 16, 32, 128, 256}},
		},
		{
			Name:      "Decision Tree",
			Estimator: dt,
			Grid:      search.Grid{"criterion": {tree.Gini, tree.Entropy, tree.LogLoss}},
		},
		{
			Name:      "Gradient Boosting",
			Estimator: gb,
			Grid: search.Grid{
				"learning_rate": {0.1, 0.01, 0.05, 0.001},
				"subsample":     {0.6, 0.7, 0.75, 0.85, 0.9},
				"n_estimators":  {8, 16, 32, 64, 128, 256},
			},
		},
		{
			Name:      "Logistic Regression",
			Estimator: linear.NewLogisticRegression(),
			Grid:      search.Grid{},
		},
		{
			Name:      "AdaBoost",
			Estimator: ensemble.NewAdaBoost(),
			Grid: search.Grid{
				"learning_rate": {0.1, 0.01, 0.001},
				"n_estimators":  {8, 16, 32, 64, 128, 256},
			},
		},
		{
			Name:      "K-Neighbors",
			Estimator: neighbors.NewKNeighbors(),
			Grid:      search.Grid{"n_neighbors": {3, 5, 7}},
		},
	}, nil
}
