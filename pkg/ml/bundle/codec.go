package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/opst/netsec/pkg/ml"
	"github.com/opst/netsec/pkg/ml/ensemble"
	"github.com/opst/netsec/pkg/ml/impute"
	"github.com/opst/netsec/pkg/ml/linear"
	"github.com/opst/netsec/pkg/ml/neighbors"
	"github.com/opst/netsec/pkg/ml/pipeline"
	"github.com/opst/netsec/pkg/ml/tree"
)

// classifiers decodable from a bundle, by kind.
var classifiers = map[string]func() ml.Classifier{
	ensemble.KindRandomForest:     func() ml.Classifier { return &ensemble.RandomForest{} },
	ensemble.KindGradientBoosting: func() ml.Classifier { return &ensemble.GradientBoosting{} },
	ensemble.KindAdaBoost:         func() ml.Classifier { return &ensemble.AdaBoost{} },
	tree.KindDecisionTree:         func() ml.Classifier { return &tree.DecisionTree{} },
	linear.KindLogisticRegression: func() ml.Classifier { return &linear.LogisticRegression{} },
	neighbors.KindKNeighbors:      func() ml.Classifier { return &neighbors.KNeighbors{} },
}

// transformers decodable from a bundle, by kind. Pipelines are handled separately.
var transformers = map[string]func() ml.Transformer{
	impute.KindKNNImputer: func() ml.Transformer { return &impute.KNNImputer{} },
}

// encoded is an estimator with its kind.
type encoded struct {
	Kind  string          `json:"kind"`
	State json.RawMessage `json:"state,omitempty"`
	Steps []encodedStep   `json:"steps,omitempty"`
}

type encodedStep struct {
	Name        string  `json:"name"`
	Transformer encoded `json:"transformer"`
}

func encodeClassifier(c ml.Classifier) (encoded, error) {
	if _, ok := classifiers[c.Kind()]; !ok {
		return encoded{}, fmt.Errorf("unsupported classifier: %s", c.Kind())
	}
	state, err := json.Marshal(c)
	if err != nil {
		return encoded{}, err
	}
	return encoded{Kind: c.Kind(), State: state}, nil
}

func decodeClassifier(e encoded) (ml.Classifier, error) {
	newC, ok := classifiers[e.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported classifier: %s", e.Kind)
	}
	c := newC()
	if err := json.Unmarshal(e.State, c); err != nil {
		return nil, err
	}
	return c, nil
}

func encodeTransformer(t ml.Transformer) (encoded, error) {
	if p, ok := t.(*pipeline.Pipeline); ok {
		steps := make([]encodedStep, len(p.Steps))
		for i, s := range p.Steps {
			e, err := encodeTransformer(s.Transformer)
			if err != nil {
				return encoded{}, err
			}
			steps[i] = encodedStep{Name: s.Name, Transformer: e}
		}
		return encoded{Kind: pipeline.KindPipeline, Steps: steps}, nil
	}

	if _, ok := transformers[t.Kind()]; !ok {
		return encoded{}, fmt.Errorf("unsupported transformer: %s", t.Kind())
	}
	state, err := json.Marshal(t)
	if err != nil {
		return encoded{}, err
	}
	return encoded{Kind: t.Kind(), State: state}, nil
}

func decodeTransformer(e encoded) (ml.Transformer, error) {
	if e.Kind == pipeline.KindPipeline {
		steps := make([]pipeline.Step, len(e.Steps))
		for i, s := range e.Steps {
			t, err := decodeTransformer(s.Transformer)
			if err != nil {
				return nil, err
			}
			steps[i] = pipeline.Step{Name: s.Name, Transformer: t}
		}
		return pipeline.New(steps...)
	}

	newT, ok := transformers[e.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported transformer: %s", e.Kind)
	}
	t := newT()
	if err := json.Unmarshal(e.State, t); err != nil {
		return nil, err
	}
	return t, nil
}
