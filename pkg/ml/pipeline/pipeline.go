// Package pipeline chains transformers.
package pipeline

import (
	"fmt"

	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/ml"
	"gonum.org/v1/gonum/mat"
)

const KindPipeline = "pipeline"

// Step is a named transformer.
type Step struct {
	Name        string
	Transformer ml.Transformer
}

// Pipeline applies steps in order. It is a Transformer itself.
type Pipeline struct {
	Steps []Step
}

var _ ml.Transformer = &Pipeline{}

// New builds a pipeline. Step names should be unique and non-empty.
func New(steps ...Step) (*Pipeline, error) {
	seen := map[string]struct{}{}
	for _, s := range steps {
		if s.Name == "" {
			return nil, fmt.Errorf("step name is empty")
		}
		if _, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("duplicated step name: %s", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Transformer == nil {
			return nil, fmt.Errorf("step %s has no transformer", s.Name)
		}
	}
	return &Pipeline{Steps: steps}, nil
}

func (p *Pipeline) Kind() string {
	return KindPipeline
}

// Step finds a step by name.
func (p *Pipeline) Step(name string) (ml.Transformer, bool) {
	for _, s := range p.Steps {
		if s.Name == name {
			return s.Transformer, true
		}
	}
	return nil, false
}

// Fit fits each step on the output of the previous one.
func (p *Pipeline) Fit(x mat.Matrix) error {
	current := x
	for i, s := range p.Steps {
		if err := s.Transformer.Fit(current); err != nil {
			return xe.WrapWithNote(fmt.Sprintf("step %s", s.Name), err)
		}
		if i == len(p.Steps)-1 {
			break
		}
		next, err := s.Transformer.Transform(current)
		if err != nil {
			return xe.WrapWithNote(fmt.Sprintf("step %s", s.Name), err)
		}
		current = next
	}
	return nil
}

func (p *Pipeline) Transform(x mat.Matrix) (*mat.Dense, error) {
	if len(p.Steps) == 0 {
		return mat.DenseCopyOf(x), nil
	}
	current := x
	var out *mat.Dense
	for _, s := range p.Steps {
		next, err := s.Transformer.Transform(current)
		if err != nil {
			return nil, xe.WrapWithNote(fmt.Sprintf("step %s", s.Name), err)
		}
		current, out = next, next
	}
	return out, nil
}
