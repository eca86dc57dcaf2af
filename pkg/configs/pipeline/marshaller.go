package pipeline

import (
	"fmt"
	"os"

	xe "github.com/opst/netsec/pkg/errors"
	"gopkg.in/yaml.v3"
)

// load pipeline config from a file.
//
// args:
//   - filepath: filepath refers a config file.
//
// returns *PipelineConfig, error:
//
//	When loading success, returns `(*PipelineConfig, nil)`.
//	Otherwise, returns `(nil, error)`.
func LoadPipelineConfig(filepath string) (*PipelineConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, xe.WrapAs(xe.KindIO, err)
	}
	conf, err := Unmarshal(content)
	if err != nil {
		return nil, xe.WrapWithNote(filepath, err)
	}
	return conf, nil
}

// parse config and seal it.
//
// Misconfiguration is reported as error, not panic.
func Unmarshal(conf []byte) (out *PipelineConfig, err error) {
	var _out *PipelineConfigMarshall
	if err := yaml.Unmarshal(conf, &_out); err != nil {
		return nil, xe.Wrap(err)
	}
	if _out == nil {
		_out = &PipelineConfigMarshall{}
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = xe.New(fmt.Sprint(r))
		}
	}()
	return TrySeal(_out), nil
}
