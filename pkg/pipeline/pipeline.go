// Package pipeline drives the document signing workflow as a sequence of
// configurable steps: load the template document, register identifier
// attributes, query for signature templates, sign each template and publish
// the result. The default sequence implements the sign command; a YAML file
// can reorder or extend it.
package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/SUNET/go-xmlsign/pkg/logging"
)

// Pipeline represents a sequence of processing steps (Pipes) executed in
// order. Each Pipe calls a registered function with specified arguments to
// advance one signing run.
//
// The Pipeline always has a Logger available for use by pipeline steps.
// If no logger is specified during initialization, a default logger is used.
type Pipeline struct {
	Pipes  []Pipe                    // The ordered list of pipeline steps to execute
	Logger logging.Logger            // Logger for pipeline operations (never nil)
	Config map[string]map[string]any // Configuration for pipeline steps
}

// Process executes all steps in sequence, passing the Context from one step
// to the next. If a step returns an error, processing stops and the error is
// returned: a run either completes fully or fails without partial output.
func (pl *Pipeline) Process(ctx *Context) (*Context, error) {
	for i, pipe := range pl.Pipes {
		fn, ok := GetFunctionByName(pipe.MethodName)
		if !ok {
			return nil, fmt.Errorf("step %d: unknown methodName '%s'", i, pipe.MethodName)
		}
		var err error
		ctx, err = fn(pl, ctx, pipe.MethodArguments...)
		if err != nil {
			return ctx, fmt.Errorf("step %d (%s) failed: %w", i, pipe.MethodName, err)
		}
	}
	return ctx, nil
}

// New creates a Pipeline from an explicit list of pipes with the given
// logger. A nil logger is replaced with the default.
func New(pipes []Pipe, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Pipeline{
		Pipes:  pipes,
		Logger: logger,
		Config: make(map[string]map[string]any),
	}
}

// NewPipeline loads a pipeline configuration from a YAML file. The file
// contains either a sequence of steps, where each step is a map with a
// single key (the method name) and a list of string arguments, or a full
// configuration with "pipes" and "config" sections.
//
// Example YAML format:
//
//	- load:
//	    - template.xml
//	- sign:
//	    - key.pem
//	- publish:
func NewPipeline(filename string) (*Pipeline, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	logger := logging.DefaultLogger()

	var pipelineConfig struct {
		Pipes  []Pipe                    `yaml:"pipes"`
		Config map[string]map[string]any `yaml:"config"`
	}

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&pipelineConfig); err != nil {
		// Fall back to the legacy format: a bare array of pipes.
		file.Seek(0, 0)
		var pipes []Pipe
		decoder = yaml.NewDecoder(file)
		if err := decoder.Decode(&pipes); err != nil {
			return nil, err
		}
		return &Pipeline{
			Pipes:  pipes,
			Logger: logger,
			Config: make(map[string]map[string]any),
		}, nil
	}

	if logConfig, ok := pipelineConfig.Config["logging"]; ok {
		if levelStr, ok := logConfig["level"].(string); ok {
			var level logging.LogLevel
			switch strings.ToLower(levelStr) {
			case "debug":
				level = logging.DebugLevel
			case "info":
				level = logging.InfoLevel
			case "warn":
				level = logging.WarnLevel
			case "error":
				level = logging.ErrorLevel
			case "fatal":
				level = logging.FatalLevel
			default:
				level = logging.InfoLevel
			}
			logger = logging.NewLogger(level)
		}
		if format, ok := logConfig["format"].(string); ok && format == "json" {
			logger = logging.JSONLogger(logger.GetLevel())
		}
	}

	return &Pipeline{
		Pipes:  pipelineConfig.Pipes,
		Logger: logger,
		Config: pipelineConfig.Config,
	}, nil
}

// Pipe represents a single step in the pipeline with its method name and
// arguments. It provides custom YAML unmarshalling for the pipeline
// configuration format.
type Pipe struct {
	MethodName      string   // The name of the registered function to call
	MethodArguments []string // The arguments to pass to the function
}

// UnmarshalYAML implements the yaml.Unmarshaler interface. It expects a
// mapping node with exactly one key (the method name) and one value
// (a sequence of arguments).
func (p *Pipe) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return &yaml.TypeError{Errors: []string{"Pipe must be a map with a single key (method name) and a list of arguments"}}
	}
	methodNode := value.Content[0]
	argsNode := value.Content[1]
	p.MethodName = methodNode.Value
	if argsNode.Tag == "!!null" {
		p.MethodArguments = nil
		return nil
	}
	if argsNode.Kind != yaml.SequenceNode {
		return &yaml.TypeError{Errors: []string{"Pipe arguments must be a sequence"}}
	}
	p.MethodArguments = make([]string, len(argsNode.Content))
	for i, arg := range argsNode.Content {
		p.MethodArguments[i] = arg.Value
	}
	return nil
}

// WithLogger returns a new Pipeline with the specified logger, preserving
// the rest of the pipeline configuration.
func (pl *Pipeline) WithLogger(logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Pipeline{
		Pipes:  pl.Pipes,
		Logger: logger,
		Config: pl.Config,
	}
}
