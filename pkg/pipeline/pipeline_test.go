package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPipeline_Process_Success(t *testing.T) {
	RegisterFunction("testfunc", func(pl *Pipeline, ctx *Context, args ...string) (*Context, error) {
		assert.Equal(t, []string{"foo", "bar"}, args)
		if ctx == nil {
			t.Fatal("ctx should not be nil")
		}
		ctx.Signed++
		return ctx, nil
	})
	yamlData := `
- testfunc:
    - foo
    - bar
`
	var pipes []Pipe
	err := yaml.Unmarshal([]byte(yamlData), &pipes)
	assert.NoError(t, err)
	pl := New(pipes, nil)
	ctx, err := pl.Process(NewContext())
	assert.NoError(t, err)
	assert.NotNil(t, ctx)
	assert.Equal(t, 1, ctx.Signed)
}

func TestPipeline_Process_UnknownMethod(t *testing.T) {
	pl := New([]Pipe{{MethodName: "unknown"}}, nil)
	ctx, err := pl.Process(NewContext())
	assert.Error(t, err)
	assert.Nil(t, ctx)
	assert.Contains(t, err.Error(), "unknown methodName")
}

func TestPipeline_Process_StepError(t *testing.T) {
	RegisterFunction("failfunc", func(pl *Pipeline, ctx *Context, args ...string) (*Context, error) {
		return ctx, os.ErrPermission
	})
	pl := New([]Pipe{{MethodName: "failfunc"}}, nil)
	ctx, err := pl.Process(NewContext())
	assert.Error(t, err)
	assert.NotNil(t, ctx)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "failed")
}

func TestPipeline_Process_StopsAtFirstFailure(t *testing.T) {
	ran := false
	RegisterFunction("failfirst", func(pl *Pipeline, ctx *Context, args ...string) (*Context, error) {
		return ctx, os.ErrPermission
	})
	RegisterFunction("neverruns", func(pl *Pipeline, ctx *Context, args ...string) (*Context, error) {
		ran = true
		return ctx, nil
	})
	pl := New([]Pipe{{MethodName: "failfirst"}, {MethodName: "neverruns"}}, nil)
	_, err := pl.Process(NewContext())
	assert.Error(t, err)
	assert.False(t, ran)
}

func TestPipe_UnmarshalYAML_NoArguments(t *testing.T) {
	yamlData := `
- echo:
`
	var pipes []Pipe
	err := yaml.Unmarshal([]byte(yamlData), &pipes)
	require.NoError(t, err)
	require.Len(t, pipes, 1)
	assert.Equal(t, "echo", pipes[0].MethodName)
	assert.Empty(t, pipes[0].MethodArguments)
}

func TestPipe_UnmarshalYAML_BadShape(t *testing.T) {
	var pipes []Pipe
	err := yaml.Unmarshal([]byte("- just-a-string\n"), &pipes)
	assert.Error(t, err)
}

func TestNewPipeline_LegacyArrayFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- echo:
    - hello
`), 0o644))

	pl, err := NewPipeline(path)
	require.NoError(t, err)
	require.Len(t, pl.Pipes, 1)
	assert.Equal(t, "echo", pl.Pipes[0].MethodName)
	assert.Equal(t, []string{"hello"}, pl.Pipes[0].MethodArguments)
	assert.NotNil(t, pl.Logger)
}

func TestNewPipeline_FullConfigFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipes:
  - echo:
      - hello
config:
  logging:
    level: debug
    format: json
`), 0o644))

	pl, err := NewPipeline(path)
	require.NoError(t, err)
	require.Len(t, pl.Pipes, 1)
	assert.Contains(t, pl.Config, "logging")
}

func TestNewPipeline_MissingFile(t *testing.T) {
	_, err := NewPipeline(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPipeline_WithLogger(t *testing.T) {
	pl := New([]Pipe{{MethodName: "echo"}}, nil)
	pl2 := pl.WithLogger(nil)
	assert.NotNil(t, pl2.Logger)
	assert.Equal(t, pl.Pipes, pl2.Pipes)
}
