package worker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runcell/runcell/language"
	"github.com/runcell/runcell/language/cpp"
	"github.com/runcell/runcell/language/python"
	"github.com/runcell/runcell/worker"
)

func newEngine(t *testing.T, runtimes ...language.Runtime) *worker.Engine {
	t.Helper()
	e, err := worker.NewEngine(runtimes)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineLanguages(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t, cpp.New(dir), python.New(dir))

	assert.Equal(t, []language.Language{language.Python, language.CPP}, e.Languages(),
		"languages are reported in canonical order")
}

func TestNewWorkerUnknownLanguage(t *testing.T) {
	e := newEngine(t, python.New(t.TempDir()))

	_, err := e.NewWorker(context.Background(), language.JavaScript)
	require.ErrorIs(t, err, worker.ErrUnknownLanguage)
}

func TestNewWorkerMissingRuntimeBundle(t *testing.T) {
	// Empty runtime dir: the descriptor cannot load its module.
	e := newEngine(t, python.New(t.TempDir()))

	_, err := e.NewWorker(context.Background(), language.Python)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "python runtime module")
}

func TestEngineCloseIdempotent(t *testing.T) {
	e, err := worker.NewEngine([]language.Runtime{python.New(t.TempDir())})
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.NewWorker(context.Background(), language.Python)
	require.Error(t, err, "a closed engine must not hand out workers")
}
