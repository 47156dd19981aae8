package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"WebResearcher/internal/config"
	"WebResearcher/internal/domain"
	"WebResearcher/internal/logging"
	"WebResearcher/internal/usecase"
)

func TestNewWiresEngine(t *testing.T) {
	cfg := config.LoadFrom("")
	cfg.Search.Provider = "duckduckgo"
	cfg.Database.Path = filepath.Join(t.TempDir(), "history.db")

	application := New(cfg, logging.Discard())
	t.Cleanup(func() { require.NoError(t, application.Close()) })

	require.Equal(t, "duckduckgo", application.Providers()[0])

	run := application.Engine().Start(context.Background(), usecase.Request{Query: " "})
	var verr *domain.ValidationError
	require.ErrorAs(t, run.Wait(), &verr)

	history, err := application.History(context.Background())
	require.NoError(t, err)
	again, err := application.History(context.Background())
	require.NoError(t, err)
	require.Same(t, history, again)

	list, err := history.List(context.Background(), 5)
	require.NoError(t, err)
	require.Empty(t, list)
}
