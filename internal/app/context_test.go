package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"esgtrack/internal/config"
	"esgtrack/internal/repo"
)

func TestOpen_SeedsDefaultRulebook(t *testing.T) {
	ctx := context.Background()
	ws, err := Open(ctx, &config.Settings{Workspace: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	defer ws.Close()

	stored, err := repo.Repo{DB: ws.DB}.GetRulebook(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.Default().GeneralFrameworks(), stored.GeneralFrameworks())
	assert.NotNil(t, ws.Engine.Bank)
	assert.Len(t, ws.Engine.Bank.Sectors(), 8)
}

func TestOpen_SeedsWorkspaceFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Scheduling.DueDays.High = 14
	data, err := cfg.ToYAML()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), data, 0o644))

	ws, err := Open(ctx, &config.Settings{Workspace: dir}, zap.NewNop())
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, 14, ws.Engine.Config.Scheduling.DueDays.High)

	// a later file edit does not override the stored rulebook
	cfg.Scheduling.DueDays.High = 7
	data, err = cfg.ToYAML()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), data, 0o644))
	again, err := ResolveRulebook(ctx, dir, repo.Repo{DB: ws.DB})
	require.NoError(t, err)
	assert.Equal(t, 14, again.Scheduling.DueDays.High)
}

func TestLoadBank_MissingOverride(t *testing.T) {
	_, err := LoadBank(&config.Settings{QuestionBank: config.QuestionBankConfig{Path: filepath.Join(t.TempDir(), "nope.yml")}}, zap.NewNop())
	assert.Error(t, err)
}
