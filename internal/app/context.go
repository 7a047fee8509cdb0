package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"esgtrack/internal/config"
	"esgtrack/internal/db"
	"esgtrack/internal/engine"
	"esgtrack/internal/migrate"
	"esgtrack/internal/questionbank"
	"esgtrack/internal/repo"
)

// ResolveRulebook returns the stored rulebook. When none exists yet it is
// seeded from the workspace esg.yml, or built-in defaults without one.
func ResolveRulebook(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	cfg, err := r.GetRulebook(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	seed, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if seed == nil {
		seed = config.Default()
	}
	if err := r.UpsertRulebook(ctx, nil, seed); err != nil {
		return nil, fmt.Errorf("seed rulebook: %w", err)
	}
	return seed, nil
}

// LoadBank loads the question bank override named in settings, or the embedded bank.
func LoadBank(s *config.Settings, logger *zap.Logger) (*questionbank.Bank, error) {
	path := ""
	if s != nil {
		path = s.QuestionBank.Path
	}
	bank, err := questionbank.Load(path, logger)
	if err != nil {
		return nil, eris.Wrap(err, "load question bank")
	}
	return bank, nil
}

// Workspace is an opened, migrated workspace database with its engine.
type Workspace struct {
	DB     *sql.DB
	Engine engine.Engine
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}

// Open prepares the workspace named in settings for use.
func Open(ctx context.Context, s *config.Settings, logger *zap.Logger) (*Workspace, error) {
	if s == nil {
		return nil, errors.New("settings required")
	}
	if logger == nil {
		logger = zap.L()
	}
	conn, err := db.Open(db.Config{Workspace: s.Workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := ResolveRulebook(ctx, s.Workspace, repo.Repo{DB: conn})
	if err != nil {
		conn.Close()
		return nil, err
	}
	bank, err := LoadBank(s, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Workspace{DB: conn, Engine: engine.New(conn, cfg, bank, logger)}, nil
}
