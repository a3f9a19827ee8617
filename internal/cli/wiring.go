package cli

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"github.com/kingrea/callsheet/internal/config"
	"github.com/kingrea/callsheet/internal/gateway"
	"github.com/kingrea/callsheet/internal/logging"
	"github.com/kingrea/callsheet/internal/store/postgres"
	"github.com/kingrea/callsheet/internal/store/sheets"
	"github.com/kingrea/callsheet/internal/store/sqlite"
	"github.com/kingrea/callsheet/internal/worklist"
)

// importer is implemented by the database backends.
type importer interface {
	Import(ctx context.Context, rows []worklist.Row) (int, error)
}

// openedStore is a store plus whatever releases it.
type openedStore struct {
	worklist.Store
	close func()
}

func (s openedStore) Close() {
	if s.close != nil {
		s.close()
	}
}

func loadConfig(dir string) (*config.Config, error) {
	root, err := projectDir(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}
	return config.Load(root)
}

func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (openedStore, error) {
	store := cfg.Project.Store
	switch store.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(store.Location, cfg.Schema())
		if err != nil {
			return openedStore{}, err
		}
		return openedStore{Store: s, close: func() { _ = s.Close() }}, nil
	case config.DriverPostgres:
		s, err := postgres.Connect(ctx, store.Location, cfg.Schema())
		if err != nil {
			return openedStore{}, err
		}
		return openedStore{Store: s, close: s.Close}, nil
	case config.DriverSheets:
		s, err := sheets.Open(ctx, store.Location, store.Worksheet, cfg.Schema(),
			[]option.ClientOption{option.WithCredentialsFile(store.CredentialsFile)},
			sheets.WithLogger(logger))
		if err != nil {
			return openedStore{}, err
		}
		return openedStore{Store: s}, nil
	default:
		return openedStore{}, fmt.Errorf("unknown store driver %q", store.Driver)
	}
}

func newGateway(cfg *config.Config, logger *logging.Logger) (*gateway.Guard, *gateway.Oracle) {
	api := cfg.Project.API
	guard := gateway.NewGuard(
		gateway.Settings{BaseURL: api.BaseURL, Timeout: cfg.APITimeout()},
		gateway.NewSession(api.Session),
		gateway.WithLogger(logger),
	)
	return guard, gateway.NewOracle(guard, api.CountryCode)
}
