package backend

import (
	"fmt"
	"log/slog"

	"pulse/internal/config"
	plog "pulse/internal/log"
	"pulse/internal/storage"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		DataDir:      appConfig.DataDir,
		LoadWorkers:  appConfig.LoadWorkers,
		SQLiteDBPath: appConfig.SQLiteDBPath,
	}, nil
}

// Factory creates table sources based on configuration
type Factory struct {
	// base is handed to the sources, which attach their own component.
	base   *slog.Logger
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{base: logger, logger: logger.With(plog.FieldComponent, plog.ComponentBackend)}
}

// CreateSource builds the source named by config.Type.
func (f *Factory) CreateSource(cfg Config) (*BackendResult, error) {
	switch cfg.Type {
	case DirectoryBackend:
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data directory is required for directory backend")
		}
		f.logger.Info("Initialized directory backend", plog.FieldRoot, cfg.DataDir, "workers", cfg.LoadWorkers)
		return &BackendResult{Source: NewDirectorySource(cfg.DataDir, cfg.LoadWorkers, f.base)}, nil

	case SQLiteBackend:
		if cfg.SQLiteDBPath == "" {
			return nil, fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, f.base)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &BackendResult{Source: NewSQLiteSource(repo), Cleanup: repo.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type %q: must be one of %v", cfg.Type, GetBackendTypeStrings())
	}
}
