package logger

import (
	"go-workflow/internal/config"
	"go-workflow/internal/database"

	"go.uber.org/zap"
)

// NewLogger builds the application logger. When LOG_TO_DB is set, warn and
// above are also persisted to the system_logs collection.
func NewLogger(cfg *config.Config, mongodb *database.MongodbDB) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.IsProduction() {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.EncoderConfig.FunctionKey = "func"

	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	core := baseLogger.Core()
	if cfg.LogToDB {
		core = NewDBCore(core, NewDBLogWriter(mongodb, cfg))
	}

	logger := zap.New(core, zap.AddCaller()).With(zap.String("app", cfg.AppId))
	zap.ReplaceGlobals(logger)
	return logger, nil
}
