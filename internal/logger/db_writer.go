package logger

import (
	"context"
	"fmt"
	"os"
	"time"

	common_models "go-workflow/internal/common/models"
	"go-workflow/internal/config"
	"go-workflow/internal/database"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
)

type LogEntry struct {
	Level     zapcore.Level
	Message   string
	Caller    string
	RequestID string
	UserID    string
	CaseID    string
}

// DBLogWriter drains a buffered channel into the system_logs collection.
type DBLogWriter struct {
	collection *mongo.Collection
	logChan    chan LogEntry
	appId      string
}

func NewDBLogWriter(mongodb *database.MongodbDB, cfg *config.Config) *DBLogWriter {
	writer := &DBLogWriter{
		collection: mongodb.DB.Collection("system_logs"),
		logChan:    make(chan LogEntry, 1000),
		appId:      cfg.AppId,
	}
	go writer.processLogs()
	return writer
}

// AddLog never blocks the caller; a full buffer drops the entry.
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case w.logChan <- entry:
	default:
		fmt.Fprintln(os.Stderr, "system log buffer full, dropping:", entry.Message)
	}
}

func (w *DBLogWriter) processLogs() {
	for entry := range w.logChan {
		record := common_models.SystemLog{
			Level:     entry.Level.CapitalString(),
			Message:   entry.Message,
			Caller:    entry.Caller,
			RequestID: entry.RequestID,
			UserID:    entry.UserID,
			CaseID:    entry.CaseID,
			AppID:     w.appId,
			CreatedAt: time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := w.collection.InsertOne(ctx, record); err != nil {
			fmt.Fprintln(os.Stderr, "system log write failed:", err)
		}
		cancel()
	}
}
