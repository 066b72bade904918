package datastore

import (
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vocalab/vococode-go/internal/logging"
)

// slowQueryThreshold defines the duration after which a query is considered
// slow and logged at warn level by the GORM logger.
const slowQueryThreshold = 1 * time.Second

var storeLogger *slog.Logger = logging.ForService("datastore")

// createGormLogger configures a GORM logger. In debug mode all statements are
// logged, otherwise only slow queries and errors.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(slogWriter{}, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// slogWriter adapts the service slog logger to GORM's printf-style interface.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	storeLogger.Debug("gorm", "detail", format, "args", args)
}

// performAutoMigration runs GORM auto-migration for all tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	migrationStart := time.Now()
	migrationLogger := storeLogger.With("db_type", dbType)

	migrationLogger.Debug("Starting database migration")

	if err := db.AutoMigrate(
		&Participant{},
		&Recording{},
		&Segment{},
		&ExclusionWindow{},
		&CodingBatch{},
		&Utterance{},
		&SamplePoolEntry{},
		&UtteranceCoding{},
		&Coder{},
	); err != nil {
		return dbError(err, "auto_migrate", "",
			"db_type", dbType,
			"connection", connectionInfo)
	}

	migrationLogger.Debug("Database migration completed successfully",
		"total_duration", time.Since(migrationStart))

	return nil
}
