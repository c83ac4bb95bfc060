package metrics

import (
	"database/sql"

	"codeberg.org/mutker/nvfanmon/internal/errors"
	"codeberg.org/mutker/nvfanmon/internal/logger"
)

const (
	SchemaVersion = 1

	// SQL statements derived from schema
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp           INTEGER NOT NULL,
	       temp_current        INTEGER NOT NULL CHECK (typeof(temp_current) = 'integer'),
	       temp_target         INTEGER NOT NULL CHECK (typeof(temp_target) = 'integer'),
	       temp_delta          INTEGER NOT NULL CHECK (typeof(temp_delta) = 'integer'),
	       fan_speed_requested INTEGER NOT NULL CHECK (fan_speed_requested BETWEEN 0 AND 100),
	       fan_speed_confirmed INTEGER NOT NULL CHECK (fan_speed_confirmed BETWEEN 0 AND 100),
	       utilization         INTEGER NOT NULL CHECK (utilization BETWEEN 0 AND 100)
	   );`

	insertSampleSQL = `
    INSERT INTO samples (
        timestamp,
        temp_current, temp_target, temp_delta,
        fan_speed_requested, fan_speed_confirmed,
        utilization
    ) VALUES (?, ?, ?, ?, ?, ?, ?)`

	summarySQL = `
    SELECT
        COUNT(*),
        COALESCE(MIN(temp_current), 0),
        COALESCE(MAX(temp_current), 0),
        COALESCE(AVG(temp_current), 0),
        COALESCE(AVG(fan_speed_confirmed), 0),
        COALESCE(MIN(timestamp), 0)
    FROM samples`
)

// InitSchema creates the schema and records its version.
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Debug().
		Int("version", SchemaVersion).
		Msg("History schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	return version, nil
}

// checkSchemaVersion fails unless the database reports SchemaVersion.
func checkSchemaVersion(db *sql.DB) error {
	version, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}

	if version != SchemaVersion {
		return errors.New().WithData(ErrSchemaVersionMismatch, struct {
			Want int
			Got  int
		}{
			Want: SchemaVersion,
			Got:  version,
		})
	}

	return nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Table string
			Error string
		}{
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
