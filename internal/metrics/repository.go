package metrics

import (
	"database/sql"
	"sync"
	"time"

	"codeberg.org/mutker/nvfanmon/internal/errors"
	"codeberg.org/mutker/nvfanmon/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db     *sql.DB
	insert *sql.Stmt
	logger logger.Logger
	mu     sync.Mutex
}

func NewRepository(cfg Config, log logger.Logger) (MetricsRepository, error) {
	errFactory := errors.New()

	if cfg.DSN == "" {
		return nil, errFactory.New(ErrInvalidDSN)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := InitSchema(db, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := checkSchemaVersion(db); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	insert, err := db.Prepare(insertSampleSQL)
	if err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Debug().Str("dsn", cfg.DSN).Msg("History repository initialized")

	return &repository{
		db:     db,
		insert: insert,
		logger: log,
	}, nil
}

func (r *repository) Record(snapshot *MetricsSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.insert.Exec(
		snapshot.Timestamp.UnixNano(),
		int64(snapshot.Temperature.Current),
		int64(snapshot.Temperature.Target),
		int64(snapshot.Temperature.Delta),
		int64(snapshot.FanSpeed.Requested),
		int64(snapshot.FanSpeed.Confirmed),
		int64(snapshot.Utilization),
	)
	if err != nil {
		return errors.New().Wrap(ErrMetricsCollection, err)
	}

	return nil
}

func (r *repository) Summary() (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		s     Summary
		since int64
	)

	err := r.db.QueryRow(summarySQL).Scan(
		&s.Samples,
		&s.MinTemperature,
		&s.MaxTemperature,
		&s.AvgTemperature,
		&s.AvgFanSpeed,
		&since,
	)
	if err != nil {
		return Summary{}, errors.New().Wrap(ErrQueryFailed, err)
	}

	if s.Samples > 0 {
		s.Since = time.Unix(0, since)
	}

	return s, nil
}

func (r *repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errFactory := errors.New()

	if err := r.insert.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	if err := r.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	r.logger.Debug().Msg("History repository closed")

	return nil
}
