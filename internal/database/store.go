package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"stagesync/internal/config"
	"stagesync/pkg/types"
)

// Store persists events and queue items to sqlite. All writes funnel
// through a single goroutine; sqlite tolerates many readers but only
// one writer, and serializing here beats busy-loop retries in callers.
type Store struct {
	db       *sql.DB
	timeout  time.Duration
	writeCh  chan writeOperation
	shutdown chan struct{}
	wg       sync.WaitGroup
	closed   bool
	mu       sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// Open connects to the sqlite file, applies pragmas and schema, and
// starts the writer goroutine.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:       db,
		timeout:  cfg.Timeout,
		writeCh:  make(chan writeOperation, 100),
		shutdown: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// writeLoop applies queued writes one at a time, retrying once after a
// short pause on failure.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeCh:
			err := op.operation(s.db)
			if err != nil {
				log.Printf("database write failed, retrying: err=%v", err)
				time.Sleep(time.Second)
				err = op.operation(s.db)
				if err != nil {
					log.Printf("database write failed after retry: err=%v", err)
				}
			}
			op.result <- err

		case <-s.shutdown:
			return
		}
	}
}

func (s *Store) executeWrite(operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeCh <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(s.timeout):
		return ErrWriteTimeout
	case <-s.shutdown:
		return ErrStoreClosed
	}
}

// CreateEvent inserts a new event row. The code is unique; a duplicate
// reports ErrEventCodeTaken.
func (s *Store) CreateEvent(ctx context.Context, event *types.EventRecord) error {
	return s.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO events (id, code, name, status, created_at)
			VALUES (?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			event.ID,
			event.Code,
			event.Name,
			event.Status,
			event.CreatedAt,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return ErrEventCodeTaken
			}
			return fmt.Errorf("failed to insert event: %w", err)
		}
		return nil
	})
}

// GetEvent looks an event up by its join code.
func (s *Store) GetEvent(ctx context.Context, code string) (*types.EventRecord, error) {
	query := `
		SELECT id, code, name, status, created_at
		FROM events
		WHERE code = ?
	`
	row := s.db.QueryRowContext(ctx, query, code)

	var event types.EventRecord
	err := row.Scan(&event.ID, &event.Code, &event.Name, &event.Status, &event.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to query event: %w", err)
	}
	return &event, nil
}

// ListEvents returns every event, newest first.
func (s *Store) ListEvents(ctx context.Context) ([]*types.EventRecord, error) {
	query := `
		SELECT id, code, name, status, created_at
		FROM events
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*types.EventRecord
	for rows.Next() {
		var event types.EventRecord
		if err := rows.Scan(&event.ID, &event.Code, &event.Name, &event.Status, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, &event)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

// EndEvent marks an event ended. Missing rows are not an error; the
// write is idempotent.
func (s *Store) EndEvent(ctx context.Context, code string) error {
	return s.executeWrite(func(db *sql.DB) error {
		query := `UPDATE events SET status = ? WHERE code = ?`
		if _, err := db.ExecContext(ctx, query, types.EventStatusEnded, code); err != nil {
			return fmt.Errorf("failed to end event: %w", err)
		}
		return nil
	})
}

// SaveQueueItem inserts one queue row. Players are stored as a JSON
// array in a single column.
func (s *Store) SaveQueueItem(ctx context.Context, eventCode string, item types.QueueItem) error {
	return s.executeWrite(func(db *sql.DB) error {
		playersJSON, err := json.Marshal(item.Players)
		if err != nil {
			return fmt.Errorf("failed to marshal players: %w", err)
		}

		query := `
			INSERT INTO queue_items (id, event_code, status, players, song, added_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		_, err = db.ExecContext(ctx, query,
			item.ID,
			eventCode,
			item.Status,
			string(playersJSON),
			item.Song,
			item.AddedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert queue item: %w", err)
		}
		return nil
	})
}

// UpdateQueueItemStatus persists a status change already validated by
// the in-memory state.
func (s *Store) UpdateQueueItemStatus(ctx context.Context, id string, status types.QueueStatus) error {
	return s.executeWrite(func(db *sql.DB) error {
		query := `UPDATE queue_items SET status = ? WHERE id = ?`
		if _, err := db.ExecContext(ctx, query, status, id); err != nil {
			return fmt.Errorf("failed to update queue item: %w", err)
		}
		return nil
	})
}

// GetQueue returns an event's queue in insertion order.
func (s *Store) GetQueue(ctx context.Context, eventCode string) ([]types.QueueItem, error) {
	query := `
		SELECT id, status, players, song, added_at
		FROM queue_items
		WHERE event_code = ?
		ORDER BY added_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, eventCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []types.QueueItem
	for rows.Next() {
		var item types.QueueItem
		var playersJSON string
		if err := rows.Scan(&item.ID, &item.Status, &playersJSON, &item.Song, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", err)
		}
		if err := json.Unmarshal([]byte(playersJSON), &item.Players); err != nil {
			return nil, fmt.Errorf("failed to unmarshal players: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue rows: %w", err)
	}
	return items, nil
}

// HealthCheck validates connectivity and a trivial read.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "SELECT COUNT(*) FROM events LIMIT 1"); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close drains the writer and closes the connection. Safe to call
// twice.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
