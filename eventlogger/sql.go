package eventlogger

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/billbatista/acasinha-ledger/database"
)

type sqlEventLogger struct {
	db *database.DB
}

func NewSqlEventLogger(db *database.DB) *sqlEventLogger {
	return &sqlEventLogger{
		db: db,
	}
}

func (el *sqlEventLogger) Save(ctx context.Context, e Event) error {
	jsonData, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	jsonMetadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	statement := el.db.Rebind(`INSERT INTO events (id, event_type, event_data, event_metadata, created_at) VALUES ($1, $2, $3, $4, $5)`)
	_, err = el.db.ExecContext(ctx, statement, e.ID, e.Type, string(jsonData), string(jsonMetadata), e.CreatedAt)
	if err != nil {
		return err
	}

	return nil
}

// GetByType returns the newest events of eventType first.
func (el *sqlEventLogger) GetByType(ctx context.Context, eventType string, limit int) ([]Event, error) {
	query := el.db.Rebind(`SELECT id, event_type, event_data, event_metadata, created_at FROM events WHERE event_type = $1 ORDER BY created_at DESC LIMIT $2`)
	result, err := el.db.QueryContext(ctx, query, eventType, limit)
	if err != nil {
		return nil, err
	}
	return scanEvents(result)
}

// Recent returns the newest events of any type first.
func (el *sqlEventLogger) Recent(ctx context.Context, limit int) ([]Event, error) {
	query := el.db.Rebind(`SELECT id, event_type, event_data, event_metadata, created_at FROM events ORDER BY created_at DESC LIMIT $1`)
	result, err := el.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return scanEvents(result)
}

func scanEvents(result *sql.Rows) ([]Event, error) {
	defer result.Close()

	events := make([]Event, 0)
	for result.Next() {
		var event Event
		var jsonData, jsonMetadata []byte
		if err := result.Scan(&event.ID, &event.Type, &jsonData, &jsonMetadata, &event.CreatedAt); err != nil {
			return events, err
		}
		if len(jsonData) > 0 {
			event.Data = json.RawMessage(jsonData)
		}
		var metadata map[string]string
		if len(jsonMetadata) > 0 {
			if err := json.Unmarshal(jsonMetadata, &metadata); err != nil {
				return events, err
			}
		}
		event.Metadata = metadata

		events = append(events, event)
	}

	if err := result.Err(); err != nil {
		return events, err
	}

	return events, nil
}
