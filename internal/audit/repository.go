package audit

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditEvent represents a single audit event.
type AuditEvent struct {
	EventID   string         `json:"event_id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Level     EventLevel     `json:"level"`
	RequestID *string        `json:"request_id,omitempty"`
	ClientID  *string        `json:"client_id,omitempty"`
	DeviceID  *string        `json:"device_id,omitempty"`
	Command   *string        `json:"command,omitempty"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload"`
}

// WriteEventInput contains the fields for creating a new audit event.
type WriteEventInput struct {
	Type      EventType
	Level     EventLevel // INFO when empty
	RequestID string
	ClientID  string
	DeviceID  string
	Command   string
	Message   string
	Payload   map[string]any
}

// EventQueryFilters contains optional filters for querying events.
type EventQueryFilters struct {
	Type      *EventType
	Level     *EventLevel
	DeviceID  *string
	Command   *string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// DBPair matches db.DBPair.
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

// Repository handles database operations for audit events.
type Repository struct {
	reader *sql.DB
	writer *sql.DB
	now    func() time.Time
}

// NewRepository creates a new audit Repository.
func NewRepository(dbPair DBPair) *Repository {
	return &Repository{reader: dbPair.Reader(), writer: dbPair.Writer(), now: time.Now}
}

const eventColumns = `event_id, timestamp, type, level, request_id, client_id, device_id, command, message, payload`

// InsertEvent writes a new audit event and returns it as stored.
func (r *Repository) InsertEvent(input WriteEventInput) (*AuditEvent, error) {
	level := input.Level
	if level == "" {
		level = EventLevelInfo
	}
	payload := input.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	event := &AuditEvent{
		EventID:   uuid.NewString(),
		Timestamp: r.now().UTC().Truncate(time.Millisecond),
		Type:      input.Type,
		Level:     level,
		RequestID: optional(input.RequestID),
		ClientID:  optional(input.ClientID),
		DeviceID:  optional(input.DeviceID),
		Command:   optional(input.Command),
		Message:   input.Message,
		Payload:   payload,
	}

	_, err = r.writer.Exec(`INSERT INTO audit_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventID, formatTimestamp(event.Timestamp), string(event.Type), string(event.Level),
		event.RequestID, event.ClientID, event.DeviceID, event.Command, event.Message, string(payloadJSON))
	if err != nil {
		return nil, err
	}
	return event, nil
}

// GetEvent retrieves a single event by ID. Returns nil, nil if not found.
func (r *Repository) GetEvent(eventID string) (*AuditEvent, error) {
	row := r.reader.QueryRow(`SELECT `+eventColumns+` FROM audit_events WHERE event_id = ?`, eventID)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return event, err
}

// QueryEvents returns events matching filters, newest first, plus the total
// number of matches.
func (r *Repository) QueryEvents(filters EventQueryFilters) ([]AuditEvent, int, error) {
	whereClause, args := buildWhereClause(filters)

	var total int
	if err := r.reader.QueryRow("SELECT COUNT(*) FROM audit_events "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	query := `SELECT ` + eventColumns + ` FROM audit_events ` + whereClause + ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	rows, err := r.reader.Query(query, append(args, limit, filters.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := []AuditEvent{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// PruneBefore deletes events older than cutoff and returns how many.
func (r *Repository) PruneBefore(cutoff time.Time) (int64, error) {
	result, err := r.writer.Exec(`DELETE FROM audit_events WHERE timestamp < ?`, formatTimestamp(cutoff))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func buildWhereClause(filters EventQueryFilters) (string, []any) {
	conditions := []string{}
	args := []any{}

	if filters.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, string(*filters.Type))
	}
	if filters.Level != nil {
		conditions = append(conditions, "level = ?")
		args = append(args, string(*filters.Level))
	}
	if filters.DeviceID != nil {
		conditions = append(conditions, "device_id = ?")
		args = append(args, *filters.DeviceID)
	}
	if filters.Command != nil {
		conditions = append(conditions, "command = ?")
		args = append(args, *filters.Command)
	}
	if filters.StartDate != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, formatTimestamp(*filters.StartDate))
	}
	if filters.EndDate != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, formatTimestamp(*filters.EndDate))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*AuditEvent, error) {
	var (
		event       AuditEvent
		timestamp   string
		eventType   string
		level       string
		requestID   sql.NullString
		clientID    sql.NullString
		deviceID    sql.NullString
		command     sql.NullString
		payloadJSON string
	)
	if err := row.Scan(&event.EventID, &timestamp, &eventType, &level, &requestID, &clientID, &deviceID, &command, &event.Message, &payloadJSON); err != nil {
		return nil, err
	}

	var err error
	if event.Timestamp, err = time.Parse(timestampLayout, timestamp); err != nil {
		return nil, err
	}
	event.Type = EventType(eventType)
	event.Level = EventLevel(level)
	event.RequestID = nullable(requestID)
	event.ClientID = nullable(clientID)
	event.DeviceID = nullable(deviceID)
	event.Command = nullable(command)
	if err := json.Unmarshal([]byte(payloadJSON), &event.Payload); err != nil {
		return nil, err
	}
	return &event, nil
}

// Fixed width so that string comparison in SQL orders chronologically.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nullable(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
