package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types appended by the engine.
const (
	CompanyCreated    = "company.created"
	CompanyUpdated    = "company.updated"
	AnswersUpdated    = "company.answers_updated"
	MeterAdded        = "company.meter_added"
	RulebookImported  = "rulebook.imported"
	GenerationApplied = "generation.applied"
	TaskCreated       = "task.created"
	TaskRefreshed     = "task.refreshed"
	TaskRemoved       = "task.removed"
	TaskStatusChanged = "task.status_changed"
	TaskUpdated       = "task.updated"
	EvidenceAdded     = "evidence.added"
)

// Entity kinds.
const (
	EntityCompany  = "company"
	EntityTask     = "task"
	EntityEvidence = "evidence"
	EntityRulebook = "rulebook"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside the caller's transaction.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, companyID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339Nano)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,company_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(companyID), entityKind, nullable(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
