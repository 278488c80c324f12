package repository

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/messfeedback/go-auth/activitymap"
)

// SecurityEventModel is the append-only audit row.
type SecurityEventModel struct {
	bun.BaseModel `bun:"table:security_events,alias:sev"`

	ID         uuid.UUID      `bun:"id,pk"`
	EventType  string         `bun:"event_type,notnull"`
	Identifier string         `bun:"identifier,notnull"`
	ActorID    string         `bun:"actor_id"`
	AccountID  string         `bun:"account_id"`
	SourceIP   string         `bun:"source_ip"`
	UserAgent  string         `bun:"user_agent"`
	Detail     map[string]any `bun:"detail"`
	OccurredAt time.Time      `bun:"occurred_at,notnull"`
}

// ListSecurityEventsSQL returns the newest events of one identifier.
var ListSecurityEventsSQL = `SELECT * FROM security_events
WHERE identifier = ?
ORDER BY occurred_at DESC
LIMIT ?`

// SecurityEvents writes normalized security events.
type SecurityEvents struct {
	repository.Repository[*SecurityEventModel]
	db *bun.DB
}

// NewSecurityEvents creates a new repository.
func NewSecurityEvents(db *bun.DB) *SecurityEvents {
	repo := repository.NewRepository[*SecurityEventModel](db, repository.ModelHandlers[*SecurityEventModel]{
		NewRecord: func() *SecurityEventModel { return &SecurityEventModel{} },
		GetID: func(m *SecurityEventModel) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *SecurityEventModel, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
		GetIdentifier: func() string {
			return "identifier"
		},
	})

	return &SecurityEvents{
		Repository: repo,
		db:         db,
	}
}

// Append inserts records in a single statement.
func (r *SecurityEvents) Append(ctx context.Context, records ...activitymap.Normalized) error {
	return r.AppendTx(ctx, r.db, records...)
}

func (r *SecurityEvents) AppendTx(ctx context.Context, tx bun.IDB, records ...activitymap.Normalized) error {
	if len(records) == 0 {
		return nil
	}

	models := make([]*SecurityEventModel, 0, len(records))
	for _, rec := range records {
		models = append(models, fromNormalized(rec))
	}

	if _, err := tx.NewInsert().Model(&models).Exec(ctx); err != nil {
		return storeError(err, "append security events")
	}
	return nil
}

// ListByIdentifier returns the most recent events for identifier.
func (r *SecurityEvents) ListByIdentifier(ctx context.Context, identifier string, limit int) ([]*SecurityEventModel, error) {
	if limit <= 0 {
		limit = 50
	}

	models, err := r.Repository.RawTx(ctx, r.db, ListSecurityEventsSQL, identifier, limit)
	if err != nil {
		return nil, storeError(err, "list security events")
	}
	return models, nil
}

func fromNormalized(rec activitymap.Normalized) *SecurityEventModel {
	return &SecurityEventModel{
		ID:         uuid.New(),
		EventType:  rec.Verb,
		Identifier: rec.Identifier,
		ActorID:    rec.ActorID,
		AccountID:  rec.ObjectID,
		SourceIP:   rec.SourceIP,
		UserAgent:  rec.UserAgent,
		Detail:     rec.Metadata,
		OccurredAt: rec.OccurredAt,
	}
}
