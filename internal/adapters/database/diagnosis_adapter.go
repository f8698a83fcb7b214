package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
)

var diagnosisColumns = []interface{}{
	"id", "patient_id", "consultation_id", "primary_code_id", "notes",
	"onset_date", "resolved_date", "status", "certainty", "created_at", "updated_at",
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DiagnosisAdapter implements DiagnosisRepository
type DiagnosisAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDiagnosisAdapter creates a new diagnosis adapter
func NewDiagnosisAdapter(client *postgres.Client) repositories.DiagnosisRepository {
	return &DiagnosisAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// WithinTx runs fn in a transaction; fn's error rolls everything back
func (a *DiagnosisAdapter) WithinTx(ctx context.Context, fn func(tx repositories.DiagnosisTx) error) error {
	return a.client.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&diagnosisTx{q: tx, db: a.db})
	})
}

// GetByID retrieves a diagnosis with its secondary codes
func (a *DiagnosisAdapter) GetByID(ctx context.Context, id string) (*entities.Diagnosis, error) {
	r := &diagnosisTx{q: a.client.DB(), db: a.db}
	return r.get(ctx, id, false)
}

// ListRevisions returns revisions newest first
func (a *DiagnosisAdapter) ListRevisions(ctx context.Context, diagnosisID string, limit int) ([]*entities.DiagnosisRevision, error) {
	query, args, err := a.db.From("diagnosis_revisions").
		Select("id", "diagnosis_id", "previous", "next", "changed_by_user_id", "reason", "created_at").
		Where(goqu.C("diagnosis_id").Eq(diagnosisID)).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list diagnosis revisions", err)
	}
	defer rows.Close()

	revisions := []*entities.DiagnosisRevision{}
	for rows.Next() {
		rev := &entities.DiagnosisRevision{}
		var previous, next []byte
		var changedBy sql.NullString

		if err := rows.Scan(&rev.ID, &rev.DiagnosisID, &previous, &next, &changedBy, &rev.Reason, &rev.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan diagnosis revision", err)
		}
		if len(previous) > 0 {
			rev.Previous = &entities.DiagnosisSnapshot{}
			if err := json.Unmarshal(previous, rev.Previous); err != nil {
				return nil, apperrors.NewInternalError("failed to decode revision snapshot", err)
			}
		}
		if err := json.Unmarshal(next, &rev.Next); err != nil {
			return nil, apperrors.NewInternalError("failed to decode revision snapshot", err)
		}
		if changedBy.Valid {
			rev.ChangedByUserID = &changedBy.String
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate diagnosis revisions", err)
	}
	return revisions, nil
}

// diagnosisTx runs the diagnosis statements against a transaction (or the
// pool for plain reads)
type diagnosisTx struct {
	q  querier
	db *goqu.Database
}

func (t *diagnosisTx) Create(ctx context.Context, d *entities.Diagnosis) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	query, args, err := t.db.Insert("diagnoses").
		Rows(goqu.Record{
			"id":              d.ID,
			"patient_id":      d.PatientID,
			"consultation_id": nullString(d.ConsultationID),
			"primary_code_id": d.PrimaryCodeID,
			"notes":           d.Notes,
			"onset_date":      nullTime(d.OnsetDate),
			"resolved_date":   nullTime(d.ResolvedDate),
			"status":          d.Status,
			"certainty":       d.Certainty,
			"created_at":      d.CreatedAt,
			"updated_at":      d.UpdatedAt,
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return err
	}
	_, err = t.q.ExecContext(ctx, query, args...)
	return err
}

func (t *diagnosisTx) GetForUpdate(ctx context.Context, id string) (*entities.Diagnosis, error) {
	return t.get(ctx, id, true)
}

func (t *diagnosisTx) Update(ctx context.Context, d *entities.Diagnosis) error {
	query, args, err := t.db.Update("diagnoses").
		Set(goqu.Record{
			"notes":         d.Notes,
			"resolved_date": nullTime(d.ResolvedDate),
			"status":        d.Status,
			"certainty":     d.Certainty,
			"updated_at":    d.UpdatedAt,
		}).
		Where(goqu.C("id").Eq(d.ID)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return err
	}
	_, err = t.q.ExecContext(ctx, query, args...)
	return err
}

func (t *diagnosisTx) ReplaceSecondaryCodes(ctx context.Context, diagnosisID string, codeIDs []string) ([]entities.DiagnosisSecondaryCode, error) {
	query, args, err := t.db.Delete("diagnosis_secondary_codes").
		Where(goqu.C("diagnosis_id").Eq(diagnosisID)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}
	if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}

	links := make([]entities.DiagnosisSecondaryCode, 0, len(codeIDs))
	if len(codeIDs) == 0 {
		return links, nil
	}

	rows := make([]interface{}, 0, len(codeIDs))
	for i, codeID := range codeIDs {
		links = append(links, entities.DiagnosisSecondaryCode{DiagnosisID: diagnosisID, CodeID: codeID, Order: i})
		rows = append(rows, goqu.Record{"diagnosis_id": diagnosisID, "code_id": codeID, "position": i})
	}

	query, args, err = t.db.Insert("diagnosis_secondary_codes").Rows(rows...).Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return links, nil
}

func (t *diagnosisTx) AddRevision(ctx context.Context, rev *entities.DiagnosisRevision) error {
	if rev.ID == "" {
		rev.ID = uuid.NewString()
	}

	next, err := json.Marshal(rev.Next)
	if err != nil {
		return err
	}
	var previous interface{}
	if rev.Previous != nil {
		b, err := json.Marshal(rev.Previous)
		if err != nil {
			return err
		}
		previous = string(b)
	}

	query, args, err := t.db.Insert("diagnosis_revisions").
		Rows(goqu.Record{
			"id":                 rev.ID,
			"diagnosis_id":       rev.DiagnosisID,
			"previous":           previous,
			"next":               string(next),
			"changed_by_user_id": nullString(rev.ChangedByUserID),
			"reason":             rev.Reason,
			"created_at":         rev.CreatedAt,
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return err
	}
	_, err = t.q.ExecContext(ctx, query, args...)
	return err
}

func (t *diagnosisTx) get(ctx context.Context, id string, forUpdate bool) (*entities.Diagnosis, error) {
	ds := t.db.From("diagnoses").
		Select(diagnosisColumns...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true)
	if forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	d := &entities.Diagnosis{}
	var consultationID sql.NullString
	var notes sql.NullString
	var onset, resolved sql.NullTime

	err = t.q.QueryRowContext(ctx, query, args...).Scan(
		&d.ID,
		&d.PatientID,
		&consultationID,
		&d.PrimaryCodeID,
		&notes,
		&onset,
		&resolved,
		&d.Status,
		&d.Certainty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("diagnosis " + id + " not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get diagnosis", err)
	}

	if consultationID.Valid {
		d.ConsultationID = &consultationID.String
	}
	d.Notes = notes.String
	if onset.Valid {
		d.OnsetDate = timePtr(onset.Time)
	}
	if resolved.Valid {
		d.ResolvedDate = timePtr(resolved.Time)
	}

	secondary, err := t.secondaryCodes(ctx, id)
	if err != nil {
		return nil, err
	}
	d.SecondaryCodes = secondary
	return d, nil
}

func (t *diagnosisTx) secondaryCodes(ctx context.Context, diagnosisID string) ([]entities.DiagnosisSecondaryCode, error) {
	query, args, err := t.db.From("diagnosis_secondary_codes").
		Select("diagnosis_id", "code_id", "position").
		Where(goqu.C("diagnosis_id").Eq(diagnosisID)).
		Order(goqu.C("position").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load secondary codes", err)
	}
	defer rows.Close()

	links := []entities.DiagnosisSecondaryCode{}
	for rows.Next() {
		var link entities.DiagnosisSecondaryCode
		if err := rows.Scan(&link.DiagnosisID, &link.CodeID, &link.Order); err != nil {
			return nil, apperrors.NewInternalError("failed to scan secondary code", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate secondary codes", err)
	}
	return links, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
