package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
)

// ReportingAdapter implements ReportingRepository
type ReportingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReportingAdapter creates a new reporting adapter
func NewReportingAdapter(client *postgres.Client) repositories.ReportingRepository {
	return &ReportingAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func (a *ReportingAdapter) diagnosesWithCodes() *goqu.SelectDataset {
	return a.db.From(goqu.T("diagnoses").As("d")).
		Join(goqu.T("medical_codes").As("mc"), goqu.On(goqu.I("mc.id").Eq(goqu.I("d.primary_code_id")))).
		Join(goqu.T("code_systems").As("cs"), goqu.On(goqu.I("cs.id").Eq(goqu.I("mc.system_id")))).
		Prepared(true)
}

// TopCodes counts diagnoses per primary code since the given time
func (a *ReportingAdapter) TopCodes(ctx context.Context, systemKind string, since time.Time, limit int) ([]entities.CodeUsage, error) {
	ds := a.diagnosesWithCodes().
		Select(
			goqu.I("mc.id"),
			goqu.I("mc.code"),
			goqu.I("mc.display"),
			goqu.I("cs.kind"),
			goqu.COUNT(goqu.I("d.id")).As("usage"),
		).
		Where(goqu.I("d.created_at").Gte(since)).
		GroupBy(goqu.I("mc.id"), goqu.I("mc.code"), goqu.I("mc.display"), goqu.I("cs.kind")).
		Order(goqu.I("usage").Desc(), goqu.I("mc.code").Asc()).
		Limit(uint(limit))
	if systemKind != "" {
		ds = ds.Where(goqu.I("cs.kind").Eq(systemKind))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query top codes", err)
	}
	defer rows.Close()

	usage := []entities.CodeUsage{}
	for rows.Next() {
		var u entities.CodeUsage
		if err := rows.Scan(&u.CodeID, &u.Code, &u.Display, &u.SystemKind, &u.Count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan code usage", err)
		}
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate code usage", err)
	}
	return usage, nil
}

// PatientTimeline lists a patient's diagnoses newest first
func (a *ReportingAdapter) PatientTimeline(ctx context.Context, patientID string, limit int) ([]entities.PatientCodeEntry, error) {
	query, args, err := a.diagnosesWithCodes().
		Select(
			goqu.I("d.id"),
			goqu.I("mc.id"),
			goqu.I("mc.code"),
			goqu.I("mc.display"),
			goqu.I("cs.kind"),
			goqu.I("d.status"),
			goqu.I("d.certainty"),
			goqu.I("d.onset_date"),
			goqu.I("d.created_at"),
		).
		Where(goqu.I("d.patient_id").Eq(patientID)).
		Order(goqu.I("d.created_at").Desc(), goqu.I("d.id").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query patient timeline", err)
	}
	defer rows.Close()

	entries := []entities.PatientCodeEntry{}
	for rows.Next() {
		var e entities.PatientCodeEntry
		var onset sql.NullTime
		if err := rows.Scan(&e.DiagnosisID, &e.CodeID, &e.Code, &e.Display, &e.SystemKind,
			&e.Status, &e.Certainty, &onset, &e.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan timeline entry", err)
		}
		if onset.Valid {
			e.OnsetDate = timePtr(onset.Time)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate patient timeline", err)
	}
	return entries, nil
}
