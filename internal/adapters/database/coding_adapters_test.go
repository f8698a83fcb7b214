package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
)

// sqlRecorder keeps every statement seen by sqlmock so tests can assert on generated SQL
type sqlRecorder struct {
	mu         sync.Mutex
	statements []string
}

func (r *sqlRecorder) matcher() sqlmock.QueryMatcher {
	return sqlmock.QueryMatcherFunc(func(expectedSQL, actualSQL string) error {
		r.mu.Lock()
		r.statements = append(r.statements, actualSQL)
		r.mu.Unlock()
		return sqlmock.QueryMatcherRegexp.Match(expectedSQL, actualSQL)
	})
}

func (r *sqlRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statements) == 0 {
		return ""
	}
	return r.statements[len(r.statements)-1]
}

func setupMockClient(t *testing.T) (*postgres.Client, sqlmock.Sqlmock, *sqlRecorder) {
	rec := &sqlRecorder{}
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(rec.matcher()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.NewClientFromDB(db), mock, rec
}

var codeRowColumns = []string{
	"id", "system_id", "kind", "code", "display", "description", "short_description",
	"parent_id", "synonyms", "searchable_text", "chapter", "sex_restriction",
	"is_category", "cross_asterisk", "active", "created_at", "updated_at",
}

func codeRow(id, code, display string, parentID, sex interface{}) []driver.Value {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []driver.Value{
		id, "sys-1", "ICD10", code, display, "desc", nil,
		parentID, []byte("{Cholera,Vibrio}"), strings.ToLower(code + " " + display), "I", sex,
		false, nil, true, now, now,
	}
}

func TestCodeSystemAdapter_UpsertKeepsUnsetFields(t *testing.T) {
	client, mock, rec := setupMockClient(t)
	adapter := NewCodeSystemAdapter(client)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO "code_systems"`).
		WillReturnRows(sqlmock.NewRows(codeSystemColumnNames()).
			AddRow("sys-1", "ICD10", "CID-10", "", nil, true, now, now))

	system, err := adapter.Upsert(context.Background(), entities.CodeSystemInput{Kind: "ICD10", Name: "CID-10"})
	require.NoError(t, err)

	assert.Equal(t, "sys-1", system.ID)
	assert.Nil(t, system.Version, "empty stored version maps back to unversioned")

	stmt := rec.last()
	assert.Contains(t, stmt, `ON CONFLICT (kind, version) DO UPDATE SET`)
	assert.Contains(t, stmt, `"name"=EXCLUDED.name`)
	assert.NotContains(t, stmt, `"description"=EXCLUDED.description`)
	assert.NotContains(t, stmt, `"active"=EXCLUDED.active`)
	assert.NotContains(t, stmt, "CID-10", "values must be bound, never interpolated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCodeSystemAdapter_UpsertUpdatesProvidedFields(t *testing.T) {
	client, mock, rec := setupMockClient(t)
	adapter := NewCodeSystemAdapter(client)
	now := time.Now()
	version, description, active := "2019", "Classificação", false

	mock.ExpectQuery(`INSERT INTO "code_systems"`).
		WillReturnRows(sqlmock.NewRows(codeSystemColumnNames()).
			AddRow("sys-1", "ICD10", "CID-10", "2019", description, false, now, now))

	system, err := adapter.Upsert(context.Background(), entities.CodeSystemInput{
		Kind: "ICD10", Name: "CID-10", Version: &version, Description: &description, Active: &active,
	})
	require.NoError(t, err)

	require.NotNil(t, system.Version)
	assert.Equal(t, "2019", *system.Version)
	assert.False(t, system.Active)
	assert.Contains(t, rec.last(), `"description"=EXCLUDED.description`)
	assert.Contains(t, rec.last(), `"active"=EXCLUDED.active`)
}

func TestCodeSystemAdapter_GetByKindAndVersionNotFound(t *testing.T) {
	client, mock, _ := setupMockClient(t)
	adapter := NewCodeSystemAdapter(client)

	mock.ExpectQuery(`SELECT .* FROM "code_systems"`).
		WillReturnRows(sqlmock.NewRows(codeSystemColumnNames()))

	_, err := adapter.GetByKindAndVersion(context.Background(), "CIAP2", nil)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMedicalCodeAdapter_SubstringSearch(t *testing.T) {
	client, mock, rec := setupMockClient(t)
	adapter := NewMedicalCodeAdapter(client)
	parent := "p-1"

	mock.ExpectQuery(`SELECT .* FROM "medical_codes" AS "mc"`).
		WillReturnRows(sqlmock.NewRows(codeRowColumns).
			AddRow(codeRow("c-1", "A00", "Cólera", parent, nil)...))

	filter := entities.CodeFilter{SystemKind: "ICD10", SexRestriction: entities.SexRestrictionFemale}
	codes, err := adapter.SubstringSearch(context.Background(), "chol%era", filter, 25)
	require.NoError(t, err)
	require.Len(t, codes, 1)

	assert.Equal(t, "A00", codes[0].Code)
	assert.Equal(t, "ICD10", codes[0].SystemKind)
	assert.Equal(t, []string{"Cholera", "Vibrio"}, codes[0].Synonyms)
	require.NotNil(t, codes[0].ParentID)
	assert.Equal(t, "p-1", *codes[0].ParentID)
	assert.Equal(t, entities.SexRestrictionNone, codes[0].SexRestriction)

	stmt := rec.last()
	assert.Contains(t, stmt, `"mc"."code" ILIKE $`)
	assert.Contains(t, stmt, `"mc"."short_description" ILIKE $`)
	assert.Contains(t, stmt, `"mc"."searchable_text" ILIKE $`)
	assert.Contains(t, stmt, `"mc"."sex_restriction" IS NULL`)
	assert.NotContains(t, stmt, "chol")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchPaths_ShareFilters(t *testing.T) {
	client, mock, rec := setupMockClient(t)
	codes := NewMedicalCodeAdapter(client)
	fts, err := NewPostgresCodeIndex(client, "portuguese")
	require.NoError(t, err)

	filter := entities.CodeFilter{
		SystemKind:     "ICD10",
		Chapter:        "I",
		SexRestriction: entities.SexRestrictionMale,
		CategoriesOnly: true,
	}

	mock.ExpectQuery(`plainto_tsquery`).WillReturnRows(sqlmock.NewRows(codeRowColumns))
	_, err = fts.Search(context.Background(), "colera", filter, 10)
	require.NoError(t, err)
	ftsSQL := rec.last()

	mock.ExpectQuery(`ILIKE`).WillReturnRows(sqlmock.NewRows(codeRowColumns))
	_, err = codes.SubstringSearch(context.Background(), "colera", filter, 10)
	require.NoError(t, err)
	fallbackSQL := rec.last()

	for _, fragment := range []string{
		`"mc"."active" IS TRUE`,
		`"cs"."kind" = $`,
		`"mc"."chapter" = $`,
		`"mc"."sex_restriction" IS NULL`,
		`"mc"."is_category" IS TRUE`,
		`ORDER BY "mc"."code" ASC, "mc"."id" ASC`,
		`LIMIT`,
	} {
		assert.Contains(t, ftsSQL, fragment)
		assert.Contains(t, fallbackSQL, fragment)
	}
}

func TestPostgresCodeIndex_EnsureIndex(t *testing.T) {
	client, mock, _ := setupMockClient(t)
	index, err := NewPostgresCodeIndex(client, "portuguese")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS "idx_medical_codes_fts_portuguese" ON medical_codes USING GIN (to_tsvector('portuguese'::regconfig`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, index.EnsureIndex(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = NewPostgresCodeIndex(client, "portuguese'); DROP TABLE medical_codes; --")
	assert.Error(t, err)
}

func TestMedicalCodeAdapter_UpdateSearchableTexts(t *testing.T) {
	client, mock, _ := setupMockClient(t)
	adapter := NewMedicalCodeAdapter(client)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "medical_codes"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "medical_codes"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := adapter.UpdateSearchableTexts(context.Background(), map[string]string{
		"c-1": "a00 cólera",
		"c-2": "a01 febre tifoide",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicalCodeAdapter_UpdateSearchableTextsRollsBack(t *testing.T) {
	client, mock, _ := setupMockClient(t)
	adapter := NewMedicalCodeAdapter(client)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "medical_codes"`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := adapter.UpdateSearchableTexts(context.Background(), map[string]string{"c-1": "x"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTransaction))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicalCodeAdapter_UpsertReturnsStoredID(t *testing.T) {
	client, mock, rec := setupMockClient(t)
	adapter := NewMedicalCodeAdapter(client)

	mock.ExpectQuery(`INSERT INTO "medical_codes"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))

	id, err := adapter.Upsert(context.Background(), &entities.MedicalCode{
		SystemID: "sys-1", Code: "A00", Display: "Cólera", Active: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "existing-id", id)
	assert.Contains(t, rec.last(), `ON CONFLICT (system_id, code) DO UPDATE SET`)
	assert.NotContains(t, rec.last(), `"created_at"=EXCLUDED`)
}

func TestMedicalCodeAdapter_CountCodes(t *testing.T) {
	client, mock, rec := setupMockClient(t)
	adapter := NewMedicalCodeAdapter(client)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := adapter.CountCodes(context.Background(), entities.CountEtiologyCodes, "ICD10")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Contains(t, rec.last(), `"mc"."cross_asterisk" = $`)
}

func TestDiagnosisAdapter_WithinTxCommits(t *testing.T) {
	client, mock, _ := setupMockClient(t)
	adapter := NewDiagnosisAdapter(client)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "diagnoses"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "diagnosis_secondary_codes"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "diagnosis_secondary_codes"`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO "diagnosis_revisions"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var links []entities.DiagnosisSecondaryCode
	err := adapter.WithinTx(context.Background(), func(tx repositories.DiagnosisTx) error {
		d := &entities.Diagnosis{PatientID: "p1", PrimaryCodeID: "c1", Status: "ACTIVE", Certainty: "CONFIRMED", CreatedAt: now, UpdatedAt: now}
		if err := tx.Create(context.Background(), d); err != nil {
			return err
		}
		var err error
		links, err = tx.ReplaceSecondaryCodes(context.Background(), d.ID, []string{"c2", "c3"})
		if err != nil {
			return err
		}
		return tx.AddRevision(context.Background(), &entities.DiagnosisRevision{
			DiagnosisID: d.ID, Next: d.Snapshot(), Reason: "create", CreatedAt: now,
		})
	})
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "c3", links[1].CodeID)
	assert.Equal(t, 1, links[1].Order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiagnosisAdapter_WithinTxRollsBack(t *testing.T) {
	client, mock, _ := setupMockClient(t)
	adapter := NewDiagnosisAdapter(client)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "diagnoses"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "diagnosis_revisions"`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := adapter.WithinTx(context.Background(), func(tx repositories.DiagnosisTx) error {
		d := &entities.Diagnosis{PatientID: "p1", PrimaryCodeID: "c1"}
		if err := tx.Create(context.Background(), d); err != nil {
			return err
		}
		return tx.AddRevision(context.Background(), &entities.DiagnosisRevision{DiagnosisID: d.ID})
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiagnosisAdapter_GetForUpdateLocksRow(t *testing.T) {
	client, mock, rec := setupMockClient(t)
	adapter := NewDiagnosisAdapter(client)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "diagnoses" .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "consultation_id", "primary_code_id", "notes", "onset_date", "resolved_date", "status", "certainty", "created_at", "updated_at"}).
			AddRow("d-1", "p1", nil, "c1", "", nil, nil, "ACTIVE", "CONFIRMED", now, now))
	mock.ExpectQuery(`SELECT .* FROM "diagnosis_secondary_codes"`).
		WillReturnRows(sqlmock.NewRows([]string{"diagnosis_id", "code_id", "position"}).
			AddRow("d-1", "c2", 0).
			AddRow("d-1", "c3", 1))
	mock.ExpectCommit()

	var got *entities.Diagnosis
	err := adapter.WithinTx(context.Background(), func(tx repositories.DiagnosisTx) error {
		var err error
		got, err = tx.GetForUpdate(context.Background(), "d-1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c3"}, got.SecondaryCodeIDs())
	assert.Nil(t, got.ConsultationID)
	assert.Contains(t, strings.Join(rec.statements, "\n"), "FOR UPDATE")
}

func TestDiagnosisAdapter_UpdateStoresStatusVerbatim(t *testing.T) {
	client, mock, rec := setupMockClient(t)
	adapter := NewDiagnosisAdapter(client)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "diagnoses" SET`).
		WithArgs("SUSPECTED", "", sqlmock.AnyArg(), "INACTIVE", sqlmock.AnyArg(), "d-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := adapter.WithinTx(context.Background(), func(tx repositories.DiagnosisTx) error {
		return tx.Update(context.Background(), &entities.Diagnosis{
			ID: "d-1", Status: "INACTIVE", Certainty: "SUSPECTED", UpdatedAt: now,
		})
	})
	require.NoError(t, err)
	assert.Contains(t, rec.last(), `"status"=$`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiagnosisAdapter_GetByIDNotFound(t *testing.T) {
	client, mock, _ := setupMockClient(t)
	adapter := NewDiagnosisAdapter(client)

	mock.ExpectQuery(`SELECT .* FROM "diagnoses"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := adapter.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDiagnosisAdapter_ListRevisions(t *testing.T) {
	client, mock, rec := setupMockClient(t)
	adapter := NewDiagnosisAdapter(client)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM "diagnosis_revisions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "diagnosis_id", "previous", "next", "changed_by_user_id", "reason", "created_at"}).
			AddRow("r-2", "d-1", []byte(`{"primary_code_id":"c1","status":"ACTIVE","certainty":"CONFIRMED","secondary":["c2","c3"]}`),
				[]byte(`{"primary_code_id":"c1","status":"RESOLVED","certainty":"CONFIRMED","secondary":["c2"]}`), "u-1", "update", now).
			AddRow("r-1", "d-1", nil,
				[]byte(`{"primary_code_id":"c1","status":"ACTIVE","certainty":"CONFIRMED","secondary":["c2","c3"]}`), nil, "create", now.Add(-time.Minute)))

	revs, err := adapter.ListRevisions(context.Background(), "d-1", entities.MaxRevisionsListed)
	require.NoError(t, err)
	require.Len(t, revs, 2)

	require.NotNil(t, revs[0].Previous)
	assert.Equal(t, []string{"c2", "c3"}, revs[0].Previous.Secondary)
	assert.Equal(t, []string{"c2"}, revs[0].Next.Secondary)
	assert.Equal(t, "u-1", *revs[0].ChangedByUserID)
	assert.Nil(t, revs[1].Previous)
	assert.Contains(t, rec.last(), `ORDER BY "created_at" DESC`)
}

func TestReportingAdapter_TopCodes(t *testing.T) {
	client, mock, rec := setupMockClient(t)
	adapter := NewReportingAdapter(client)

	mock.ExpectQuery(`SELECT .* FROM "diagnoses" AS "d"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "display", "kind", "usage"}).
			AddRow("c-1", "J11", "Influenza", "ICD10", 12).
			AddRow("c-2", "A00", "Cólera", "ICD10", 3))

	usage, err := adapter.TopCodes(context.Background(), "ICD10", time.Now().AddDate(0, 0, -30), 20)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, 12, usage[0].Count)
	assert.Contains(t, rec.last(), `GROUP BY`)
	assert.Contains(t, rec.last(), `ORDER BY "usage" DESC`)
}

func TestReportingAdapter_PatientTimeline(t *testing.T) {
	client, mock, _ := setupMockClient(t)
	adapter := NewReportingAdapter(client)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM "diagnoses" AS "d"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "id", "code", "display", "kind", "status", "certainty", "onset_date", "created_at"}).
			AddRow("d-2", "c-1", "J11", "Influenza", "ICD10", "ACTIVE", "CONFIRMED", now, now).
			AddRow("d-1", "c-2", "A00", "Cólera", "ICD10", "RESOLVED", "CONFIRMED", nil, now.Add(-time.Hour)))

	entries, err := adapter.PatientTimeline(context.Background(), "p1", 100)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotNil(t, entries[0].OnsetDate)
	assert.Nil(t, entries[1].OnsetDate)
}

func codeSystemColumnNames() []string {
	names := make([]string, len(codeSystemColumns))
	for i, c := range codeSystemColumns {
		names[i] = c.(string)
	}
	return names
}
