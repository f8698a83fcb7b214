package database

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
	"github.com/zatekoja/medcoding/backend/pkg/textnorm"
)

// MedicalCodeAdapter implements MedicalCodeRepository
type MedicalCodeAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewMedicalCodeAdapter creates a new medical code adapter
func NewMedicalCodeAdapter(client *postgres.Client) repositories.MedicalCodeRepository {
	return &MedicalCodeAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// CodeMapForSystem returns code -> id for every code of the system
func (a *MedicalCodeAdapter) CodeMapForSystem(ctx context.Context, systemID string) (map[string]string, error) {
	query, args, err := a.db.From("medical_codes").
		Select("code", "id").
		Where(goqu.C("system_id").Eq(systemID)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load code map", err)
	}
	defer rows.Close()

	codes := make(map[string]string)
	for rows.Next() {
		var code, id string
		if err := rows.Scan(&code, &id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan code map", err)
		}
		codes[code] = id
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate code map", err)
	}
	return codes, nil
}

// Upsert inserts or updates a code keyed by (system_id, code)
func (a *MedicalCodeAdapter) Upsert(ctx context.Context, code *entities.MedicalCode) (string, error) {
	now := time.Now().UTC()
	id := code.ID
	if id == "" {
		id = uuid.NewString()
	}

	synonyms := code.Synonyms
	if synonyms == nil {
		synonyms = []string{}
	}

	record := goqu.Record{
		"id":                id,
		"system_id":         code.SystemID,
		"code":              code.Code,
		"display":           code.Display,
		"description":       code.Description,
		"short_description": code.ShortDescription,
		"parent_id":         nullString(code.ParentID),
		"synonyms":          pq.Array(synonyms),
		"searchable_text":   code.SearchableText,
		"chapter":           code.Chapter,
		"sex_restriction":   nullEnum(string(code.SexRestriction)),
		"is_category":       code.IsCategory,
		"cross_asterisk":    nullEnum(string(code.CrossAsterisk)),
		"active":            code.Active,
		"created_at":        now,
		"updated_at":        now,
	}

	update := goqu.Record{}
	for _, col := range []string{
		"display", "description", "short_description", "parent_id", "synonyms",
		"searchable_text", "chapter", "sex_restriction", "is_category", "cross_asterisk",
		"active", "updated_at",
	} {
		update[col] = goqu.L("EXCLUDED." + col)
	}

	query, args, err := a.db.Insert("medical_codes").
		Rows(record).
		OnConflict(goqu.DoUpdate("system_id, code", update)).
		Returning("id").
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", apperrors.NewInternalError("failed to build upsert query", err)
	}

	var storedID string
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&storedID); err != nil {
		return "", apperrors.NewInternalError("failed to upsert medical code "+code.Code, err)
	}
	return storedID, nil
}

// ListBySystem retrieves every code of a system ordered by code
func (a *MedicalCodeAdapter) ListBySystem(ctx context.Context, systemID string) ([]*entities.MedicalCode, error) {
	ds := codesFrom(a.db).
		Where(goqu.I("mc.system_id").Eq(systemID)).
		Order(codeOrder()...)
	return a.queryCodes(ctx, ds, "failed to list codes of system")
}

// UpdateSearchableTexts writes all searchable texts in one transaction
func (a *MedicalCodeAdapter) UpdateSearchableTexts(ctx context.Context, texts map[string]string) (int, error) {
	if len(texts) == 0 {
		return 0, nil
	}

	// stable lock order across concurrent rebuilds
	ids := make([]string, 0, len(texts))
	for id := range texts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := time.Now().UTC()
	updated := 0
	err := a.client.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			query, args, err := a.db.Update("medical_codes").
				Set(goqu.Record{"searchable_text": texts[id], "updated_at": now}).
				Where(goqu.C("id").Eq(id)).
				Prepared(true).
				ToSQL()
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			updated += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.NewTransactionError("failed to rebuild searchable text", err)
	}
	return updated, nil
}

// GetByID retrieves a code by ID
func (a *MedicalCodeAdapter) GetByID(ctx context.Context, id string) (*entities.MedicalCode, error) {
	return a.getOne(ctx, codesFrom(a.db).Where(goqu.I("mc.id").Eq(id)), "medical code not found")
}

// GetByCode retrieves a code by code string
func (a *MedicalCodeAdapter) GetByCode(ctx context.Context, code, systemKind string) (*entities.MedicalCode, error) {
	ds := codesFrom(a.db).Where(goqu.I("mc.code").Eq(code))
	if systemKind != "" {
		ds = ds.Where(goqu.I("cs.kind").Eq(systemKind))
	}
	ds = ds.Order(goqu.I("mc.active").Desc(), goqu.I("cs.kind").Asc(), goqu.I("mc.created_at").Asc())
	return a.getOne(ctx, ds, "medical code "+code+" not found")
}

// GetByIDs retrieves multiple codes by their IDs
func (a *MedicalCodeAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.MedicalCode, error) {
	if len(ids) == 0 {
		return []*entities.MedicalCode{}, nil
	}
	ds := codesFrom(a.db).Where(goqu.I("mc.id").In(ids))
	return a.queryCodes(ctx, ds, "failed to get medical codes by ids")
}

// SubstringSearch is the fallback search path
func (a *MedicalCodeAdapter) SubstringSearch(ctx context.Context, query string, filter entities.CodeFilter, limit int) ([]*entities.MedicalCode, error) {
	ds := codesFrom(a.db).
		Where(codeFilterExpressions(filter)...).
		Where(substringExpression(query)).
		Order(codeOrder()...).
		Limit(uint(limit))
	return a.queryCodes(ctx, ds, "failed to search medical codes")
}

// SearchByTokens returns active codes matching any token
func (a *MedicalCodeAdapter) SearchByTokens(ctx context.Context, tokens []string, systemKind string, limit int) ([]*entities.MedicalCode, error) {
	if len(tokens) == 0 {
		return []*entities.MedicalCode{}, nil
	}

	ors := make([]exp.Expression, 0, len(tokens))
	for _, tok := range tokens {
		ors = append(ors, containsAny(textnorm.ContainsPattern(tok), "mc.code", "mc.display", "mc.searchable_text"))
	}

	ds := codesFrom(a.db).
		Where(codeFilterExpressions(entities.CodeFilter{SystemKind: systemKind})...).
		Where(goqu.Or(ors...)).
		Order(codeOrder()...).
		Limit(uint(limit))
	return a.queryCodes(ctx, ds, "failed to search medical codes by tokens")
}

// ListChapters returns distinct non-empty chapters with active code counts
func (a *MedicalCodeAdapter) ListChapters(ctx context.Context, systemKind string) ([]entities.ChapterSummary, error) {
	ds := a.db.From(goqu.T("medical_codes").As("mc")).
		Join(goqu.T("code_systems").As("cs"), goqu.On(goqu.I("cs.id").Eq(goqu.I("mc.system_id")))).
		Select(goqu.I("mc.chapter"), goqu.COUNT(goqu.Star()).As("total")).
		Where(codeFilterExpressions(entities.CodeFilter{SystemKind: systemKind})...).
		Where(goqu.I("mc.chapter").Neq("")).
		GroupBy(goqu.I("mc.chapter")).
		Order(goqu.I("mc.chapter").Asc()).
		Prepared(true)

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list chapters", err)
	}
	defer rows.Close()

	chapters := []entities.ChapterSummary{}
	for rows.Next() {
		var ch entities.ChapterSummary
		if err := rows.Scan(&ch.Chapter, &ch.Count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan chapter", err)
		}
		chapters = append(chapters, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate chapters", err)
	}
	return chapters, nil
}

// ListByChapter returns active codes of a chapter ordered by code
func (a *MedicalCodeAdapter) ListByChapter(ctx context.Context, chapter, systemKind string, limit int) ([]*entities.MedicalCode, error) {
	ds := codesFrom(a.db).
		Where(codeFilterExpressions(entities.CodeFilter{SystemKind: systemKind, Chapter: chapter})...).
		Order(codeOrder()...).
		Limit(uint(limit))
	return a.queryCodes(ctx, ds, "failed to list codes by chapter")
}

// CountCodes counts the codes of one statistics bucket
func (a *MedicalCodeAdapter) CountCodes(ctx context.Context, kind entities.CodeCountKind, systemKind string) (int, error) {
	ds := a.db.From(goqu.T("medical_codes").As("mc")).
		Join(goqu.T("code_systems").As("cs"), goqu.On(goqu.I("cs.id").Eq(goqu.I("mc.system_id")))).
		Select(goqu.COUNT(goqu.Star())).
		Prepared(true)

	if systemKind != "" {
		ds = ds.Where(goqu.I("cs.kind").Eq(systemKind))
	}

	switch kind {
	case entities.CountCategoryCodes:
		ds = ds.Where(goqu.I("mc.is_category").IsTrue())
	case entities.CountSexRestrictedCodes:
		ds = ds.Where(goqu.I("mc.sex_restriction").IsNotNull())
	case entities.CountEtiologyCodes:
		ds = ds.Where(goqu.I("mc.cross_asterisk").Eq(string(entities.CrossAsteriskEtiology)))
	case entities.CountManifestationCodes:
		ds = ds.Where(goqu.I("mc.cross_asterisk").Eq(string(entities.CrossAsteriskManifestation)))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count codes", err)
	}
	return count, nil
}

func (a *MedicalCodeAdapter) getOne(ctx context.Context, ds *goqu.SelectDataset, notFound string) (*entities.MedicalCode, error) {
	query, args, err := ds.Limit(1).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	code, err := scanMedicalCode(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get medical code", err)
	}
	return code, nil
}

func (a *MedicalCodeAdapter) queryCodes(ctx context.Context, ds *goqu.SelectDataset, failure string) ([]*entities.MedicalCode, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return queryMedicalCodes(ctx, a.client.DB(), query, args, failure)
}

func queryMedicalCodes(ctx context.Context, db *sql.DB, query string, args []interface{}, failure string) ([]*entities.MedicalCode, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError(failure, err)
	}
	defer rows.Close()

	codes := []*entities.MedicalCode{}
	for rows.Next() {
		code, err := scanMedicalCode(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan medical code", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError(failure, err)
	}
	return codes, nil
}

func scanMedicalCode(row rowScanner) (*entities.MedicalCode, error) {
	code := &entities.MedicalCode{}
	var description, shortDescription, parentID, searchableText, chapter, sexRestriction, crossAsterisk sql.NullString

	if err := row.Scan(
		&code.ID,
		&code.SystemID,
		&code.SystemKind,
		&code.Code,
		&code.Display,
		&description,
		&shortDescription,
		&parentID,
		pq.Array(&code.Synonyms),
		&searchableText,
		&chapter,
		&sexRestriction,
		&code.IsCategory,
		&crossAsterisk,
		&code.Active,
		&code.CreatedAt,
		&code.UpdatedAt,
	); err != nil {
		return nil, err
	}

	code.Description = description.String
	code.ShortDescription = shortDescription.String
	if parentID.Valid {
		code.ParentID = &parentID.String
	}
	code.SearchableText = searchableText.String
	code.Chapter = chapter.String
	code.SexRestriction = entities.SexRestriction(sexRestriction.String)
	code.CrossAsterisk = entities.CrossAsterisk(crossAsterisk.String)
	return code, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullEnum(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
