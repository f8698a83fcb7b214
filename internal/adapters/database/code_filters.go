package database

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/pkg/textnorm"
)

// medicalCodeColumns is the select list of scanMedicalCode
var medicalCodeColumns = []interface{}{
	goqu.I("mc.id"),
	goqu.I("mc.system_id"),
	goqu.I("cs.kind"),
	goqu.I("mc.code"),
	goqu.I("mc.display"),
	goqu.I("mc.description"),
	goqu.I("mc.short_description"),
	goqu.I("mc.parent_id"),
	goqu.I("mc.synonyms"),
	goqu.I("mc.searchable_text"),
	goqu.I("mc.chapter"),
	goqu.I("mc.sex_restriction"),
	goqu.I("mc.is_category"),
	goqu.I("mc.cross_asterisk"),
	goqu.I("mc.active"),
	goqu.I("mc.created_at"),
	goqu.I("mc.updated_at"),
}

// codesFrom selects medical codes joined with their code system
func codesFrom(db *goqu.Database) *goqu.SelectDataset {
	return db.From(goqu.T("medical_codes").As("mc")).
		Join(goqu.T("code_systems").As("cs"), goqu.On(goqu.I("cs.id").Eq(goqu.I("mc.system_id")))).
		Select(medicalCodeColumns...).
		Prepared(true)
}

// codeFilterExpressions is the single source of the structured search
// predicates. The full-text and substring paths both apply it, so their
// result sets only differ in the text predicate.
func codeFilterExpressions(f entities.CodeFilter) []exp.Expression {
	exprs := []exp.Expression{goqu.I("mc.active").IsTrue()}

	if f.SystemKind != "" {
		exprs = append(exprs, goqu.I("cs.kind").Eq(f.SystemKind))
	}
	if f.Chapter != "" {
		exprs = append(exprs, goqu.I("mc.chapter").Eq(f.Chapter))
	}
	if f.SexRestriction != entities.SexRestrictionNone {
		exprs = append(exprs, goqu.Or(
			goqu.I("mc.sex_restriction").Eq(string(f.SexRestriction)),
			goqu.I("mc.sex_restriction").IsNull(),
		))
	}
	if f.CategoriesOnly {
		exprs = append(exprs, goqu.I("mc.is_category").IsTrue())
	}
	return exprs
}

// containsAny matches pattern case-insensitively against any of the columns
func containsAny(pattern string, columns ...string) exp.ExpressionList {
	ors := make([]exp.Expression, 0, len(columns))
	for _, col := range columns {
		ors = append(ors, goqu.I(col).ILike(pattern))
	}
	return goqu.Or(ors...)
}

// substringExpression is the fallback text predicate
func substringExpression(query string) exp.ExpressionList {
	return containsAny(textnorm.ContainsPattern(query),
		"mc.code", "mc.display", "mc.short_description", "mc.searchable_text")
}

// codeOrder is the ordering shared by every search path
func codeOrder() []exp.OrderedExpression {
	return []exp.OrderedExpression{goqu.I("mc.code").Asc(), goqu.I("mc.id").Asc()}
}
