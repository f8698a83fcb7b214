package services_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
)

// fakeCodeSystems is an in-memory CodeSystemRepository keyed like the
// unique (kind, version) constraint
type fakeCodeSystems struct {
	mu   sync.Mutex
	rows map[string]*entities.CodeSystem
}

func newFakeCodeSystems() *fakeCodeSystems {
	return &fakeCodeSystems{rows: map[string]*entities.CodeSystem{}}
}

func (f *fakeCodeSystems) key(kind string, version *string) string {
	return kind + "|" + entities.VersionKey(version)
}

func (f *fakeCodeSystems) Upsert(ctx context.Context, in entities.CodeSystemInput) (*entities.CodeSystem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	k := f.key(in.Kind, in.Version)
	if existing, ok := f.rows[k]; ok {
		existing.Name = in.Name
		if in.Description != nil {
			existing.Description = *in.Description
		}
		if in.Active != nil {
			existing.Active = *in.Active
		}
		existing.UpdatedAt = now
		cp := *existing
		return &cp, nil
	}
	row := &entities.CodeSystem{
		ID:        uuid.NewString(),
		Kind:      in.Kind,
		Name:      in.Name,
		Version:   entities.VersionFromKey(entities.VersionKey(in.Version)),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Description != nil {
		row.Description = *in.Description
	}
	if in.Active != nil {
		row.Active = *in.Active
	}
	f.rows[k] = row
	cp := *row
	return &cp, nil
}

func (f *fakeCodeSystems) GetByKindAndVersion(ctx context.Context, kind string, version *string) (*entities.CodeSystem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[f.key(kind, version)]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, apperrors.NewNotFoundError("code system not found")
}

func (f *fakeCodeSystems) GetByID(ctx context.Context, id string) (*entities.CodeSystem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			cp := *row
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFoundError("code system not found")
}

func (f *fakeCodeSystems) List(ctx context.Context) ([]*entities.CodeSystem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*entities.CodeSystem{}
	for _, row := range f.rows {
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

// fakeCodes is an in-memory MedicalCodeRepository. Its search methods follow
// the SQL semantics: active only, shared filters, ordered by code.
type fakeCodes struct {
	mu             sync.Mutex
	byID           map[string]*entities.MedicalCode
	substringCalls int
	failSearch     error
	upserts        int
	failUpsertAt   int // 1-based; 0 never fails
}

func newFakeCodes() *fakeCodes {
	return &fakeCodes{byID: map[string]*entities.MedicalCode{}}
}

// add stores a code directly, bypassing the import pipeline
func (f *fakeCodes) add(c *entities.MedicalCode) *entities.MedicalCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.SystemKind == "" {
		c.SystemKind = "ICD10"
	}
	f.byID[c.ID] = c
	return c
}

func (f *fakeCodes) clone(c *entities.MedicalCode) *entities.MedicalCode {
	cp := *c
	return &cp
}

func (f *fakeCodes) sorted(match func(*entities.MedicalCode) bool, limit int) []*entities.MedicalCode {
	out := []*entities.MedicalCode{}
	for _, c := range f.byID {
		if match(c) {
			out = append(out, f.clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeCodes) CodeMapForSystem(ctx context.Context, systemID string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := map[string]string{}
	for _, c := range f.byID {
		if c.SystemID == systemID {
			m[c.Code] = c.ID
		}
	}
	return m, nil
}

func (f *fakeCodes) Upsert(ctx context.Context, code *entities.MedicalCode) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.failUpsertAt > 0 && f.upserts == f.failUpsertAt {
		return "", errInjected
	}
	for _, c := range f.byID {
		if c.SystemID == code.SystemID && c.Code == code.Code {
			id := c.ID
			updated := f.clone(code)
			updated.ID = id
			f.byID[id] = updated
			return id, nil
		}
	}
	stored := f.clone(code)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	f.byID[stored.ID] = stored
	return stored.ID, nil
}

func (f *fakeCodes) ListBySystem(ctx context.Context, systemID string) ([]*entities.MedicalCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(c *entities.MedicalCode) bool { return c.SystemID == systemID }, 0), nil
}

func (f *fakeCodes) UpdateSearchableTexts(ctx context.Context, texts map[string]string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, text := range texts {
		if c, ok := f.byID[id]; ok {
			c.SearchableText = text
			n++
		}
	}
	return n, nil
}

func (f *fakeCodes) GetByID(ctx context.Context, id string) (*entities.MedicalCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.byID[id]; ok {
		return f.clone(c), nil
	}
	return nil, apperrors.NewNotFoundError("medical code not found")
}

func (f *fakeCodes) GetByIDs(ctx context.Context, ids []string) ([]*entities.MedicalCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*entities.MedicalCode{}
	for _, id := range ids {
		if c, ok := f.byID[id]; ok {
			out = append(out, f.clone(c))
		}
	}
	return out, nil
}

func (f *fakeCodes) GetByCode(ctx context.Context, code, systemKind string) (*entities.MedicalCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := f.sorted(func(c *entities.MedicalCode) bool {
		return c.Code == code && (systemKind == "" || c.SystemKind == systemKind)
	}, 1)
	if len(found) == 0 {
		return nil, apperrors.NewNotFoundError("medical code not found")
	}
	return found[0], nil
}

func (f *fakeCodes) SubstringSearch(ctx context.Context, query string, filter entities.CodeFilter, limit int) ([]*entities.MedicalCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.substringCalls++
	if f.failSearch != nil {
		return nil, f.failSearch
	}
	q := strings.ToLower(query)
	return f.sorted(func(c *entities.MedicalCode) bool {
		if !filter.Matches(c) {
			return false
		}
		for _, field := range []string{c.Code, c.Display, c.ShortDescription, c.SearchableText} {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	}, limit), nil
}

func (f *fakeCodes) SearchByTokens(ctx context.Context, tokens []string, systemKind string, limit int) ([]*entities.MedicalCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	filter := entities.CodeFilter{SystemKind: systemKind}
	return f.sorted(func(c *entities.MedicalCode) bool {
		if !filter.Matches(c) {
			return false
		}
		for _, tok := range tokens {
			for _, field := range []string{c.Code, c.Display, c.SearchableText} {
				if strings.Contains(strings.ToLower(field), tok) {
					return true
				}
			}
		}
		return false
	}, limit), nil
}

func (f *fakeCodes) ListChapters(ctx context.Context, systemKind string) ([]entities.ChapterSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, c := range f.byID {
		if c.Active && c.Chapter != "" && (systemKind == "" || c.SystemKind == systemKind) {
			counts[c.Chapter]++
		}
	}
	out := []entities.ChapterSummary{}
	for ch, n := range counts {
		out = append(out, entities.ChapterSummary{Chapter: ch, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Chapter < out[j].Chapter })
	return out, nil
}

func (f *fakeCodes) ListByChapter(ctx context.Context, chapter, systemKind string, limit int) ([]*entities.MedicalCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	filter := entities.CodeFilter{SystemKind: systemKind, Chapter: chapter}
	return f.sorted(filter.Matches, limit), nil
}

func (f *fakeCodes) CountCodes(ctx context.Context, kind entities.CodeCountKind, systemKind string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.byID {
		if systemKind != "" && c.SystemKind != systemKind {
			continue
		}
		switch kind {
		case entities.CountAllCodes:
			n++
		case entities.CountCategoryCodes:
			if c.IsCategory {
				n++
			}
		case entities.CountSexRestrictedCodes:
			if c.SexRestriction != entities.SexRestrictionNone {
				n++
			}
		case entities.CountEtiologyCodes:
			if c.CrossAsterisk == entities.CrossAsteriskEtiology {
				n++
			}
		case entities.CountManifestationCodes:
			if c.CrossAsterisk == entities.CrossAsteriskManifestation {
				n++
			}
		}
	}
	return n, nil
}

// fakeFullText answers full-text queries from the same store with the same
// filters, matching whole words of the searchable text
type fakeFullText struct {
	mu          sync.Mutex
	codes       *fakeCodes
	ensureCalls int
	ensureErr   error
	searchErr   error
	searchCalls int
	indexed     []*entities.MedicalCode
	indexErr    error
}

func (f *fakeFullText) EnsureIndex(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return f.ensureErr
}

func (f *fakeFullText) Search(ctx context.Context, query string, filter entities.CodeFilter, limit int) ([]*entities.MedicalCode, error) {
	f.mu.Lock()
	f.searchCalls++
	err := f.searchErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	f.codes.mu.Lock()
	defer f.codes.mu.Unlock()
	return f.codes.sorted(func(c *entities.MedicalCode) bool {
		if !filter.Matches(c) {
			return false
		}
		for _, word := range strings.Fields(c.SearchableText) {
			if word == query {
				return true
			}
		}
		return false
	}, limit), nil
}

func (f *fakeFullText) IndexCodes(ctx context.Context, codes []*entities.MedicalCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, codes...)
	return f.indexErr
}

// fakeDiagnoses is an in-memory DiagnosisRepository. WithinTx works on a
// copy of the state and only commits when fn succeeds.
type fakeDiagnoses struct {
	mu          sync.Mutex
	diagnoses   map[string]*entities.Diagnosis
	revisions   []*entities.DiagnosisRevision
	failOn      string
	commits     int
	rollbacks   int
	forUpdateID []string
}

func newFakeDiagnoses() *fakeDiagnoses {
	return &fakeDiagnoses{diagnoses: map[string]*entities.Diagnosis{}}
}

type fakeDiagnosisTx struct {
	repo      *fakeDiagnoses
	diagnoses map[string]*entities.Diagnosis
	revisions []*entities.DiagnosisRevision
}

var errInjected = errors.New("injected failure")

func copyDiagnosis(d *entities.Diagnosis) *entities.Diagnosis {
	cp := *d
	cp.SecondaryCodes = append([]entities.DiagnosisSecondaryCode(nil), d.SecondaryCodes...)
	return &cp
}

func (f *fakeDiagnoses) WithinTx(ctx context.Context, fn func(tx repositories.DiagnosisTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx := &fakeDiagnosisTx{repo: f, diagnoses: map[string]*entities.Diagnosis{}}
	for id, d := range f.diagnoses {
		tx.diagnoses[id] = copyDiagnosis(d)
	}
	tx.revisions = append(tx.revisions, f.revisions...)

	if err := fn(tx); err != nil {
		f.rollbacks++
		return err
	}
	f.diagnoses = tx.diagnoses
	f.revisions = tx.revisions
	f.commits++
	return nil
}

func (t *fakeDiagnosisTx) fail(op string) error {
	if t.repo.failOn == op {
		return errInjected
	}
	return nil
}

func (t *fakeDiagnosisTx) Create(ctx context.Context, d *entities.Diagnosis) error {
	if err := t.fail("create"); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	t.diagnoses[d.ID] = copyDiagnosis(d)
	return nil
}

func (t *fakeDiagnosisTx) GetForUpdate(ctx context.Context, id string) (*entities.Diagnosis, error) {
	t.repo.forUpdateID = append(t.repo.forUpdateID, id)
	d, ok := t.diagnoses[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("diagnosis " + id + " not found")
	}
	return copyDiagnosis(d), nil
}

func (t *fakeDiagnosisTx) Update(ctx context.Context, d *entities.Diagnosis) error {
	if err := t.fail("update"); err != nil {
		return err
	}
	stored := t.diagnoses[d.ID]
	updated := copyDiagnosis(d)
	updated.SecondaryCodes = stored.SecondaryCodes
	t.diagnoses[d.ID] = updated
	return nil
}

func (t *fakeDiagnosisTx) ReplaceSecondaryCodes(ctx context.Context, id string, codeIDs []string) ([]entities.DiagnosisSecondaryCode, error) {
	if err := t.fail("secondary"); err != nil {
		return nil, err
	}
	links := make([]entities.DiagnosisSecondaryCode, 0, len(codeIDs))
	for i, c := range codeIDs {
		links = append(links, entities.DiagnosisSecondaryCode{DiagnosisID: id, CodeID: c, Order: i})
	}
	t.diagnoses[id].SecondaryCodes = links
	return links, nil
}

func (t *fakeDiagnosisTx) AddRevision(ctx context.Context, rev *entities.DiagnosisRevision) error {
	if err := t.fail("revision"); err != nil {
		return err
	}
	if rev.ID == "" {
		rev.ID = uuid.NewString()
	}
	cp := *rev
	t.revisions = append(t.revisions, &cp)
	return nil
}

func (f *fakeDiagnoses) GetByID(ctx context.Context, id string) (*entities.Diagnosis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.diagnoses[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("diagnosis " + id + " not found")
	}
	return copyDiagnosis(d), nil
}

func (f *fakeDiagnoses) ListRevisions(ctx context.Context, id string, limit int) ([]*entities.DiagnosisRevision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*entities.DiagnosisRevision{}
	for i := len(f.revisions) - 1; i >= 0 && len(out) < limit; i-- {
		if f.revisions[i].DiagnosisID == id {
			out = append(out, f.revisions[i])
		}
	}
	return out, nil
}

// fakeReporting records the arguments of the reporting queries
type fakeReporting struct {
	since     time.Time
	limit     int
	kind      string
	usage     []entities.CodeUsage
	patientID string
}

func (f *fakeReporting) TopCodes(ctx context.Context, systemKind string, since time.Time, limit int) ([]entities.CodeUsage, error) {
	f.kind, f.since, f.limit = systemKind, since, limit
	return f.usage, nil
}

func (f *fakeReporting) PatientTimeline(ctx context.Context, patientID string, limit int) ([]entities.PatientCodeEntry, error) {
	f.patientID, f.limit = patientID, limit
	return []entities.PatientCodeEntry{}, nil
}

// fakeEventBus records published events and feeds subscribers
type fakeEventBus struct {
	mu         sync.Mutex
	published  []*entities.CatalogEvent
	subscriber chan *entities.CatalogEvent
	publishErr error
}

func newFakeEventBus() *fakeEventBus {
	return &fakeEventBus{subscriber: make(chan *entities.CatalogEvent, 8)}
}

func (b *fakeEventBus) Publish(ctx context.Context, channel string, event *entities.CatalogEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
	return b.publishErr
}

func (b *fakeEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.CatalogEvent, error) {
	return b.subscriber, nil
}

func (b *fakeEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (b *fakeEventBus) Close() error { return nil }

func (b *fakeEventBus) events() []*entities.CatalogEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*entities.CatalogEvent(nil), b.published...)
}

// fakeAnalyzer returns canned diagnoses, an error, or blocks until the
// context is done
type fakeAnalyzer struct {
	diagnoses []entities.PossibleDiagnosis
	err       error
	block     bool
	calls     int
	symptoms  []string
}

func (a *fakeAnalyzer) AnalyzeSymptoms(ctx context.Context, req entities.SymptomAnalysisRequest) (*entities.SymptomAnalysis, error) {
	a.calls++
	a.symptoms = req.Symptoms
	if a.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if a.err != nil {
		return nil, a.err
	}
	return &entities.SymptomAnalysis{PossibleDiagnoses: a.diagnoses}, nil
}
