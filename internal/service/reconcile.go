package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"club-treasury/internal/config"
	"club-treasury/internal/importer"
	"club-treasury/internal/logger"
	"club-treasury/internal/metrics"
	"club-treasury/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Skip struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	BatchID  string            `json:"batch_id"`
	Category importer.Category `json:"category"`
	Created  int               `json:"created"`
	Updated  int               `json:"updated"`
	Skipped  []Skip            `json:"skipped"`
}

func (r *ImportResult) skip(line int, format string, args ...any) {
	r.Skipped = append(r.Skipped, Skip{Line: line, Reason: fmt.Sprintf(format, args...)})
}

// Message is the success text shown to the uploader.
func (r *ImportResult) Message() string {
	switch r.Category {
	case importer.CategoryMembers:
		return fmt.Sprintf("Imported successfully (%d member(s) added)", r.Created)
	case importer.CategoryTransactions:
		return fmt.Sprintf("Imported successfully (%d transaction(s) added)", r.Created)
	case importer.CategoryBalances:
		return fmt.Sprintf("Imported successfully (%d balance(s) updated)", r.Updated)
	}
	return "Imported successfully"
}

// Importer applies the parsed rows of one category inside a transaction.
// Returning an error rolls back the whole batch.
type Importer interface {
	Category() importer.Category
	Apply(ctx context.Context, tx *gorm.DB, rows []importer.Row) (*ImportResult, error)
}

type ReconcileService struct {
	db        *gorm.DB
	importers map[importer.Category]Importer
}

func NewReconcileService(db *gorm.DB, cfg config.ImportConfig) *ReconcileService {
	excluded := newIDSet(cfg.ExcludedContacts...)
	s := &ReconcileService{db: db, importers: map[importer.Category]Importer{}}
	for _, imp := range []Importer{
		&MemberImport{validate: validator.New()},
		&TransactionImport{excluded: excluded},
		&BalanceImport{excluded: excluded.with(cfg.BalanceExcludedContacts...)},
	} {
		s.importers[imp.Category()] = imp
	}
	return s
}

// Import runs one parsed batch all-or-nothing.
func (s *ReconcileService) Import(ctx context.Context, batch *importer.Batch) (*ImportResult, error) {
	imp, ok := s.importers[batch.Category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", importer.ErrCategory, batch.Category)
	}
	batchID := uuid.NewString()
	category := string(batch.Category)
	log := logger.With("batch_id", batchID, "category", category, "file", batch.Filename)
	log.Info("import: start", "rows", len(batch.Rows), "rejected", len(batch.Rejected))

	var res *ImportResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = imp.Apply(ctx, tx, batch.Rows)
		return err
	})
	if err != nil {
		metrics.ImportBatches.WithLabelValues(category, "failed").Inc()
		log.Error("import: aborted", "err", err)
		return nil, err
	}

	res.BatchID = batchID
	res.Category = batch.Category
	for _, r := range batch.Rejected {
		res.Skipped = append(res.Skipped, Skip{Line: r.Line, Reason: r.Reason})
	}
	sort.SliceStable(res.Skipped, func(i, j int) bool { return res.Skipped[i].Line < res.Skipped[j].Line })

	metrics.ImportBatches.WithLabelValues(category, "committed").Inc()
	metrics.ImportRows.WithLabelValues(category, "created").Add(float64(res.Created))
	metrics.ImportRows.WithLabelValues(category, "updated").Add(float64(res.Updated))
	metrics.ImportRows.WithLabelValues(category, "skipped").Add(float64(len(res.Skipped)))
	log.Info("import: done", "created", res.Created, "updated", res.Updated, "skipped", len(res.Skipped))
	return res, nil
}

// --- members ---

type MemberImport struct {
	validate *validator.Validate
}

func (*MemberImport) Category() importer.Category { return importer.CategoryMembers }

const memberSavePoint = "member_row"

func (m *MemberImport) Apply(ctx context.Context, tx *gorm.DB, rows []importer.Row) (*ImportResult, error) {
	res := &ImportResult{}
	for _, row := range rows {
		email := row.Get(importer.FieldEmail)
		if err := m.validate.Var(email, "required,email"); err != nil {
			res.skip(row.Line, "invalid email %q", email)
			continue
		}
		fields, err := memberFieldsFromRow(row)
		if err != nil {
			res.skip(row.Line, "%v", err)
			continue
		}

		created, err := upsertMemberRow(tx, email, fields)
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			logger.Warn("import: duplicate member row ignored", "line", row.Line, "email", email)
			res.skip(row.Line, "duplicate key for %s", email)
		case err != nil:
			return nil, fmt.Errorf("line %d: %w", row.Line, err)
		case created:
			res.Created++
		default:
			res.Updated++
		}
	}
	return res, nil
}

type memberFields struct {
	firstName, lastName string
	gender              model.Gender
	phone               string
	birth               *time.Time
	contactID           *uint64
	clubMember          bool
	aidedMember         bool
	detailURL           string
}

var phoneCleaner = strings.NewReplacer(" ", "", ".", "", "-", "", "\u00a0", "")

func memberFieldsFromRow(row importer.Row) (memberFields, error) {
	f := memberFields{
		firstName:   row.Get(importer.FieldFirstName),
		lastName:    row.Get(importer.FieldLastName),
		gender:      parseGender(row.Get(importer.FieldGender)),
		clubMember:  strings.HasPrefix(row.Get(importer.FieldStatus), "Adhérent"),
		aidedMember: row.Get(importer.FieldAided) != "",
		detailURL:   row.Get(importer.FieldDetailURL),
	}

	phone := row.Get(importer.FieldMobile)
	if phone == "" {
		phone = row.Get(importer.FieldLandline)
	}
	f.phone = phoneCleaner.Replace(phone)

	birth, err := importer.ParseDate(row.Get(importer.FieldBirthDate))
	if err != nil {
		return f, err
	}
	f.birth = birth

	if raw := row.Get(importer.FieldContactID); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid contact id %q", raw)
		}
		f.contactID = &id
	}
	return f, nil
}

func parseGender(s string) model.Gender {
	switch s {
	case "Masculin":
		return model.GenderMen
	case "Féminin":
		return model.GenderWomen
	}
	return model.GenderUnspecified
}

func (f memberFields) apply(m *model.Member) {
	m.FirstName = f.firstName
	m.LastName = f.lastName
	m.Gender = f.gender
	m.PhoneNumber = f.phone
	m.DateOfBirth = f.birth

	m.Profile.ContactID = f.contactID
	m.Profile.ClubMembership = f.clubMember
	m.Profile.AidedMembership = f.aidedMember
	m.Profile.DetailURL = f.detailURL
	m.Profile.LastCheck = model.Today()
}

// upsertMemberRow runs under a savepoint so a key conflict only drops this row.
func upsertMemberRow(tx *gorm.DB, email string, f memberFields) (bool, error) {
	if err := tx.SavePoint(memberSavePoint).Error; err != nil {
		return false, fmt.Errorf("savepoint: %w", err)
	}
	created, err := upsertMember(tx, email, f)
	if err != nil {
		if rbErr := tx.RollbackTo(memberSavePoint).Error; rbErr != nil {
			return false, fmt.Errorf("rollback to savepoint: %w", rbErr)
		}
		return false, err
	}
	return created, nil
}

func upsertMember(tx *gorm.DB, email string, f memberFields) (bool, error) {
	var m model.Member
	err := tx.Preload("Profile").Where("email = ?", model.NormalizeEmail(email)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m = *model.NewMember(email, false)
		f.apply(&m)
		return true, createMember(tx, &m)
	}
	if err != nil {
		return false, fmt.Errorf("find member: %w", err)
	}
	f.apply(&m)
	return false, saveMember(tx, &m)
}

// --- transactions ---

type TransactionImport struct {
	excluded idSet
}

func (*TransactionImport) Category() importer.Category { return importer.CategoryTransactions }

var errNoOwner = errors.New("no matching member")

// Apply replaces the whole ledger with the batch.
func (t *TransactionImport) Apply(ctx context.Context, tx *gorm.DB, rows []importer.Row) (*ImportResult, error) {
	if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Transaction{}).Error; err != nil {
		return nil, fmt.Errorf("clear transactions: %w", err)
	}

	res := &ImportResult{}
	owners := &ownerResolver{tx: tx, cache: map[string]uint{}}
	for _, row := range rows {
		userID := row.Get(importer.FieldUserID)
		if t.excluded.has(userID) {
			res.skip(row.Line, "excluded account %s", userID)
			continue
		}

		txn, err := transactionFromRow(row)
		if err != nil {
			res.skip(row.Line, "%v", err)
			continue
		}

		memberID, err := owners.resolve(userID)
		if errors.Is(err, errNoOwner) {
			logger.Warn("import: unmatched transaction owner", "line", row.Line, "user_id", userID)
			res.skip(row.Line, "no member matches %q", userID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.Line, err)
		}
		txn.MemberID = memberID

		created, err := upsertTransaction(tx, txn)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.Line, err)
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

func transactionFromRow(row importer.Row) (model.Transaction, error) {
	var txn model.Transaction

	entityID, err := strconv.ParseUint(row.Get(importer.FieldEntityID), 10, 64)
	if err != nil {
		return txn, fmt.Errorf("invalid entity id %q", row.Get(importer.FieldEntityID))
	}
	if raw := row.Get(importer.FieldDocumentID); raw != "" {
		if txn.DocumentID, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return txn, fmt.Errorf("invalid document id %q", raw)
		}
	}
	date, err := importer.ParseDate(row.Get(importer.FieldDate))
	if err != nil {
		return txn, err
	}
	if date == nil {
		return txn, errors.New("missing date")
	}
	amount, err := transactionAmount(row)
	if err != nil {
		return txn, err
	}

	txn.EntityID = entityID
	txn.Title = row.Get(importer.FieldTitle)
	txn.Amount = amount
	txn.EventDate = *date
	txn.IsDeleted = false
	return txn, nil
}

// transactionAmount is +credit, else -debit, else null.
func transactionAmount(row importer.Row) (decimal.NullDecimal, error) {
	if raw := row.Get(importer.FieldCredit); raw != "" {
		return importer.ParseAmount(raw)
	}
	if raw := row.Get(importer.FieldDebit); raw != "" {
		debit, err := importer.ParseAmount(raw)
		return negate(debit), err
	}
	return decimal.NullDecimal{}, nil
}

func upsertTransaction(tx *gorm.DB, txn model.Transaction) (bool, error) {
	var existing model.Transaction
	err := tx.Where("entity_id = ?", txn.EntityID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := tx.Create(&txn).Error; err != nil {
			return false, fmt.Errorf("create transaction %d: %w", txn.EntityID, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("find transaction %d: %w", txn.EntityID, err)
	}
	txn.ImportedAt = existing.ImportedAt
	if err := tx.Save(&txn).Error; err != nil {
		return false, fmt.Errorf("update transaction %d: %w", txn.EntityID, err)
	}
	return false, nil
}

// likeEscaper makes LIKE wildcards in ledger labels match literally, with
// '!' as the escape character.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ownerResolver maps a ledger user_id to a member id. Numeric ids are
// external contact ids; anything else is a "LAST - First" label.
type ownerResolver struct {
	tx    *gorm.DB
	cache map[string]uint
}

func (o *ownerResolver) resolve(userID string) (uint, error) {
	if id, ok := o.cache[userID]; ok {
		return id, nil
	}
	id, err := o.lookup(userID)
	if err != nil {
		return 0, err
	}
	o.cache[userID] = id
	return id, nil
}

func (o *ownerResolver) lookup(userID string) (uint, error) {
	if importer.IsNumeric(userID) {
		var p model.ExternalProfile
		err := o.tx.Where("contact_id = ?", userID).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errNoOwner
		}
		if err != nil {
			return 0, fmt.Errorf("find contact %s: %w", userID, err)
		}
		return p.MemberID, nil
	}

	last, first, ok := strings.Cut(userID, " - ")
	last, first = strings.TrimSpace(last), strings.TrimSpace(first)
	if !ok || last == "" || first == "" {
		return 0, errNoOwner
	}
	var m model.Member
	err := o.tx.
		Where("LOWER(first_name) LIKE ? ESCAPE '!' AND LOWER(last_name) LIKE ? ESCAPE '!'",
			likeEscaper.Replace(strings.ToLower(first))+"%", "%"+likeEscaper.Replace(strings.ToLower(last))).
		Order("id").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, errNoOwner
	}
	if err != nil {
		return 0, fmt.Errorf("find member %q: %w", userID, err)
	}
	return m.ID, nil
}

// --- balances ---

// BalanceImport only updates existing profiles; an unknown contact aborts
// the batch since this mode never creates members.
type BalanceImport struct {
	excluded idSet
}

func (*BalanceImport) Category() importer.Category { return importer.CategoryBalances }

func (b *BalanceImport) Apply(ctx context.Context, tx *gorm.DB, rows []importer.Row) (*ImportResult, error) {
	res := &ImportResult{}
	for _, row := range rows {
		id := row.Get(importer.FieldContactID)
		if b.excluded.has(id) {
			res.skip(row.Line, "excluded account %s", id)
			continue
		}
		if !importer.IsNumeric(id) {
			res.skip(row.Line, "non-numeric id %q", id)
			continue
		}
		start, err := importer.ParseAmount(row.Get(importer.FieldStartBalance))
		if err != nil {
			res.skip(row.Line, "%v", err)
			continue
		}
		end, err := importer.ParseAmount(row.Get(importer.FieldEndBalance))
		if err != nil {
			res.skip(row.Line, "%v", err)
			continue
		}

		var p model.ExternalProfile
		err = tx.Where("contact_id = ?", id).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("line %d: contact %s: %w", row.Line, id, ErrMemberNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: find contact %s: %w", row.Line, id, err)
		}

		// The export is from the club's side; balances are stored from the member's.
		p.InitialAmount = negate(start)
		p.CurrentAmount = negate(end)
		if err := tx.Save(&p).Error; err != nil {
			return nil, fmt.Errorf("line %d: save profile: %w", row.Line, err)
		}
		res.Updated++
	}
	return res, nil
}

func negate(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(d.Decimal.Neg())
}

type idSet map[string]struct{}

func newIDSet(ids ...string) idSet {
	return idSet{}.with(ids...)
}

func (s idSet) with(ids ...string) idSet {
	out := make(idSet, len(s)+len(ids))
	for id := range s {
		out[id] = struct{}{}
	}
	for _, id := range ids {
		out[strings.TrimSpace(id)] = struct{}{}
	}
	return out
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}
