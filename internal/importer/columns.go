package importer

import (
	"errors"
	"fmt"
	"strings"
)

type Category string

const (
	CategoryMembers      Category = "Members"
	CategoryTransactions Category = "Transactions"
	CategoryBalances     Category = "Balances"
)

var ErrCategory = errors.New("unknown file category")

// ParseCategory accepts the form value sent with an upload. "Operations" is
// the label older forms used for transaction ledgers.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "members":
		return CategoryMembers, nil
	case "transactions", "operations":
		return CategoryTransactions, nil
	case "balances":
		return CategoryBalances, nil
	}
	return "", fmt.Errorf("%w: %q", ErrCategory, s)
}

func (c Category) Extensions() []string {
	switch c {
	case CategoryTransactions:
		return []string{".csv", ".json"}
	case CategoryMembers, CategoryBalances:
		return []string{".csv", ".xlsx"}
	}
	return nil
}

// Field names used by the reconciliation code, independent of export headers.
const (
	FieldEmail     = "email"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldGender    = "gender"
	FieldMobile    = "mobile_phone"
	FieldLandline  = "landline_phone"
	FieldBirthDate = "date_of_birth"
	FieldContactID = "contact_id"
	FieldStatus    = "member_status"
	FieldAided     = "aided_membership"
	FieldDetailURL = "detail_url"

	FieldStartBalance = "start_balance"
	FieldEndBalance   = "end_balance"

	FieldEntityID   = "entity_id"
	FieldUserID     = "user_id"
	FieldDate       = "date"
	FieldDocumentID = "document_id"
	FieldTitle      = "title"
	FieldDebit      = "debit"
	FieldCredit     = "credit"
)

// Column maps one export header to a field.
type Column struct {
	Header   string
	Field    string
	Required bool
}

type Columns []Column

// MemberColumns is the member roster export layout.
var MemberColumns = Columns{
	{Header: "Email", Field: FieldEmail, Required: true},
	{Header: "Prénom", Field: FieldFirstName},
	{Header: "Nom", Field: FieldLastName},
	{Header: "Sexe", Field: FieldGender},
	{Header: "Téléphone mobile", Field: FieldMobile},
	{Header: "Téléphone fixe", Field: FieldLandline},
	{Header: "Date de naissance", Field: FieldBirthDate},
	{Header: "ID du contact", Field: FieldContactID},
	{Header: "Statut d'adhésion", Field: FieldStatus},
	{Header: "Adhésions annuelles aidées", Field: FieldAided},
	{Header: "URL de la fiche", Field: FieldDetailURL},
}

// BalanceColumns is the contact balance export layout.
var BalanceColumns = Columns{
	{Header: "ID", Field: FieldContactID, Required: true},
	{Header: "Solde début de période", Field: FieldStartBalance, Required: true},
	{Header: "Solde fin de période", Field: FieldEndBalance, Required: true},
}

// TransactionKeys is the general ledger export layout. Required keys are
// checked per record, a record missing one is rejected on its own.
var TransactionKeys = Columns{
	{Header: "entity_id", Field: FieldEntityID, Required: true},
	{Header: "user_id", Field: FieldUserID, Required: true},
	{Header: "Date", Field: FieldDate, Required: true},
	{Header: "N° pièce", Field: FieldDocumentID},
	{Header: "Libellé", Field: FieldTitle},
	{Header: "Débit", Field: FieldDebit},
	{Header: "Crédit", Field: FieldCredit},
}

func (c Category) columns() Columns {
	switch c {
	case CategoryMembers:
		return MemberColumns
	case CategoryBalances:
		return BalanceColumns
	case CategoryTransactions:
		return TransactionKeys
	}
	return nil
}

// MissingColumnsError reports required headers absent from a file.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required column(s): " + strings.Join(e.Columns, ", ")
}

// index resolves each known header to its position in the file header row.
func (cols Columns) index(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[normalizeHeader(h)] = i
	}
	idx := make(map[string]int, len(cols))
	var missing []string
	for _, c := range cols {
		i, ok := pos[normalizeHeader(c.Header)]
		if !ok {
			if c.Required {
				missing = append(missing, c.Header)
			}
			continue
		}
		idx[c.Field] = i
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	return idx, nil
}

func (cols Columns) byHeader() map[string]Column {
	m := make(map[string]Column, len(cols))
	for _, c := range cols {
		m[normalizeHeader(c.Header)] = c
	}
	return m
}

func normalizeHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}
