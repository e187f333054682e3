package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var amountCleaner = strings.NewReplacer(
	",", ".",
	"\u202f", "",
	"\u00a0", "",
	" ", "",
	"€", "",
)

// ParseAmount reads a French-formatted amount such as "1 234,56". An empty
// value yields an invalid NullDecimal.
func ParseAmount(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(amountCleaner.Replace(s))
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid amount %q", s)
	}
	return decimal.NewNullDecimal(d.Round(2)), nil
}

const dateLayout = "2/1/2006"

// ParseDate reads a day/month/year date. An empty value yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected dd/mm/yyyy", s)
	}
	return &t, nil
}

func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
