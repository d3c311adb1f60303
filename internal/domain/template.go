package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Template is a procedure catalog entry: the documents an authority requires
// and how long the procedure usually takes. Templates are seeded at startup
// and never mutated afterwards.
type Template struct {
	ID                string
	Name              string
	Authority         string
	RequiredDocuments []string
	EstimatedDays     int
	BaseCost          *decimal.Decimal
}

// AuthorityTag is the tag stamped on processes generated from the template.
func (t *Template) AuthorityTag() string {
	return strings.ToLower(strings.TrimSpace(t.Authority))
}
