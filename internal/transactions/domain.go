package transactions

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one marketplace-reported financial event: a fee,
// commission, logistics charge or adjustment. Amount is signed, negative
// for outflows. TypeLabel is free text supplied by the marketplace; no
// marketplace exposes a closed taxonomy, so categorisation happens
// post-hoc in the classifier.
type Transaction struct {
	ID          int64
	ClientID    int64
	Marketplace string
	ExternalID  string
	TypeLabel   string
	Amount      decimal.Decimal
	Date        time.Time
	CreatedAt   time.Time
}
