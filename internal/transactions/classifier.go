package transactions

import (
	"strings"

	"golang.org/x/text/cases"
)

// Bucket is the expense category a transaction label maps to.
type Bucket string

const (
	// BucketCommission covers marketplace commission, acquiring and payment fees.
	BucketCommission Bucket = "commission"
	// BucketLogistics covers delivery, fulfilment and shipment processing.
	BucketLogistics Bucket = "logistics"
	// BucketReturns covers return and refund charges.
	BucketReturns Bucket = "returns"
	// BucketOther is everything the keyword lists do not recognise.
	BucketOther Bucket = "other"
)

// Classifier maps a free-text transaction-type label to a Bucket.
type Classifier interface {
	Classify(label string) Bucket
}

// Labels are vendor-supplied free text in Russian or English, and the
// lists below are a living dictionary, not a validated enum. Buckets are
// tested in a fixed priority order; the first match wins, so a label like
// "commission refund" lands in commission, not returns.
var (
	commissionKeywords = []string{
		"commission", "fee", "acquiring",
		"комисси", "эквайринг", "вознагражден", "оплата приема платежа",
	}
	logisticsKeywords = []string{
		"delivery", "shipping", "logistics", "fulfillment",
		"логистик", "доставк", "магистрал", "фулфилмент", "обработка отправлен",
	}
	returnsKeywords = []string{
		"return", "refund",
		"возврат",
	}
)

// KeywordClassifier implements Classifier with substring matching on
// case-folded labels.
type KeywordClassifier struct {
	folder cases.Caser
}

// NewKeywordClassifier constructs the default classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{folder: cases.Fold()}
}

// Classify resolves a label into a bucket. Unmatched labels fall into
// BucketOther and are summed separately by the aggregator.
func (c *KeywordClassifier) Classify(label string) Bucket {
	folded := c.folder.String(strings.TrimSpace(label))
	switch {
	case containsAny(folded, commissionKeywords):
		return BucketCommission
	case containsAny(folded, logisticsKeywords):
		return BucketLogistics
	case containsAny(folded, returnsKeywords):
		return BucketReturns
	default:
		return BucketOther
	}
}

func containsAny(label string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(label, kw) {
			return true
		}
	}
	return false
}
