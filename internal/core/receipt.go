package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SuggestReceiptNo proposes a receipt number for the collection form:
// "RCP" + the date + a random suffix. The number stays client supplied and
// is only checked for uniqueness when the payment is recorded.
func SuggestReceiptNo(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "RCP" + now.Format("20060102") + "-" + suffix
}
