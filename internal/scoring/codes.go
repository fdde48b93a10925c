package scoring

import (
	"context"
	"strconv"
	"strings"

	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/dvloznov/fraud-scoring/internal/logger"
)

// DefaultPaymentCode is the code of the most common payment method (swipe).
const DefaultPaymentCode = 1

// paymentCodes is the fixed payment enumeration. Both the short labels and
// the labels stored in the ledger's use_chip column are accepted, matched
// exactly.
var paymentCodes = map[string]int{
	"swipe":              1,
	"chip":               2,
	"online":             3,
	"Swipe Transaction":  1,
	"Chip Transaction":   2,
	"Online Transaction": 3,
}

// CodeResolver turns categorical labels into the numeric codes the model
// was trained on.
type CodeResolver struct {
	lookup             domain.CategoryLookup
	defaultPaymentCode int
}

// NewCodeResolver creates a resolver over the category code table.
func NewCodeResolver(lookup domain.CategoryLookup, defaultPaymentCode int) *CodeResolver {
	return &CodeResolver{
		lookup:             lookup,
		defaultPaymentCode: defaultPaymentCode,
	}
}

// ResolvePaymentCode maps a payment label to its code, or the default code
// when the label is absent or unknown.
func (r *CodeResolver) ResolvePaymentCode(label string) int {
	if code, ok := paymentCodes[label]; ok {
		return code
	}
	return r.defaultPaymentCode
}

// ResolveMCC returns the simplified merchant code (raw code mod 100) of a
// category, or 0 when the category is absent, unknown or has no numeric
// code. It never fails; lookup errors are logged and resolve to 0.
func (r *CodeResolver) ResolveMCC(ctx context.Context, category string) int {
	mcc, _ := r.resolveMCC(ctx, category)
	return mcc
}

// resolveMCC also reports whether the category carried a usable code.
func (r *CodeResolver) resolveMCC(ctx context.Context, category string) (int, bool) {
	if category == "" || r.lookup == nil {
		return 0, false
	}

	raw, found, err := r.lookup.LookupMCCCode(ctx, category)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Debug().Err(err).Str("category", category).Msg("MCC lookup failed, using 0")
		return 0, false
	}
	if !found {
		return 0, false
	}
	return simplifyMCC(raw)
}

// CategoriesForMCC lists the category names whose code simplifies to
// mccSimple.
func (r *CodeResolver) CategoriesForMCC(ctx context.Context, mccSimple int) ([]string, error) {
	if r.lookup == nil {
		return nil, nil
	}
	codes, err := r.lookup.ListCategoryCodes(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, c := range codes {
		if mcc, ok := simplifyMCC(c.MCCCode); ok && mcc == mccSimple {
			names = append(names, c.Name)
		}
	}
	return names, nil
}

// simplifyMCC parses a raw code and reduces it to [0, 99].
func simplifyMCC(raw string) (int, bool) {
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	mcc := code % 100
	if mcc < 0 {
		mcc = -mcc
	}
	return mcc, true
}
