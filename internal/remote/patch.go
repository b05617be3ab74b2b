package remote

import (
	"fmt"

	"github.com/gymdesk/gymsync/internal/common"
)

// patchColumns maps the entity's JSON field names onto their wire columns.
// This is the single place the camelCase↔snake_case rename lives for partial
// updates; full rows are mapped by the explicit column lists in postgres.go.
var patchColumns = map[string]string{
	"name":             "name",
	"phone":            "phone",
	"subscriptionType": "subscription_type",
	"startDate":        "start_date",
	"endDate":          "end_date",
	"paidAmount":       "paid_amount",
	"remainingAmount":  "remaining_amount",
	"captain":          "captain",
	"isArchived":       "is_archived",
	"isPaused":         "is_paused",
	"pausedUntil":      "paused_until",
	"status":           "status",
	"updatedAt":        "updated_at",
}

// buildSetClause turns a field patch into a SQL SET clause with placeholders
// starting at $2 ($1 is reserved for the row id). Unknown keys are rejected
// rather than silently dropped. Columns are emitted in a stable order so the
// statement text is deterministic for a given key set.
func buildSetClause(patch map[string]any) (string, []any, error) {
	if len(patch) == 0 {
		return "", nil, fmt.Errorf("%w: empty patch", common.ErrValidation)
	}

	clause := ""
	args := make([]any, 0, len(patch))
	n := 2
	for _, key := range patchKeyOrder {
		val, ok := patch[key]
		if !ok {
			continue
		}
		if clause != "" {
			clause += ", "
		}
		clause += fmt.Sprintf("%s = $%d", patchColumns[key], n)
		args = append(args, val)
		n++
	}

	// anything not consumed above is an unknown key
	if len(args) != len(patch) {
		for key := range patch {
			if _, ok := patchColumns[key]; !ok {
				return "", nil, fmt.Errorf("%w: %q", common.ErrUnknownField, key)
			}
		}
	}

	return clause, args, nil
}

// patchKeyOrder fixes the emission order of SET columns.
var patchKeyOrder = []string{
	"name",
	"phone",
	"subscriptionType",
	"startDate",
	"endDate",
	"paidAmount",
	"remainingAmount",
	"captain",
	"isArchived",
	"isPaused",
	"pausedUntil",
	"status",
	"updatedAt",
}
