package finance

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// staleAfter is how long a persisted lender response is served without a
// fresh round trip.
const staleAfter = 5 * time.Minute

// activeWindow is how long a pending/submitted application blocks a new
// submission for the same proposal+lender pair. Older applications are
// assumed abandoned and resubmission is allowed.
const activeWindow = 7 * 24 * time.Hour

// IsActiveDuplicate reports whether an existing application still blocks a
// new submission: only pending/submitted records younger than seven days
// count. This is a duplicate-submission guard, not a uniqueness constraint.
func IsActiveDuplicate(status ApplicationStatus, createdAt, now time.Time) bool {
	if status != StatusPending && status != StatusSubmitted {
		return false
	}
	return now.Sub(createdAt) < activeWindow
}

// IsFresh reports whether a record updated at t can still be served from
// cache.
func IsFresh(t time.Time, now time.Time) bool {
	return now.Sub(t) < staleAfter
}

// CacheAge returns the age of a cached record in whole seconds, never
// negative.
func CacheAge(t time.Time, now time.Time) int64 {
	age := now.Sub(t)
	if age < 0 {
		return 0
	}
	return int64(age.Seconds())
}

// MergeResponse merges update into prev key-wise. Keys present in update
// overwrite the same key in prev; everything else accretes. Quotes, contract
// status and milestones written by earlier call sites survive later writes
// unless explicitly rewritten under the same key.
func MergeResponse(prev datatypes.JSON, update map[string]any) (datatypes.JSON, error) {
	merged := map[string]any{}
	if len(prev) > 0 {
		if err := json.Unmarshal(prev, &merged); err != nil {
			// A corrupt prior blob must not block the new write; start over
			// but keep the raw value for the audit trail.
			merged = map[string]any{"_previous": string(prev)}
		}
	}
	for k, v := range update {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return prev, err
	}
	return datatypes.JSON(out), nil
}

// AppendQuote appends q to the response payload's quotes list, preserving
// existing entries.
func AppendQuote(prev datatypes.JSON, q map[string]any) (datatypes.JSON, error) {
	merged := map[string]any{}
	if len(prev) > 0 {
		if err := json.Unmarshal(prev, &merged); err != nil {
			merged = map[string]any{"_previous": string(prev)}
		}
	}
	quotes, _ := merged["quotes"].([]any)
	quotes = append(quotes, q)
	merged["quotes"] = quotes
	out, err := json.Marshal(merged)
	if err != nil {
		return prev, err
	}
	return datatypes.JSON(out), nil
}
