package payload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/lakeplan/types"
)

func TestDefaultMergeCombine(t *testing.T) {
	tests := []struct {
		name     string
		ordering string
		current  types.Record
		incoming types.Record
		expected types.Record
	}{
		// Larger precombine value on the incoming side replaces the stored row.
		{
			name:     "incoming newer",
			ordering: "ts",
			current:  types.Record{"id": int64(1), "ts": int64(10), "v": "old"},
			incoming: types.Record{"id": int64(1), "ts": int64(20), "v": "new"},
			expected: types.Record{"id": int64(1), "ts": int64(20), "v": "new"},
		},
		// Stale incoming rows lose to what is already stored.
		{
			name:     "incoming older",
			ordering: "ts",
			current:  types.Record{"id": int64(1), "ts": int64(30), "v": "old"},
			incoming: types.Record{"id": int64(1), "ts": int64(20), "v": "new"},
			expected: types.Record{"id": int64(1), "ts": int64(30), "v": "old"},
		},
		// Ties go to the incoming record so replays converge on the last write.
		{
			name:     "tie prefers incoming",
			ordering: "ts",
			current:  types.Record{"id": int64(1), "ts": int64(20), "v": "old"},
			incoming: types.Record{"id": int64(1), "ts": int64(20), "v": "new"},
			expected: types.Record{"id": int64(1), "ts": int64(20), "v": "new"},
		},
		// Without an ordering field every collision is last-write-wins.
		{
			name:     "no ordering field",
			current:  types.Record{"id": int64(1), "v": "old"},
			incoming: types.Record{"id": int64(1), "v": "new"},
			expected: types.Record{"id": int64(1), "v": "new"},
		},
		// Timestamp precombine columns compare chronologically.
		{
			name:     "timestamp ordering",
			ordering: "updated_at",
			current:  types.Record{"id": int64(1), "updated_at": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "v": "old"},
			incoming: types.Record{"id": int64(1), "updated_at": time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "v": "new"},
			expected: types.Record{"id": int64(1), "updated_at": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "v": "old"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			combiner, err := ForStrategy(types.PayloadDefaultMerge, tt.ordering)
			require.NoError(t, err, "unexpected error building combiner")

			survivor, err := combiner.Combine("1", tt.current, tt.incoming)
			require.NoError(t, err, "default merge should never fail")
			assert.Equal(t, tt.expected, survivor, "wrong record survived the merge")
		})
	}
}

func TestStrictRejectCombine(t *testing.T) {
	combiner, err := ForStrategy(types.PayloadStrictReject, "")
	require.NoError(t, err)

	_, err = combiner.Combine("user-7", types.Record{"id": "user-7"}, types.Record{"id": "user-7"})
	require.Error(t, err, "strict payload must fail on collision")

	var dupErr *types.DuplicateKeyError
	require.ErrorAs(t, err, &dupErr, "collision should surface as DuplicateKeyError")
	assert.Equal(t, "user-7", dupErr.Key, "error should carry the colliding key")
	assert.Contains(t, err.Error(), "duplicate key", "message should name the failure")
}

func TestForStrategyUnknown(t *testing.T) {
	_, err := ForStrategy(types.PayloadStrategy("overwrite_latest"), "")
	require.Error(t, err)

	var cfgErr *types.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr, "unknown strategy should be a configuration error")
}
