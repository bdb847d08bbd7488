package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		deletes int
		wantErr bool
	}{
		{"under limit", 5, 3, false},
		{"at limit", 5, 5, false},
		{"one over", 5, 6, true},
		{"single delete allowed", 1, 1, false},
		{"cascade refused", 1, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQuotaEnforcer(tt.limit)
			var err error
			for range tt.deletes {
				err = q.Check("flow-1")
			}
			assert.Equal(t, tt.deletes, q.Deletes())
			assert.Equal(t, tt.limit, q.Limit())
			if tt.wantErr {
				var qe *QuotaExceededError
				require.ErrorAs(t, err, &qe)
				assert.Equal(t, &QuotaExceededError{FlowToken: "flow-1", Deletes: tt.deletes, Limit: tt.limit}, qe)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuotaEnforcer_StaysExceeded(t *testing.T) {
	q := NewQuotaEnforcer(1)
	require.NoError(t, q.Check("f"))
	require.Error(t, q.Check("f"))
	assert.Error(t, q.Check("f"))
}

func TestQuotaExceededError(t *testing.T) {
	err := &QuotaExceededError{FlowToken: "flow-abc", Deletes: 1001, Limit: 1000}
	assert.Equal(t, "flow flow-abc exceeded delete quota: 1001 deletes > 1000 limit", err.Error())

	assert.True(t, IsQuotaError(err))
	assert.True(t, IsQuotaError(fmt.Errorf("delete node/2: %w", err)))
	assert.False(t, IsQuotaError(nil))
	assert.False(t, IsQuotaError(assert.AnError))
}
