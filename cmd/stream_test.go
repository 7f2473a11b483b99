package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"snowstream/pkg/errors"
)

func TestTargetTables(t *testing.T) {
	tests := []struct {
		schema     string
		wantOrders string
		wantItems  string
	}{
		{"RAW", "ORDERS", "ORDER_ITEMS"},
		{"PUBLIC", "ORDERS", "ORDER_ITEMS"},
		{"STAGING", "ORDERS_STAGING", "ORDER_ITEMS_STAGING"},
		{"staging", "ORDERS_STAGING", "ORDER_ITEMS_STAGING"},
	}

	for _, tt := range tests {
		orders, items := targetTables(tt.schema)
		assert.Equal(t, tt.wantOrders, orders, "schema %s", tt.schema)
		assert.Equal(t, tt.wantItems, items, "schema %s", tt.schema)
	}
}

func TestRunStreamRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"non-numeric orders", []string{"abc", "2"}},
		{"zero orders", []string{"0", "2"}},
		{"negative orders", []string{"-5", "2"}},
		{"non-numeric parallelism", []string{"100", "x"}},
		{"zero parallelism", []string{"100", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runStream(streamCmd, tt.args)
			assert.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))
		})
	}
}

func TestSeedRejectsBadCount(t *testing.T) {
	for _, arg := range []string{"abc", "0", "-1"} {
		err := seedCmd.RunE(seedCmd, []string{arg})
		assert.Error(t, err, "arg %s", arg)
		assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))
	}
}
