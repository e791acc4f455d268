package xtest

import (
	"encoding/json"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

// jsonRawMessageComparer compares raw JSON semantically, so key order
// and whitespace differences do not fail a test.
func jsonRawMessageComparer(x, y json.RawMessage) bool {
	if len(x) == 0 && len(y) == 0 {
		return true
	}

	if len(x) == 0 || len(y) == 0 {
		return false
	}

	var xVal, yVal any
	if err := json.Unmarshal(x, &xVal); err != nil {
		return false
	}

	if err := json.Unmarshal(y, &yVal); err != nil {
		return false
	}

	return cmp.Equal(xVal, yVal)
}

// DecimalComparer compares decimals by value: 10.50 equals 10.5.
var DecimalComparer = cmp.Comparer(func(x, y decimal.Decimal) bool {
	return x.Equal(y)
})

// TimeComparer compares instants regardless of location, so a UTC value
// read back from the database matches the local value that produced it.
var TimeComparer = cmp.Comparer(func(x, y time.Time) bool {
	return x.Equal(y)
})

func nilString(x *string) string {
	if x == nil {
		return ""
	}

	return *x
}

// Equal compares a and b semantically: decimals by value, times by
// instant, raw JSON structurally, nil string pointers as empty.
func Equal(a, b any, opts ...cmp.Option) bool {
	allOpts := append(opts,
		DecimalComparer,
		TimeComparer,
		cmp.Transformer("", nilString),
		cmp.Comparer(jsonRawMessageComparer))

	return cmp.Equal(a, b, allOpts...)
}

// Diff reports the differences between a and b under the same options
// as Equal, for test failure messages.
func Diff(a, b any, opts ...cmp.Option) string {
	allOpts := append(opts,
		DecimalComparer,
		TimeComparer,
		cmp.Transformer("", nilString),
		cmp.Comparer(jsonRawMessageComparer))

	return cmp.Diff(a, b, allOpts...)
}
