package guard

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaleNoShape(t *testing.T) {
	no := SaleNo()
	assert.Len(t, no, 8)
	_, err := strconv.Atoi(no)
	assert.NoError(t, err, "sale number is all digits")
}

func TestSeenAndRemember(t *testing.T) {
	r := NewRecent(10)
	assert.False(t, r.Seen("12345678"))

	r.Remember("12345678")
	assert.True(t, r.Seen("12345678"))
	assert.False(t, r.Seen("87654321"))

	// Remembering twice neither errors nor double-counts.
	r.Remember("12345678")
	assert.True(t, r.Seen("12345678"))
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	r := NewRecent(3)
	for i := 0; i < 3; i++ {
		r.Remember(strconv.Itoa(i))
	}
	r.Remember("3") // pushes out "0"

	assert.False(t, r.Seen("0"))
	assert.True(t, r.Seen("1"))
	assert.True(t, r.Seen("3"))
}

func TestZeroCapacityFallsBackToDefault(t *testing.T) {
	r := NewRecent(0)
	for i := 0; i < DefaultCapacity; i++ {
		r.Remember(strconv.Itoa(i))
	}
	assert.True(t, r.Seen("0"), "nothing evicted until the default capacity is exceeded")

	r.Remember("overflow")
	assert.False(t, r.Seen("0"))
}
