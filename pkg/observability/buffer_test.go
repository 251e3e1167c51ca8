package observability

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogBuffer_EvictsOldest(t *testing.T) {
	b := NewLogBuffer(10)
	for i := 1; i <= 11; i++ {
		b.Append(fmt.Sprintf("line %d", i))
	}

	lines := b.Lines()
	assert.Len(t, lines, 10)
	assert.Equal(t, "line 2", lines[0])
	assert.Equal(t, "line 11", lines[9])
}

func TestLogBuffer_PartiallyFilled(t *testing.T) {
	b := NewLogBuffer(3)
	assert.Empty(t, b.Lines())

	b.Append("a")
	b.Append("b")
	assert.Equal(t, []string{"a", "b"}, b.Lines())
	assert.Equal(t, 2, b.Len())
}

func TestLogBuffer_DefaultSize(t *testing.T) {
	b := NewLogBuffer(0)
	for i := 0; i < 25; i++ {
		b.Append("x")
	}
	assert.Equal(t, DefaultHistorySize, b.Len())
}
