package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayout_Labels(t *testing.T) {
	labels := DefaultLayout.Labels()
	assert.Len(t, labels, 90)
	assert.Equal(t, "A1", labels[0])
	assert.Equal(t, "J9", labels[len(labels)-1])
}

func TestLayout_Contains(t *testing.T) {
	l := Layout{Rows: "AB", PerRow: 12}
	assert.True(t, l.Contains("A1"))
	assert.True(t, l.Contains("B12"))
	assert.False(t, l.Contains("B13"))
	assert.False(t, l.Contains("C1"))
	assert.False(t, l.Contains("A"))
	assert.False(t, l.Contains("A01"))
	assert.False(t, l.Contains("a1"))
}

func TestLayout_NormalizeTrimsAndKeepsOrder(t *testing.T) {
	got, err := DefaultLayout.normalize([]string{" C3", "A1 "})
	assert.NoError(t, err)
	assert.Equal(t, []string{"C3", "A1"}, got)
}
