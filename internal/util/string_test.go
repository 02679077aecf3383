package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func identityPerm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestSample(t *testing.T) {
	items := []string{"原敬", "菅義偉", "吉田茂"}

	assert.Equal(t, []string{"原敬", "菅義偉"}, Sample(items, 2, identityPerm))
	assert.Equal(t, items, Sample(items, 10, identityPerm))
	assert.Empty(t, Sample(items, 0, identityPerm))
	assert.Empty(t, Sample(items, -1, identityPerm))
	assert.Empty(t, Sample(nil, 3, identityPerm))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "小泉純一郎", TruncateString("小泉純一郎", 5))
	assert.Equal(t, "小泉...", TruncateString("小泉純一郎", 2))
}
