package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunLines(t *testing.T) {
	t.Parallel()
	var lines []string
	RunLines(strings.NewReader("reset\n\n  sync  \nr@0:2"), func(line string) {
		lines = append(lines, line)
	})
	assert.Equal(t, []string{"reset", "sync", "r@0:2"}, lines)
}
