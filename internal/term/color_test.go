package term

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestStatus_NoColor(t *testing.T) {
	prev := color.NoColor
	t.Cleanup(func() { color.NoColor = prev })

	SetNoColor(true)

	assert.Equal(t, "OK", Status(true))
	assert.Equal(t, "FAILED", Status(false))
	assert.Equal(t, "SKIPPED", Skipped())
	assert.Equal(t, "lint", Highlight("lint"))
}

func TestStatus_Color(t *testing.T) {
	prev := color.NoColor
	t.Cleanup(func() { color.NoColor = prev })

	SetNoColor(false)

	assert.Contains(t, Status(true), "OK")
	assert.NotEqual(t, "OK", Status(true), "expected ANSI escape codes")
}
