package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	assert.Equal(t, "daily-pro", Make("Daily Pro"))
	assert.Equal(t, "voice-agent-v2", Make("  Voice Agent (v2)! "))
	assert.Equal(t, "a-b", Make("a---b"))
}

func TestMakeEmptyFallsBackToRandom(t *testing.T) {
	got := Make("   !!! ")
	assert.True(t, strings.HasPrefix(got, "item-"))
	assert.NotEqual(t, got, Make(""))
}
