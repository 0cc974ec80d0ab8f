package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeuristicTitle(t *testing.T) {
	text := "\n\nUltrafast Fiber Lasers\nA. Author and B. Author\n\nAbstract ..."
	require.Equal(t, "Ultrafast Fiber Lasers", heuristicTitle(text))
	require.Equal(t, "", heuristicTitle("  \n \n"))
}

func TestHeuristicAbstract(t *testing.T) {
	text := `A Title

Abstract: We demonstrate a compact mode-locked laser producing 50 fs pulses.
The design avoids free-space alignment entirely.

1. Introduction
Fiber lasers are widely used.`
	got := heuristicAbstract(text)
	require.Contains(t, got, "We demonstrate a compact mode-locked laser")
	require.NotContains(t, got, "widely used")
}

func TestHeuristicAbstractMissing(t *testing.T) {
	require.Equal(t, "", heuristicAbstract("no marker anywhere in this text"))
}

func TestCaptionPattern(t *testing.T) {
	text := "Some body text.\n\nFigure 2: Schematic of the laser cavity with a saturable absorber.\n\nMore text."
	m := captionPattern.FindStringSubmatch(text)
	require.NotNil(t, m)
	require.Equal(t, "2", m[2])
	require.Contains(t, m[3], "Schematic of the laser cavity")
}

func TestTextCacheRoundTrip(t *testing.T) {
	cache := NewTextCache(t.TempDir())

	_, ok, err := cache.Get("deadbeef")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Put("deadbeef", "extracted text"))

	got, ok, err := cache.Get("deadbeef")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "extracted text", got)
}
