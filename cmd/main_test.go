package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartsAt(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	base := time.Date(2025, 6, 10, 10, 0, 0, 0, loc)

	got, err := parseStartsAt("2025-06-12T18:00", base, loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 6, 12, 18, 0, 0, 0, loc)))

	got, err = parseStartsAt("tomorrow at 6pm", base, loc)
	require.NoError(t, err)
	assert.Equal(t, 11, got.Day())
	assert.Equal(t, 18, got.Hour())

	_, err = parseStartsAt("когда-нибудь", base, loc)
	assert.Error(t, err)
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{
		{"serve"}, {"sync"}, {"migrate"},
		{"pending", "list"}, {"pending", "approve"}, {"pending", "approve-new"}, {"pending", "reject"}, {"pending", "snooze"},
		{"snapshot", "add-participant"}, {"export", "roster"}, {"token"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
