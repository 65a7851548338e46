package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateConfigWritesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.ini")

	cfg, justCreated, err := loadOrCreateConfig(path)
	require.NoError(t, err)
	assert.True(t, justCreated)
	assert.Equal(t, defaultDemoConfig(), cfg)
	assert.FileExists(t, path)
}

func TestLoadOrCreateConfigReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.ini")
	_, _, err := loadOrCreateConfig(path)
	require.NoError(t, err)

	cfg, justCreated, err := loadOrCreateConfig(path)
	require.NoError(t, err)
	assert.False(t, justCreated)
	assert.Equal(t, defaultDemoConfig(), cfg)
}

func TestPromptYesNoReturnsFalseOnEOF(t *testing.T) {
	_, ok := promptYesNo(strings.NewReader(""))
	assert.False(t, ok)
}

func TestPromptYesNoParsesYes(t *testing.T) {
	answer, ok := promptYesNo(strings.NewReader("y\n"))
	require.True(t, ok)
	assert.True(t, answer)
}

func TestPromptYesNoDefaultsNoOnOtherInput(t *testing.T) {
	answer, ok := promptYesNo(strings.NewReader("whatever\n"))
	require.True(t, ok)
	assert.False(t, answer)
}

func TestRunExits301WhenConfigJustCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.ini")
	code := run(path, strings.NewReader(""))
	assert.Equal(t, exitConfigJustCreated, code)
}

func TestRunExits200OnPromptEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.ini")
	_, _, err := loadOrCreateConfig(path)
	require.NoError(t, err)

	code := run(path, strings.NewReader(""))
	assert.Equal(t, exitPromptEOF, code)
}

func TestRunSucceedsAndPrintsReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.ini")
	_, _, err := loadOrCreateConfig(path)
	require.NoError(t, err)

	code := run(path, strings.NewReader("y\n"))
	assert.Equal(t, 0, code)
}

