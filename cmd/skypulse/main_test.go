package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/skypulse/internal/model"
	"github.com/dharsanguruparan/skypulse/internal/session"
)

func TestProgressLine(t *testing.T) {
	snap := &session.Snapshot{Session: &model.Session{
		Status:           model.SessionProcessing,
		TotalObjects:     2000,
		CompletedObjects: 500,
	}}
	line := progressLine(snap)
	assert.Contains(t, line, "[=====               ]")
	assert.Contains(t, line, " 25.0%")
	assert.Contains(t, line, "500/2,000 objects")
	assert.True(t, strings.HasSuffix(line, "processing"))
}

func TestCollectIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.txt")
	require.NoError(t, os.WriteFile(path, []byte("HD 209458\n\nTRAPPIST-1,"), 0o600))

	ids, err := collectIDs([]string{"TIC 261136679", " "}, path, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"TIC 261136679", "HD 209458", "TRAPPIST-1"}, ids)

	_, err = collectIDs(nil, "", false)
	assert.Error(t, err)

	ids, err = collectIDs(nil, "", true)
	require.NoError(t, err)
	assert.Len(t, ids, 5)
}

func TestWriteExport(t *testing.T) {
	objects := []model.AstroObject{{ID: "o1", InputName: "TRAPPIST-1", Status: model.ObjectComplete}}

	var csvBuf bytes.Buffer
	n, err := writeExport(&csvBuf, "out.csv", objects)
	require.NoError(t, err)
	assert.Equal(t, csvBuf.Len(), n)
	assert.Contains(t, csvBuf.String(), `"TRAPPIST-1"`)

	var jsonBuf bytes.Buffer
	_, err = writeExport(&jsonBuf, "out.JSON", objects)
	require.NoError(t, err)
	assert.Contains(t, jsonBuf.String(), `"inputName": "TRAPPIST-1"`)

	var empty bytes.Buffer
	n, err = writeExport(&empty, "out.csv", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRenderObjects(t *testing.T) {
	objects := []model.AstroObject{{
		Seq:       0,
		InputName: "trappist-1",
		Status:    model.ObjectComplete,
		Enrichment: model.Enrichment{
			PrimaryName: model.Ptr("TRAPPIST-1"),
			Magnitude:   model.Ptr(11.354),
		},
	}}
	var buf bytes.Buffer
	require.NoError(t, renderObjects(&buf, objects))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "TRAPPIST-1")
	assert.Contains(t, lines[1], "11.35")
	assert.Contains(t, lines[1], "-")
}

func TestClassifyCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"classify", "Gaia DR3 4111834567779557376", "TIC 261136679", "Proxima Centauri"})
	require.NoError(t, cmd.Execute())

	got := out.String()
	assert.Contains(t, got, "GAIA")
	assert.Contains(t, got, "TIC")
	assert.Contains(t, got, "SIMBAD")
}
