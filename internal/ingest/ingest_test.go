package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"newlines", "TRAPPIST-1\nTIC 261136679\n", []string{"TRAPPIST-1", "TIC 261136679"}},
		{"commas and blanks", " Proxima Centauri ,, HD 209458,\n\n", []string{"Proxima Centauri", "HD 209458"}},
		{"crlf", "A\r\nB\r\n", []string{"A", "B"}},
		{"duplicates kept", "A\nA", []string{"A", "A"}},
		{"empty", "  \n ,", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Parse(tc.in))
		})
	}
}

func TestFromFileText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(SampleIDs, ",\n")), 0o600))

	ids, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, SampleIDs, ids)
}

func TestParseCSVFirstColumn(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"header and coordinates", "name,ra,dec\nTRAPPIST-1,346.62,-5.04\nHD 209458,330.79,18.88\n",
			[]string{"TRAPPIST-1", "HD 209458"}},
		{"no header", "Proxima Centauri,217.43\nTIC 261136679,1.2\n", []string{"Proxima Centauri", "TIC 261136679"}},
		{"quoted cells with commas", "Target,Notes\n\"Gaia DR3 4111834567779557376\",\"bright, variable\"\n",
			[]string{"Gaia DR3 4111834567779557376"}},
		{"blank cells and ragged rows", "TRAPPIST-1\n,orphan\n\nHD 209458,a,b,c\n", []string{"TRAPPIST-1", "HD 209458"}},
		{"empty", "", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ids, err := ParseCSV(strings.NewReader(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids)
		})
	}
}

func TestFromReaderCSVUsesFirstColumn(t *testing.T) {
	ids, err := FromReader(strings.NewReader("name,ra,dec\nTRAPPIST-1,346.62,-5.04\n"), "targets.CSV")
	require.NoError(t, err)
	assert.Equal(t, []string{"TRAPPIST-1"}, ids)
}

func TestFromFileMissing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestFromReaderRejectsBrokenPDF(t *testing.T) {
	_, err := FromReader(strings.NewReader("definitely not a pdf"), "targets.PDF")
	assert.Error(t, err)
}
