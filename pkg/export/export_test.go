package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seatChart() Dataset {
	return Dataset{
		Headers: []string{"Seat", "Roll Number", "Name"},
		Rows: []map[string]string{
			{"Seat": "A1", "Roll Number": "R001", "Name": "Ana"},
			{"Seat": "A2", "Roll Number": "R002", "Name": "Budi, Jr"},
		},
		Summary: []string{"Hall: Main Hall"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(seatChart())
	require.NoError(t, err)
	assert.Equal(t, "Seat,Roll Number,Name\nA1,R001,Ana\nA2,R002,\"Budi, Jr\"\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(seatChart(), "Seating Chart")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}
