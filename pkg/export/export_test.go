package export

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset(rows int) Dataset {
	data := Dataset{
		Title:   "CS101 roster",
		Summary: []string{"Seats 1/30"},
		Headers: []string{"Student", "Status", "Registered at"},
	}
	for i := 0; i < rows; i++ {
		data.Rows = append(data.Rows, []string{fmt.Sprintf("stu-%03d", i), "REGISTERED", "2026-09-01T08:00:00Z"})
	}
	return data
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(rosterDataset(2))
	require.NoError(t, err)
	assert.Equal(t, "Student,Status,Registered at\nstu-000,REGISTERED,2026-09-01T08:00:00Z\nstu-001,REGISTERED,2026-09-01T08:00:00Z\n", string(out))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := rosterDataset(1)
	data.Rows[0] = data.Rows[0][:2]
	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRendersMultiplePages(t *testing.T) {
	out, err := NewPDFExporter().Render(rosterDataset(120))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Equal(t, "application/pdf", NewPDFExporter().ContentType())
}
