package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"registration_id", "student", "start_time"},
		Rows: [][]string{
			{"reg-1", "Student One", "2026-03-10T09:00:00Z"},
			{"reg-2", "Student Two"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	content := string(payload)
	assert.Contains(t, content, "registration_id,student,start_time")
	assert.Contains(t, content, "reg-1,Student One,2026-03-10T09:00:00Z")
	// Short rows are padded to the header width.
	assert.Contains(t, content, "reg-2,Student Two,")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	payload, err := NewPDFExporter().Render(sampleDataset(), "registrations 2026-03-10")
	require.NoError(t, err)
	assert.Greater(t, len(payload), 500)
	assert.Equal(t, "%PDF", string(payload[:4]))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "")
	require.Error(t, err)
}
