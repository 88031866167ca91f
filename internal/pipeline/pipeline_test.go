package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cdr-insight/internal/config"
	"github.com/sells-group/cdr-insight/internal/model"
	"github.com/sells-group/cdr-insight/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			Timezone:        "UTC",
			InsertChunkSize: 100,
			MaxErrorSamples: 10,
			FileConcurrency: 2,
		},
		Dedupe: config.DedupeConfig{
			TimestampToleranceSecs: 1,
			DurationToleranceSecs:  1,
			AdvisoryWindowSecs:     5,
		},
		Enrich: config.EnrichConfig{
			BurstGapMinutes:  5,
			BaselineFraction: 0.7,
		},
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	p, err := New(testConfig(), st)
	require.NoError(t, err)
	return p, st
}

const sampleCSV = `Subscriber Report
A Party,B Party,Date & Time,Duration,Call Type
919812345678,919898989898,25/03/2024 10:00:00,60,OUT
919812345678,919898989898,25/03/2024 10:00:00,60,OUT
919812345678,919777777777,25/03/2024 11:00:00,120,IN
919812345678,919898989898,26/03/2024 09:00:00,30,SMS OUT
,,25/03/2024 12:00:00,10,OUT
919812345678,919898989898,garbage,10,OUT
`

func TestRun_EndToEnd(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	summary, err := p.Run(ctx, "up-1", "test batch", []File{
		{Name: "export.csv", Data: []byte(sampleCSV)},
	})
	require.NoError(t, err)

	assert.Equal(t, 6, summary.TotalProcessed)
	assert.Equal(t, 2, summary.Invalid)    // missing parties, bad timestamp
	assert.Equal(t, 1, summary.Duplicates) // the repeated first row
	assert.Equal(t, 4, summary.Inserted)   // duplicates persist flagged
	require.Len(t, summary.Errors, 2)
	assert.Equal(t, 7, summary.Errors[0].RowNumber)

	upload, err := st.GetUpload(ctx, "up-1")
	require.NoError(t, err)
	assert.Equal(t, "test batch", upload.Label)
	assert.Equal(t, 4, upload.Inserted)
	assert.Equal(t, 1, upload.Duplicates)

	stored, err := st.EventSummary(ctx, store.EventFilter{UploadID: "up-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Total) // aggregates exclude the flagged duplicate
	assert.Equal(t, 1, stored.Duplicates)
	assert.Equal(t, 1, stored.ByEventType["sms"])
	assert.Equal(t, 1, stored.ByDirection["incoming"])
}

func TestRun_MultipleFilesCrossFileDedupe(t *testing.T) {
	p, _ := newTestPipeline(t)

	row := "A Party,B Party,Date & Time,Duration,Call Type\n" +
		"919812345678,919898989898,25/03/2024 10:00:00,60,OUT\n"

	summary, err := p.Run(context.Background(), "up-1", "", []File{
		{Name: "a.csv", Data: []byte(row)},
		{Name: "b.csv", Data: []byte(row)},
	})
	require.NoError(t, err)

	// The same record arriving in two files still collapses.
	assert.Equal(t, 2, summary.TotalProcessed)
	assert.Equal(t, 1, summary.Duplicates)
	require.Len(t, summary.Files, 2)
}

func TestRun_UnsupportedFileSurfacesError(t *testing.T) {
	p, _ := newTestPipeline(t)

	summary, err := p.Run(context.Background(), "up-1", "", []File{
		{Name: "records.pdf", Data: []byte("binary")},
	})
	require.NoError(t, err)
	assert.Zero(t, summary.Inserted)
	require.NotEmpty(t, summary.Errors)
	assert.Contains(t, summary.Errors[0].Reason, "unsupported file type")
}

func TestRun_BlankRowsNotCounted(t *testing.T) {
	p, _ := newTestPipeline(t)

	// A row of empty cells is a blank placeholder, not an invalid record.
	csv := "A Party,B Party,Date & Time,Duration,Call Type\n" +
		"919812345678,919898989898,25/03/2024 10:00:00,60,OUT\n" +
		",,,,\n" +
		"919812345678,919777777777,garbage,30,OUT\n"

	summary, err := p.Run(context.Background(), "up-1", "", []File{
		{Name: "a.csv", Data: []byte(csv)},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalProcessed)
	assert.Equal(t, 1, summary.Invalid)
	require.Len(t, summary.Errors, 1)
	// Row numbering still points at the true source row past the blank.
	assert.Equal(t, 4, summary.Errors[0].RowNumber)
}

func TestRun_NoFiles(t *testing.T) {
	p, _ := newTestPipeline(t)
	_, err := p.Run(context.Background(), "up-1", "", nil)
	assert.Error(t, err)
}

func TestRun_EnrichmentPersisted(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Run(ctx, "up-1", "", []File{
		{Name: "export.csv", Data: []byte(sampleCSV)},
	})
	require.NoError(t, err)

	nodes, err := st.NodeAggregates(ctx, store.EventFilter{UploadID: "up-1"})
	require.NoError(t, err)
	// 919812345678 appears in all three surviving events.
	var target *model.NodeAggregate
	for i := range nodes {
		if nodes[i].ID == "919812345678" {
			target = &nodes[i]
		}
	}
	require.NotNil(t, target)
	assert.Equal(t, 3, target.TotalEvents)
}
