package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cdr-insight/internal/model"
)

func TestMapHeader_ExactBeatsSubstring(t *testing.T) {
	n := New(DefaultTables())
	mapper := n.MapHeader([]string{"B Party No", "Calling Party Telephone Number", "Date & Time", "Dur(s)", "Call Type"})

	rec, err := mapper.Record([]string{"919898989898", "919812345678", "01/02/2024 10:00:00", "60", "OUT"}, model.Source{}, false)
	require.NoError(t, err)
	assert.Equal(t, "919812345678", rec.AParty)
	assert.Equal(t, "919898989898", rec.BParty)
	assert.Equal(t, 60, rec.DurationSec)
}

func TestMapHeader_FirstClaimWins(t *testing.T) {
	n := New(DefaultTables())
	// Two columns both resolve to a_party; the first must keep the claim.
	mapper := n.MapHeader([]string{"A Party", "Calling Number", "Date & Time"})

	rec, err := mapper.Record([]string{"919812345678", "919999999999", "01/02/2024 10:00:00"}, model.Source{}, false)
	require.NoError(t, err)
	assert.Equal(t, "919812345678", rec.AParty)
}

func TestMapHeader_HasTimestamp(t *testing.T) {
	n := New(DefaultTables())
	assert.True(t, n.MapHeader([]string{"A Party", "Date & Time"}).HasTimestamp())
	assert.True(t, n.MapHeader([]string{"A Party", "Date", "Time"}).HasTimestamp())
	assert.False(t, n.MapHeader([]string{"A Party", "B Party"}).HasTimestamp())
}

func TestRecord_SeparateDateAndTime(t *testing.T) {
	n := New(DefaultTables())
	mapper := n.MapHeader([]string{"A Party", "B Party", "Date", "Time"})

	rec, err := mapper.Record([]string{"919812345678", "919898989898", "25/03/2024", "14:30:00"}, model.Source{}, false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 25, 14, 30, 0, 0, time.UTC), rec.StartTime)
	assert.False(t, rec.StartHasTZ)
}

func TestRecord_MissingStartTime(t *testing.T) {
	n := New(DefaultTables())
	mapper := n.MapHeader([]string{"A Party", "B Party", "Date & Time"})

	_, err := mapper.Record([]string{"919812345678", "919898989898", "garbage"}, model.Source{}, false)
	assert.ErrorIs(t, err, ErrMissingStartTime)
}

func TestRecord_MissingBothParties(t *testing.T) {
	n := New(DefaultTables())
	mapper := n.MapHeader([]string{"A Party", "B Party", "Date & Time"})

	_, err := mapper.Record([]string{"", "", "01/02/2024 10:00:00"}, model.Source{}, false)
	assert.ErrorIs(t, err, ErrMissingParties)
}

func TestRecord_OnePartyAccepted(t *testing.T) {
	n := New(DefaultTables())
	mapper := n.MapHeader([]string{"A Party", "B Party", "Date & Time"})

	rec, err := mapper.Record([]string{"919812345678", "", "01/02/2024 10:00:00"}, model.Source{}, false)
	require.NoError(t, err)
	assert.Equal(t, "919812345678", rec.AParty)
	assert.Empty(t, rec.BParty)
}

func TestRecord_DurationFromPartsWarning(t *testing.T) {
	n := New(DefaultTables())
	mapper := n.MapHeader([]string{"A Party", "B Party", "Date & Time", "Minutes", "Seconds"})

	rec, err := mapper.Record([]string{"919812345678", "919898989898", "01/02/2024 10:00:00", "1", "30"}, model.Source{}, false)
	require.NoError(t, err)
	assert.Equal(t, 90, rec.DurationSec)
	assert.Contains(t, rec.Warnings, model.WarnDurationFromParts)
}

func TestRecord_SiteCoordsFillMissing(t *testing.T) {
	n := New(DefaultTables())
	mapper := n.MapHeader([]string{"A Party", "B Party", "Date & Time", "First Cell ID Address"})

	rec, err := mapper.Record([]string{"919812345678", "919898989898", "01/02/2024 10:00:00", "Tower-12 | 28.6139 | 77.2090 | Sector 4"}, model.Source{}, false)
	require.NoError(t, err)
	assert.Equal(t, "Tower-12", rec.SiteName)
	require.NotNil(t, rec.Lat)
	require.NotNil(t, rec.Lng)
	assert.InDelta(t, 28.6139, *rec.Lat, 1e-9)
	assert.InDelta(t, 77.2090, *rec.Lng, 1e-9)
	assert.Contains(t, rec.Warnings, model.WarnSiteCoordsUsed)
}

func TestRecord_CoercedRowWarning(t *testing.T) {
	n := New(DefaultTables())
	mapper := n.MapHeader([]string{"A Party", "B Party", "Date & Time"})

	rec, err := mapper.Record([]string{"919812345678", "919898989898", "01/02/2024 10:00:00"}, model.Source{}, true)
	require.NoError(t, err)
	assert.Contains(t, rec.Warnings, model.WarnScientificNotation)
}

func TestCleanPhone(t *testing.T) {
	got, warns := CleanPhone("+91 98123-45678")
	assert.Equal(t, "919812345678", got)
	assert.Empty(t, warns)

	got, warns = CleanPhone("121")
	assert.Equal(t, "121", got)
	assert.Contains(t, warns, model.WarnShortPhoneCode)

	got, warns = CleanPhone("9.19812345678e+11")
	assert.Equal(t, "919812345678", got)
	assert.Contains(t, warns, model.WarnScientificNotation)

	got, warns = CleanPhone("")
	assert.Empty(t, got)
	assert.Empty(t, warns)
}

func TestParseSite(t *testing.T) {
	parts := ParseSite("Tower-12 | 28.6139 | 77.2090 | Sector 4 | North")
	assert.Equal(t, "Tower-12", parts.Name)
	require.NotNil(t, parts.Lat)
	assert.InDelta(t, 28.6139, *parts.Lat, 1e-9)
	assert.Equal(t, "Sector 4 | North", parts.Meta)

	bare := ParseSite("Main Street Tower")
	assert.Equal(t, "Main Street Tower", bare.Name)
	assert.Nil(t, bare.Lat)

	zero := ParseSite("Tower | 0 | 0")
	assert.Nil(t, zero.Lat)
	assert.Nil(t, zero.Lng)
}
