package report

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"hotelbooking/internal/models"
)

func sample() []models.Reservation {
	deletedOn := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	return []models.Reservation{
		{
			ID: "a", RoomNumber: "101", CheckInDate: "2024-01-10", CheckOutDate: "2024-01-12",
			Status: models.StatusConfirmed, ContactName: "Ada", ContactLastName: "Lovelace",
			ContactPhone: "+100", Notes: "late arrival",
			Guests: []models.Guest{{FirstName: "Ada", LastName: "Lovelace"}, {FirstName: "Charles"}},
		},
		{
			ID: "b", RoomNumber: "102", CheckInDate: "2024-01-10", CheckOutDate: "2024-01-11",
			Status: models.StatusCancelled, ContactName: "Grace", ContactLastName: "Hopper",
			DeletedOn: &deletedOn, DeletedBy: "bob",
		},
	}
}

func TestExporter_Write(t *testing.T) {
	logger := zerolog.New(io.Discard)
	e := NewExporter(t.TempDir(), &logger)

	var buf bytes.Buffer
	require.NoError(t, e.Write(&buf, CheckIns, "Main", "2024-01-10", sample()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Check-ins")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Check-ins: Main, 2024-01-10", rows[0][0])
	assert.Equal(t, baseColumns, rows[1])
	assert.Equal(t, "Ada Lovelace, Charles", rows[2][0])
	assert.Equal(t, "101", rows[2][1])
	assert.Equal(t, "late arrival", rows[2][6])
	assert.Equal(t, "Grace Hopper", rows[3][0])
}

func TestExporter_SaveDeleted(t *testing.T) {
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()
	e := NewExporter(filepath.Join(dir, "exports"), &logger)

	path, err := e.Save(Deleted, "loc1", "Main", "2024-02-01 - 2024-02-03", sample())
	require.NoError(t, err)
	assert.Equal(t, "deleted_loc1_2024-02-01_-_2024-02-03.xlsx", filepath.Base(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Deleted reservations")
	require.NoError(t, err)
	assert.Equal(t, "Deleted On", rows[1][7])
	assert.Equal(t, "2024-02-01 09:30", rows[3][7])
	assert.Equal(t, "bob", rows[3][8])
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("checkouts")
	assert.True(t, ok)
	assert.Equal(t, CheckOuts, k)
	_, ok = ParseKind("payments")
	assert.False(t, ok)
}
