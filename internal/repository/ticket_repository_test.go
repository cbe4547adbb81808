package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdesk/craftdesk/internal/database"
	"github.com/craftdesk/craftdesk/internal/models"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTicketCRUD(t *testing.T) {
	repo := NewTicketRepository(testDB(t))

	ticket := &models.Ticket{
		Type:      models.TicketCommission,
		Serial:    1,
		GuildID:   "guild-1",
		ChannelID: "chan-1",
		AuthorID:  "user-author",
		Pending:   true,
		Fresh:     true,
	}
	require.NoError(t, repo.Create(ticket))
	require.NotEmpty(t, ticket.ID)

	got, err := repo.GetByID(ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.TicketCommission, got.Type)
	assert.True(t, got.Pending)
	assert.Empty(t, got.Deniers())

	got.Pending = false
	got.SelectedService = "logo"
	got.AddDenier("user-free")
	deadline := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	got.Deadline = &deadline
	require.NoError(t, repo.Update(got))

	got, err = repo.GetByID(ticket.ID)
	require.NoError(t, err)
	assert.False(t, got.Pending)
	assert.Equal(t, "logo", got.SelectedService)
	assert.True(t, got.HasDenied("user-free"))
	require.NotNil(t, got.Deadline)
	assert.True(t, deadline.Equal(got.Deadline.UTC()))

	byChannel, err := repo.GetByChannel("chan-1")
	require.NoError(t, err)
	require.NotNil(t, byChannel)
	assert.Equal(t, ticket.ID, byChannel.ID)

	missing, err := repo.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTicketUpdateMissingRow(t *testing.T) {
	repo := NewTicketRepository(testDB(t))
	err := repo.Update(&models.Ticket{ID: "ghost"})
	require.Error(t, err)
}

func TestTicketFindAllFilter(t *testing.T) {
	repo := NewTicketRepository(testDB(t))

	mk := func(typ models.TicketType, guildID string, closed bool) {
		require.NoError(t, repo.Create(&models.Ticket{
			Type: typ, GuildID: guildID, ChannelID: "chan-" + guildID, AuthorID: "a", Closed: closed,
		}))
	}
	mk(models.TicketCommission, "guild-1", false)
	mk(models.TicketCommission, "guild-1", true)
	mk(models.TicketSupport, "guild-1", false)
	mk(models.TicketCommission, "guild-2", false)

	typ := models.TicketCommission
	open := false
	rows, err := repo.FindAll(TicketFilter{GuildID: "guild-1", Type: &typ, Closed: &open})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = repo.FindAll(TicketFilter{GuildID: "guild-1"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = repo.FindAll(TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestNextSerialIncrementsPerGuildAndType(t *testing.T) {
	repo := NewTicketRepository(testDB(t))

	for want := 1; want <= 3; want++ {
		got, err := repo.NextSerial("guild-1", models.TicketCommission)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := repo.NextSerial("guild-1", models.TicketSupport)
	require.NoError(t, err)
	assert.Equal(t, 1, got, "types count independently")

	got, err = repo.NextSerial("guild-2", models.TicketCommission)
	require.NoError(t, err)
	assert.Equal(t, 1, got, "guilds count independently")
}

func TestNextSerialConcurrent(t *testing.T) {
	repo := NewTicketRepository(testDB(t))

	const n = 20
	serials := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := repo.NextSerial("guild-1", models.TicketCommission)
			assert.NoError(t, err)
			serials <- s
		}()
	}
	wg.Wait()
	close(serials)

	seen := make(map[int]bool)
	for s := range serials {
		assert.False(t, seen[s], "serial %d allocated twice", s)
		seen[s] = true
	}
	assert.Len(t, seen, n)
}

func TestWithDeadlineBefore(t *testing.T) {
	repo := NewTicketRepository(testDB(t))
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	mk := func(deadline *time.Time, closed bool, typ models.TicketType) {
		require.NoError(t, repo.Create(&models.Ticket{
			Type: typ, GuildID: "guild-1", ChannelID: "c", AuthorID: "a",
			Closed: closed, Deadline: deadline,
		}))
	}
	mk(&past, false, models.TicketCommission)   // expired
	mk(&future, false, models.TicketCommission) // not yet
	mk(&past, true, models.TicketCommission)    // closed
	mk(&past, false, models.TicketSupport)      // wrong type
	mk(nil, false, models.TicketCommission)     // no deadline

	rows, err := repo.WithDeadlineBefore(now)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestQuotedBefore(t *testing.T) {
	repo := NewTicketRepository(testDB(t))
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	stale := now.Add(-2 * time.Hour)
	fresh := now.Add(-time.Minute)
	mk := func(lastQuoted *time.Time, freelancerID string, closed bool) {
		require.NoError(t, repo.Create(&models.Ticket{
			Type: models.TicketCommission, GuildID: "guild-1", ChannelID: "c", AuthorID: "a",
			LastQuoted: lastQuoted, FreelancerID: freelancerID, Closed: closed,
		}))
	}
	cutoff := now.Add(-time.Hour)
	mk(&stale, "", false)          // reminder due
	mk(&fresh, "", false)          // recently quoted
	mk(&stale, "user-free", false) // claimed
	mk(&stale, "", true)           // closed
	mk(nil, "", false)             // intake not finished

	rows, err := repo.QuotedBefore(cutoff)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
