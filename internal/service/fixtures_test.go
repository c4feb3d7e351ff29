package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/cai360/TVBsAdScheduler/internal/models"
)

var testDate = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func material(id string, seconds int) models.Material {
	return models.Material{ID: id, Code: id, Name: id, DurationSeconds: seconds, Kind: models.MaterialKindCommercial}
}

func pinned(id string, seconds int, pos models.RequiredPosition) models.Material {
	m := material(id, seconds)
	m.RequiredPosition = pos
	return m
}

func grouped(id string, seconds int, group string) models.Material {
	m := material(id, seconds)
	m.ExclusivityGroup = group
	return m
}

func newZone(id string, capacity, programOrder, breakSeq int) *models.BreakZone {
	return &models.BreakZone{
		ID:              id,
		DayID:           "day-1",
		ChannelID:       "TVB1",
		ScheduleDate:    testDate,
		ProgramID:       "prog-" + id,
		ProgramOrder:    programOrder,
		BreakSequence:   breakSeq,
		CapacitySeconds: capacity,
	}
}

func newDay(id, channel string, zones ...*models.BreakZone) *models.ScheduleDay {
	for _, z := range zones {
		z.DayID = id
		z.ChannelID = channel
	}
	return &models.ScheduleDay{
		ID:           id,
		ChannelID:    channel,
		ScheduleDate: testDate,
		Status:       models.ConversionStatusOpen,
		Zones:        zones,
	}
}

// fill appends placements for the given materials in order.
func fill(t *testing.T, zone *models.BreakZone, materials ...models.Material) {
	t.Helper()
	for _, m := range materials {
		m := m
		require.NoError(t, zone.InsertAt(models.Placement{
			ID:         "p-" + m.ID,
			MaterialID: m.ID,
			Seconds:    m.DurationSeconds,
			Material:   &m,
		}, zone.Count()+1))
	}
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// memoryDays is an in-memory schedule store honouring the same conditional
// write semantics as the postgres repository.
type memoryDays struct {
	mu   sync.Mutex
	days map[string]*models.ScheduleDay

	barrier     sync.WaitGroup
	barrierLeft int
}

func newMemoryDays(days ...*models.ScheduleDay) *memoryDays {
	s := &memoryDays{days: map[string]*models.ScheduleDay{}}
	for _, d := range days {
		s.days[d.ID] = d.Clone()
	}
	return s
}

// holdLoads makes the next n loads wait for each other before returning.
func (s *memoryDays) holdLoads(n int) {
	s.barrier.Add(n)
	s.barrierLeft = n
}

func (s *memoryDays) LoadDay(ctx context.Context, channelID string, date time.Time) (*models.ScheduleDay, error) {
	s.mu.Lock()
	var found *models.ScheduleDay
	for _, d := range s.days {
		if d.ChannelID == channelID && models.DateKey(d.ScheduleDate) == models.DateKey(date) {
			found = d.Clone()
			break
		}
	}
	wait := s.barrierLeft > 0
	if wait {
		s.barrierLeft--
	}
	s.mu.Unlock()

	if wait {
		s.barrier.Done()
		s.barrier.Wait()
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	return found, nil
}

func (s *memoryDays) BumpVersion(ctx context.Context, exec sqlx.ExtContext, dayID string, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	day, ok := s.days[dayID]
	if !ok || day.Version != expectedVersion || day.IsConverted() {
		return models.ErrStaleVersion
	}
	day.Version++
	return nil
}

func (s *memoryDays) ReplacePlacements(ctx context.Context, exec sqlx.ExtContext, dayID string, zones []*models.BreakZone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	day, ok := s.days[dayID]
	if !ok {
		return sql.ErrNoRows
	}
	byID := map[string]*models.BreakZone{}
	for _, z := range zones {
		byID[z.ID] = z
	}
	for i, z := range day.Zones {
		if edited, ok := byID[z.ID]; ok {
			day.Zones[i] = edited.Clone()
		}
	}
	return nil
}

func (s *memoryDays) MarkConverted(ctx context.Context, exec sqlx.ExtContext, dayID string, expectedVersion int, convertedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	day, ok := s.days[dayID]
	if !ok || day.Version != expectedVersion || day.IsConverted() {
		return models.ErrStaleVersion
	}
	at := convertedAt
	day.Status = models.ConversionStatusConverted
	day.ConvertedAt = &at
	day.Version++
	return nil
}

func (s *memoryDays) get(dayID string) *models.ScheduleDay {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.days[dayID].Clone()
}

type memoryCatalog struct {
	materials map[string]models.Material
}

func newMemoryCatalog(materials ...models.Material) *memoryCatalog {
	c := &memoryCatalog{materials: map[string]models.Material{}}
	for _, m := range materials {
		c.materials[m.ID] = m
	}
	return c
}

func (c *memoryCatalog) FindByID(ctx context.Context, id string) (*models.Material, error) {
	m, ok := c.materials[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &m, nil
}

func (c *memoryCatalog) ListByIDs(ctx context.Context, ids []string) ([]models.Material, error) {
	out := make([]models.Material, 0, len(ids))
	for _, id := range ids {
		if m, ok := c.materials[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// layout renders each zone as its ordered placement ids.
func layout(day *models.ScheduleDay) map[string][]string {
	out := make(map[string][]string, len(day.Zones))
	for _, z := range day.Zones {
		ids := make([]string, 0, len(z.Placements))
		for _, p := range z.Placements {
			ids = append(ids, fmt.Sprintf("%s@%d", p.ID, p.Position))
		}
		out[z.ID] = ids
	}
	return out
}
