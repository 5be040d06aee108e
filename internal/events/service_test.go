package events

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/apperr"
	"github.com/wiktoriasw/Invitations/internal/models"
)

type memStore struct {
	nextID int64
	events map[int64]*models.Event
	guests map[int64][]models.Guest // by event id
}

func newMemStore() *memStore {
	return &memStore{events: map[int64]*models.Event{}, guests: map[int64][]models.Guest{}}
}

func (m *memStore) Create(_ context.Context, e *models.Event) error {
	m.nextID++
	e.ID = m.nextID
	e.UUID = uuid.New()
	e.CreatedAt = time.Now()
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) GetByUUID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	for _, e := range m.events {
		if e.UUID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListByOrganizer(_ context.Context, organizerID int64, _, _ int) ([]models.Event, error) {
	out := []models.Event{}
	for _, e := range m.events {
		if e.OrganizerID == organizerID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) ListPublic(_ context.Context, _, _ int) ([]models.Event, error) {
	out := []models.Event{}
	for _, e := range m.events {
		if e.IsPublic {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, e *models.Event) error {
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) DeleteCascade(_ context.Context, eventID int64) error {
	delete(m.guests, eventID)
	delete(m.events, eventID)
	return nil
}

func (m *memStore) ListByEvent(_ context.Context, eventID int64, offset, limit int) ([]models.Guest, error) {
	all := m.guests[eventID]
	if offset >= len(all) {
		return []models.Guest{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memStore) AllByEvent(_ context.Context, eventID int64) ([]models.Guest, error) {
	return m.guests[eventID], nil
}

type fakePhotos struct {
	uploaded map[string]string
	deleted  []string
}

func newFakePhotos() *fakePhotos { return &fakePhotos{uploaded: map[string]string{}} }

func (f *fakePhotos) PresignPhotoUpload(_ context.Context, key, _ string) (string, error) {
	return "https://s3.test/put/" + key, nil
}

func (f *fakePhotos) PresignPhotoDownload(_ context.Context, key string) (string, error) {
	return "https://s3.test/get/" + key, nil
}

func (f *fakePhotos) UploadPhoto(_ context.Context, key, _ string, body io.Reader) error {
	b, err := io.ReadAll(body)
	f.uploaded[key] = string(b)
	return err
}

func (f *fakePhotos) DeletePhoto(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakePhotos) PresignExpire() time.Duration { return 15 * time.Minute }

func ptr[T any](v T) *T { return &v }

var (
	organizer = &models.User{ID: 1, UUID: uuid.New(), Email: "org@example.com", Role: models.RoleUser}
	stranger  = &models.User{ID: 2, UUID: uuid.New(), Email: "other@example.com", Role: models.RoleUser}
)

func sampleInput() Input {
	start := time.Date(2030, 6, 1, 18, 0, 0, 0, time.UTC)
	return Input{
		Name:             "Wedding",
		Description:      ptr("Ann & Bob"),
		StartTime:        start,
		Location:         "Krakow",
		Menu:             "A;B",
		DecisionDeadline: start.Add(-30 * 24 * time.Hour),
	}
}

func TestCreateAndGet(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, store, nil, zap.NewNop())
	ctx := context.Background()

	e, err := svc.Create(ctx, organizer, sampleInput())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, e.UUID)
	assert.Equal(t, organizer.ID, e.OrganizerID)

	got, err := svc.Get(ctx, e.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Wedding", got.Name)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrEventNotFound)

	in := sampleInput()
	in.Menu = " "
	_, err = svc.Create(ctx, organizer, in)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestModify_OnlySetFieldsOverwrite(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, store, nil, zap.NewNop())
	ctx := context.Background()
	e, err := svc.Create(ctx, organizer, sampleInput())
	require.NoError(t, err)

	got, err := svc.Modify(ctx, organizer, e.UUID, Patch{Location: ptr("Warsaw"), IsPublic: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, "Warsaw", got.Location)
	assert.True(t, got.IsPublic)
	assert.Equal(t, "Wedding", got.Name)
	assert.Equal(t, "A;B", got.Menu)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Ann & Bob", *got.Description)

	// an empty patch changes nothing, there is no way to null a field
	got, err = svc.Modify(ctx, organizer, e.UUID, Patch{})
	require.NoError(t, err)
	assert.NotNil(t, got.Description)
}

func TestModify_SuppliedEmptyStringsOverwrite(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, store, nil, zap.NewNop())
	ctx := context.Background()
	e, err := svc.Create(ctx, organizer, sampleInput())
	require.NoError(t, err)

	got, err := svc.Modify(ctx, organizer, e.UUID, Patch{Name: ptr(""), Menu: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, "", got.Name)
	assert.Equal(t, "", got.Menu)

	stored, err := svc.Get(ctx, e.UUID)
	require.NoError(t, err)
	assert.Equal(t, "", stored.Name)
}

func TestOwnershipIsReportedAsNotFound(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, store, nil, zap.NewNop())
	ctx := context.Background()
	e, err := svc.Create(ctx, organizer, sampleInput())
	require.NoError(t, err)

	_, err = svc.Modify(ctx, stranger, e.UUID, Patch{Name: ptr("Hijacked")})
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = svc.Delete(ctx, stranger, e.UUID)
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = svc.Guests(ctx, stranger, e.UUID, 0, 100)
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = svc.Stats(ctx, stranger, e.UUID)
	assert.ErrorIs(t, err, ErrEventNotFound)

	got, err := svc.Get(ctx, e.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Wedding", got.Name)
}

func TestDeleteCascades(t *testing.T) {
	store := newMemStore()
	photos := newFakePhotos()
	svc := NewService(store, store, photos, zap.NewNop())
	ctx := context.Background()
	e, err := svc.Create(ctx, organizer, sampleInput())
	require.NoError(t, err)
	store.guests[e.ID] = []models.Guest{{ID: 1, EventID: e.ID}, {ID: 2, EventID: e.ID}}
	_, err = svc.UploadPhoto(ctx, organizer, e.UUID, "image/png", strings.NewReader("png"))
	require.NoError(t, err)

	_, err = svc.Delete(ctx, organizer, e.UUID)
	require.NoError(t, err)
	assert.Empty(t, store.guests[e.ID])
	_, err = svc.Get(ctx, e.UUID)
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.Len(t, photos.deleted, 1)
}

func TestComputeStats(t *testing.T) {
	guests := []models.Guest{
		{Answer: ptr(true), Menu: ptr("A")},
		{Answer: ptr(true), Menu: ptr("B")},
		{Answer: ptr(true), Menu: ptr("A")},
		{Answer: ptr(false), Menu: ptr("")},
		{Answer: ptr(false)},
		{},
	}
	st := ComputeStats(guests)
	assert.Equal(t, 3, st.CountYes)
	assert.Equal(t, 2, st.CountNo)
	assert.Equal(t, 1, st.CountUnanswered)
	assert.Equal(t, len(guests), st.CountYes+st.CountNo+st.CountUnanswered)
	assert.Equal(t, map[string]int{"A": 2, "B": 1, "": 3}, st.MenuOptionCounts)

	sum := 0
	for _, n := range st.MenuOptionCounts {
		sum += n
	}
	assert.Equal(t, len(guests), sum)

	empty := ComputeStats(nil)
	assert.Equal(t, 0, empty.CountYes)
	assert.NotNil(t, empty.MenuOptionCounts)
}

func TestPhotos(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	disabled := NewService(store, store, nil, zap.NewNop())
	e, err := disabled.Create(ctx, organizer, sampleInput())
	require.NoError(t, err)
	_, err = disabled.PhotoUploadURL(ctx, organizer, e.UUID, "image/png")
	assert.ErrorIs(t, err, ErrPhotosDisabled)

	photos := newFakePhotos()
	svc := NewService(store, store, photos, zap.NewNop())

	_, err = svc.PhotoURL(ctx, e.UUID)
	assert.ErrorIs(t, err, ErrNoPhoto)

	_, err = svc.PhotoUploadURL(ctx, organizer, e.UUID, "application/pdf")
	assert.ErrorIs(t, err, ErrPhotoType)

	_, err = svc.PhotoUploadURL(ctx, stranger, e.UUID, "image/png")
	assert.ErrorIs(t, err, ErrEventNotFound)

	up, err := svc.PhotoUploadURL(ctx, organizer, e.UUID, "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.Key, "events/"+e.UUID.String()+"/"))
	assert.True(t, strings.HasSuffix(up.Key, ".png"))
	assert.Contains(t, up.UploadURL, up.Key)

	url, err := svc.PhotoURL(ctx, e.UUID)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.test/get/"+up.Key, url)

	// replacing the photo removes the previous object
	_, err = svc.UploadPhoto(ctx, organizer, e.UUID, "image/jpeg", strings.NewReader("jpg"))
	require.NoError(t, err)
	assert.Equal(t, []string{up.Key}, photos.deleted)
}
