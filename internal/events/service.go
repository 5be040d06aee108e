package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/apperr"
	"github.com/wiktoriasw/Invitations/internal/models"
	"github.com/wiktoriasw/Invitations/pkg/metrics"
	"github.com/wiktoriasw/Invitations/pkg/storage"
)

var (
	ErrEventNotFound  error = apperr.New(apperr.ErrNotFound, "event not found")
	ErrNoPhoto        error = apperr.New(apperr.ErrNotFound, "event has no background photo")
	ErrPhotoType      error = apperr.New(apperr.ErrValidation, "unsupported photo type")
	ErrMissingName    error = apperr.New(apperr.ErrValidation, "name is required")
	ErrMissingMenu    error = apperr.New(apperr.ErrValidation, "menu is required")
	ErrPhotosDisabled error = errors.New("photo storage not configured")
)

// Store is the event persistence the service needs.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListByOrganizer(ctx context.Context, organizerID int64, offset, limit int) ([]models.Event, error)
	ListPublic(ctx context.Context, offset, limit int) ([]models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	DeleteCascade(ctx context.Context, eventID int64) error
}

// GuestLister reads the guest list of an event.
type GuestLister interface {
	ListByEvent(ctx context.Context, eventID int64, offset, limit int) ([]models.Guest, error)
	AllByEvent(ctx context.Context, eventID int64) ([]models.Guest, error)
}

// PhotoStore keeps event background photos in object storage.
type PhotoStore interface {
	PresignPhotoUpload(ctx context.Context, key, contentType string) (string, error)
	PresignPhotoDownload(ctx context.Context, key string) (string, error)
	UploadPhoto(ctx context.Context, key, contentType string, body io.Reader) error
	DeletePhoto(ctx context.Context, key string) error
	PresignExpire() time.Duration
}

// Input holds the fields of a new event.
type Input struct {
	Name             string
	Description      *string
	IsPublic         bool
	StartTime        time.Time
	Location         string
	Menu             string
	DecisionDeadline time.Time
}

// Patch holds a partial event update. Nil fields are left unchanged.
type Patch struct {
	Name             *string
	Description      *string
	IsPublic         *bool
	StartTime        *time.Time
	Location         *string
	Menu             *string
	DecisionDeadline *time.Time
}

// Apply overwrites the fields of e that are set in p.
func (p Patch) Apply(e *models.Event) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Description != nil {
		e.Description = p.Description
	}
	if p.IsPublic != nil {
		e.IsPublic = *p.IsPublic
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Menu != nil {
		e.Menu = *p.Menu
	}
	if p.DecisionDeadline != nil {
		e.DecisionDeadline = *p.DecisionDeadline
	}
}

// Stats is the RSVP summary of an event.
type Stats struct {
	CountYes         int            `json:"count_yes"`
	CountNo          int            `json:"count_no"`
	CountUnanswered  int            `json:"count_unanswered"`
	MenuOptionCounts map[string]int `json:"menu_option_counts"`
}

// ComputeStats tallies every guest once by answer and once by menu choice.
// Guests without a menu count under the empty key.
func ComputeStats(guests []models.Guest) Stats {
	st := Stats{MenuOptionCounts: map[string]int{}}
	for _, g := range guests {
		switch {
		case g.Answer == nil:
			st.CountUnanswered++
		case *g.Answer:
			st.CountYes++
		default:
			st.CountNo++
		}
		menu := ""
		if g.Menu != nil {
			menu = *g.Menu
		}
		st.MenuOptionCounts[menu]++
	}
	return st
}

// PhotoUpload is a pre-signed direct upload target.
type PhotoUpload struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service implements the event store operations.
type Service struct {
	store  Store
	guests GuestLister
	photos PhotoStore
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates an event service. photos may be nil when object storage is not configured.
func NewService(store Store, guests GuestLister, photos PhotoStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, guests: guests, photos: photos, logger: logger, now: time.Now}
}

// Create persists a new event organized by organizer.
func (s *Service) Create(ctx context.Context, organizer *models.User, in Input) (*models.Event, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrMissingName
	}
	if strings.TrimSpace(in.Menu) == "" {
		return nil, ErrMissingMenu
	}
	e := &models.Event{
		Name:             in.Name,
		Description:      in.Description,
		IsPublic:         in.IsPublic,
		StartTime:        in.StartTime,
		Location:         in.Location,
		Menu:             in.Menu,
		DecisionDeadline: in.DecisionDeadline,
		OrganizerID:      organizer.ID,
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info("event created", zap.String("event_uuid", e.UUID.String()), zap.String("organizer_uuid", organizer.UUID.String()))
	return e, nil
}

// Get returns an event by uuid to anyone.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := s.store.GetByUUID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if e == nil {
		return nil, ErrEventNotFound
	}
	return e, nil
}

// Owned returns the event when requester organizes it. Missing and foreign events
// are both ErrEventNotFound.
func (s *Service) Owned(ctx context.Context, requester *models.User, id uuid.UUID) (*models.Event, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.OrganizedBy(requester) {
		return nil, ErrEventNotFound
	}
	return e, nil
}

// Modify applies patch to an event the requester organizes.
func (s *Service) Modify(ctx context.Context, requester *models.User, id uuid.UUID, patch Patch) (*models.Event, error) {
	e, err := s.Owned(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(e)
	if err := s.store.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return e, nil
}

// Delete removes an event the requester organizes together with its guests.
func (s *Service) Delete(ctx context.Context, requester *models.User, id uuid.UUID) (*models.Event, error) {
	e, err := s.Owned(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteCascade(ctx, e.ID); err != nil {
		return nil, fmt.Errorf("delete event: %w", err)
	}
	metrics.CascadeDeletesTotal.WithLabelValues("event").Inc()
	s.logger.Info("event deleted", zap.String("event_uuid", e.UUID.String()))
	if e.BackgroundPhoto != nil {
		s.removePhoto(ctx, *e.BackgroundPhoto)
	}
	return e, nil
}

// ListMine returns the events requester organizes.
func (s *Service) ListMine(ctx context.Context, requester *models.User, skip, limit int) ([]models.Event, error) {
	list, err := s.store.ListByOrganizer(ctx, requester.ID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return list, nil
}

// ListPublic returns events flagged public.
func (s *Service) ListPublic(ctx context.Context, skip, limit int) ([]models.Event, error) {
	list, err := s.store.ListPublic(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list public events: %w", err)
	}
	return list, nil
}

// Guests returns a page of the guest list of an event the requester organizes.
func (s *Service) Guests(ctx context.Context, requester *models.User, id uuid.UUID, skip, limit int) ([]models.Guest, error) {
	e, err := s.Owned(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	list, err := s.guests.ListByEvent(ctx, e.ID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	return list, nil
}

// Stats summarizes answers and menu choices of an event the requester organizes.
func (s *Service) Stats(ctx context.Context, requester *models.User, id uuid.UUID) (Stats, error) {
	e, err := s.Owned(ctx, requester, id)
	if err != nil {
		return Stats{}, err
	}
	list, err := s.guests.AllByEvent(ctx, e.ID)
	if err != nil {
		return Stats{}, fmt.Errorf("list guests: %w", err)
	}
	return ComputeStats(list), nil
}

// PhotoUploadURL reserves a new photo key for the event and returns a pre-signed PUT target for it.
func (s *Service) PhotoUploadURL(ctx context.Context, requester *models.User, id uuid.UUID, contentType string) (*PhotoUpload, error) {
	if s.photos == nil {
		return nil, ErrPhotosDisabled
	}
	e, err := s.Owned(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	ext, ok := storage.PhotoExtension(contentType)
	if !ok {
		return nil, ErrPhotoType
	}
	key := storage.PhotoKey(e.UUID.String(), uuid.NewString(), ext)
	url, err := s.photos.PresignPhotoUpload(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	if err := s.setPhoto(ctx, e, key); err != nil {
		return nil, err
	}
	return &PhotoUpload{Key: key, UploadURL: url, ExpiresAt: s.now().Add(s.photos.PresignExpire())}, nil
}

// UploadPhoto streams a background photo through the API into object storage.
func (s *Service) UploadPhoto(ctx context.Context, requester *models.User, id uuid.UUID, contentType string, body io.Reader) (*models.Event, error) {
	if s.photos == nil {
		return nil, ErrPhotosDisabled
	}
	e, err := s.Owned(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	ext, ok := storage.PhotoExtension(contentType)
	if !ok {
		return nil, ErrPhotoType
	}
	key := storage.PhotoKey(e.UUID.String(), uuid.NewString(), ext)
	if err := s.photos.UploadPhoto(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("upload photo: %w", err)
	}
	if err := s.setPhoto(ctx, e, key); err != nil {
		return nil, err
	}
	return e, nil
}

// PhotoURL returns a short-lived download URL for the event's background photo.
func (s *Service) PhotoURL(ctx context.Context, id uuid.UUID) (string, error) {
	if s.photos == nil {
		return "", ErrPhotosDisabled
	}
	e, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if e.BackgroundPhoto == nil || *e.BackgroundPhoto == "" {
		return "", ErrNoPhoto
	}
	url, err := s.photos.PresignPhotoDownload(ctx, *e.BackgroundPhoto)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return url, nil
}

func (s *Service) setPhoto(ctx context.Context, e *models.Event, key string) error {
	previous := e.BackgroundPhoto
	e.BackgroundPhoto = &key
	if err := s.store.Update(ctx, e); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if previous != nil && *previous != "" && *previous != key {
		s.removePhoto(ctx, *previous)
	}
	return nil
}

func (s *Service) removePhoto(ctx context.Context, key string) {
	if s.photos == nil {
		return
	}
	if err := s.photos.DeletePhoto(ctx, key); err != nil {
		s.logger.Warn("delete background photo failed", zap.String("key", key), zap.Error(err))
	}
}
