package guests

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/apperr"
	"github.com/wiktoriasw/Invitations/internal/models"
	"github.com/wiktoriasw/Invitations/pkg/metrics"
)

var (
	ErrGuestNotFound       error = apperr.New(apperr.ErrNotFound, "guest not found")
	ErrEventNotFound       error = apperr.New(apperr.ErrNotFound, "event not found")
	ErrNotOrganizer        error = apperr.New(apperr.ErrUnauthenticated, "only the organizer can add guests")
	ErrCompanionSelfAnswer error = apperr.New(apperr.ErrForbidden, "companion cannot self-answer")
	ErrPrimaryMustAnswer   error = apperr.New(apperr.ErrForbidden, "primary guest has to answer first")
	ErrCannotAttendAlone   error = apperr.New(apperr.ErrForbidden, "companion cannot attend without primary guest")
	ErrDeadlinePassed      error = apperr.New(apperr.ErrDeadlinePassed, "after the deadline you cannot update the answer")
	ErrMenuNotFound        error = apperr.New(apperr.ErrValidation, "menu not found")
	ErrNameRequired        error = apperr.New(apperr.ErrUnprocessable, "name and surname are required")
)

// Store is the guest persistence the RSVP engine needs.
type Store interface {
	GetEventByUUID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Create(ctx context.Context, g *models.Guest, withCompanion bool) (*models.Guest, error)
	GetWithEvent(ctx context.Context, id uuid.UUID) (*models.Guest, *models.Event, error)
	GetByUUID(ctx context.Context, id uuid.UUID) (*models.Guest, error)
	GetByID(ctx context.Context, id int64) (*models.Guest, error)
	FindPrimaryByCompanionID(ctx context.Context, companionID int64) (*models.Guest, error)
	List(ctx context.Context, offset, limit int) ([]models.Guest, error)
	ApplyAnswer(ctx context.Context, u AnswerUpdate) (*models.Guest, error)
	Delete(ctx context.Context, guestID int64) (bool, error)
}

// Broadcaster fans RSVP changes out to organizers watching an event.
type Broadcaster interface {
	GuestAnswered(ctx context.Context, event *models.Event, guest *models.Guest)
}

// AnswerUpdate is one atomic answer write. Nil Name/Surname keep the stored values.
type AnswerUpdate struct {
	GuestID            int64
	Answer             bool
	Menu               *string
	Comments           *string
	Name               *string
	Surname            *string
	DeclineCompanionID *int64
}

// CreateInput holds the fields of a new guest.
type CreateInput struct {
	EventUUID    uuid.UUID
	Name         string
	Surname      string
	Email        string
	Phone        string
	HasCompanion bool
}

// AnswerInput is a primary guest's RSVP.
type AnswerInput struct {
	Answer   bool
	Menu     *string
	Comments *string
}

// CompanionAnswerInput is a companion's RSVP. Name and Surname are required when attending.
type CompanionAnswerInput struct {
	Answer   bool
	Menu     *string
	Comments *string
	Name     *string
	Surname  *string
}

// Created is a new guest and, when requested, its blank companion.
type Created struct {
	Guest     *models.Guest
	Companion *models.Guest
}

// Answered is the stored guest after an answer, with its companion's uuid when it has one.
type Answered struct {
	Guest         *models.Guest
	CompanionUUID *uuid.UUID
}

// Service is the guest and RSVP engine.
type Service struct {
	store       Store
	broadcaster Broadcaster
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates the RSVP engine. broadcaster may be nil.
func NewService(store Store, broadcaster Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, broadcaster: broadcaster, logger: logger, now: time.Now}
}

// Create adds a guest to an event the requester organizes.
func (s *Service) Create(ctx context.Context, requester *models.User, in CreateInput) (*Created, error) {
	event, err := s.store.GetEventByUUID(ctx, in.EventUUID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	if !event.OrganizedBy(requester) {
		return nil, ErrNotOrganizer
	}
	g := &models.Guest{
		EventID: event.ID,
		Name:    in.Name,
		Surname: in.Surname,
		Email:   in.Email,
		Phone:   in.Phone,
	}
	companion, err := s.store.Create(ctx, g, in.HasCompanion)
	if err != nil {
		return nil, fmt.Errorf("create guest: %w", err)
	}
	s.logger.Info("guest created",
		zap.String("event_uuid", event.UUID.String()),
		zap.String("guest_uuid", g.UUID.String()),
		zap.Bool("has_companion", companion != nil),
	)
	return &Created{Guest: g, Companion: companion}, nil
}

// Get returns a guest by uuid to anyone holding the link.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Guest, error) {
	g, err := s.store.GetByUUID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get guest: %w", err)
	}
	if g == nil {
		return nil, ErrGuestNotFound
	}
	return g, nil
}

// List returns guests across all events.
func (s *Service) List(ctx context.Context, skip, limit int) ([]models.Guest, error) {
	list, err := s.store.List(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	return list, nil
}

// Delete removes a guest of an event the requester organizes. Foreign guests are not found.
func (s *Service) Delete(ctx context.Context, requester *models.User, id uuid.UUID) (*models.Guest, error) {
	g, event, err := s.store.GetWithEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get guest: %w", err)
	}
	if g == nil || !event.OrganizedBy(requester) {
		return nil, ErrGuestNotFound
	}
	removedCompanion, err := s.store.Delete(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("delete guest: %w", err)
	}
	if removedCompanion {
		metrics.CascadeDeletesTotal.WithLabelValues("guest").Inc()
	}
	s.logger.Info("guest deleted",
		zap.String("event_uuid", event.UUID.String()),
		zap.String("guest_uuid", g.UUID.String()),
		zap.Bool("companion_removed", removedCompanion),
	)
	return g, nil
}

// Answer records a primary guest's RSVP.
//
// Checks run in a fixed order: existence, companion rejection, deadline, menu.
// When the guest has a companion and either the stored answer is already false or the new
// answer is false, the companion is forced to {answer: false, menu: "", comments: ""} in the
// same transaction.
func (s *Service) Answer(ctx context.Context, id uuid.UUID, in AnswerInput) (*Answered, error) {
	g, event, err := s.store.GetWithEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get guest: %w", err)
	}
	if g == nil {
		return nil, ErrGuestNotFound
	}
	primary, err := s.store.FindPrimaryByCompanionID(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("find primary: %w", err)
	}
	if primary != nil {
		return nil, s.reject("companion_self_answer", ErrCompanionSelfAnswer)
	}
	if event.DeadlinePassed(s.now()) {
		return nil, s.reject("deadline", ErrDeadlinePassed)
	}
	menu, err := s.resolveMenu(event, in.Answer, in.Menu)
	if err != nil {
		return nil, err
	}

	update := AnswerUpdate{GuestID: g.ID, Answer: in.Answer, Menu: menu, Comments: in.Comments}
	if g.HasCompanion() && (g.Declined() || !in.Answer) {
		update.DeclineCompanionID = g.CompanionID
	}
	updated, err := s.store.ApplyAnswer(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("apply answer: %w", err)
	}
	metrics.RSVPAnswersTotal.WithLabelValues("guest", outcome(in.Answer)).Inc()

	res := &Answered{Guest: updated}
	if updated.HasCompanion() {
		companion, err := s.store.GetByID(ctx, *updated.CompanionID)
		if err != nil {
			return nil, fmt.Errorf("get companion: %w", err)
		}
		if companion != nil {
			res.CompanionUUID = &companion.UUID
			if update.DeclineCompanionID != nil {
				metrics.CompanionCascadesTotal.Inc()
				s.logger.Info("companion declined with primary",
					zap.String("guest_uuid", updated.UUID.String()),
					zap.String("companion_uuid", companion.UUID.String()),
				)
				s.broadcast(ctx, event, companion)
			}
		}
	}
	s.logger.Info("guest answered",
		zap.String("event_uuid", event.UUID.String()),
		zap.String("guest_uuid", updated.UUID.String()),
		zap.Bool("answer", in.Answer),
	)
	s.broadcast(ctx, event, updated)
	return res, nil
}

// CompanionAnswer records a companion's RSVP. The primary guest must already have
// accepted; checks run in a fixed order: name presence, existence, primary state,
// deadline, menu.
func (s *Service) CompanionAnswer(ctx context.Context, id uuid.UUID, in CompanionAnswerInput) (*models.Guest, error) {
	if in.Answer && (in.Name == nil || in.Surname == nil) {
		return nil, s.reject("companion_name", ErrNameRequired)
	}
	companion, event, err := s.store.GetWithEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get companion: %w", err)
	}
	if companion == nil {
		return nil, ErrGuestNotFound
	}
	primary, err := s.store.FindPrimaryByCompanionID(ctx, companion.ID)
	if err != nil {
		return nil, fmt.Errorf("find primary: %w", err)
	}
	if primary == nil {
		return nil, ErrGuestNotFound
	}
	if !primary.Answered() {
		return nil, s.reject("primary_unanswered", ErrPrimaryMustAnswer)
	}
	if primary.Declined() {
		return nil, s.reject("primary_declined", ErrCannotAttendAlone)
	}
	if event.DeadlinePassed(s.now()) {
		return nil, s.reject("deadline", ErrDeadlinePassed)
	}
	menu, err := s.resolveMenu(event, in.Answer, in.Menu)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.ApplyAnswer(ctx, AnswerUpdate{
		GuestID:  companion.ID,
		Answer:   in.Answer,
		Menu:     menu,
		Comments: in.Comments,
		Name:     nonEmpty(in.Name),
		Surname:  nonEmpty(in.Surname),
	})
	if err != nil {
		return nil, fmt.Errorf("apply companion answer: %w", err)
	}
	metrics.RSVPAnswersTotal.WithLabelValues("companion", outcome(in.Answer)).Inc()
	s.logger.Info("companion answered",
		zap.String("event_uuid", event.UUID.String()),
		zap.String("companion_uuid", updated.UUID.String()),
		zap.Bool("answer", in.Answer),
	)
	s.broadcast(ctx, event, updated)
	return updated, nil
}

// resolveMenu drops the menu of a decline and requires an exact menu option for an acceptance.
func (s *Service) resolveMenu(event *models.Event, answer bool, menu *string) (*string, error) {
	if !answer {
		return nil, nil
	}
	if menu == nil || !event.HasMenuOption(*menu) {
		return nil, s.reject("menu", ErrMenuNotFound)
	}
	return menu, nil
}

func (s *Service) reject(reason string, err error) error {
	metrics.RSVPRejectedTotal.WithLabelValues(reason).Inc()
	return err
}

func (s *Service) broadcast(ctx context.Context, event *models.Event, g *models.Guest) {
	if s.broadcaster != nil {
		s.broadcaster.GuestAnswered(ctx, event, g)
	}
}

func outcome(answer bool) string {
	if answer {
		return "yes"
	}
	return "no"
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
