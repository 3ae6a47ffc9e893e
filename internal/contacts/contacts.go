package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sl "contacts_service/internal/lib/logger/sl"
	"contacts_service/internal/models"
	"contacts_service/internal/storage"
)

// ErrNotFound covers both a missing contact and one owned by another user.
var ErrNotFound = errors.New("contact not found")

type Storage interface {
	SaveContact(ctx context.Context, userID int64, name, phone string) (models.Contact, error)
	Contacts(ctx context.Context, userID int64) ([]models.Contact, error)
	UpdateContact(ctx context.Context, userID, id int64, name, phone string) (models.Contact, error)
	DeleteContact(ctx context.Context, userID, id int64) (models.Contact, error)
}

type Service struct {
	log     *slog.Logger
	storage Storage
}

func New(log *slog.Logger, storage Storage) *Service {
	return &Service{
		log:     log,
		storage: storage,
	}
}

func (s *Service) Create(ctx context.Context, owner models.Identity, name, phone string) (models.Contact, error) {
	const op = "contacts.Create"

	log := s.log.With(slog.String("op", op), slog.Int64("uid", owner.UserID))

	c, err := s.storage.SaveContact(ctx, owner.UserID, name, phone)
	if err != nil {
		log.Error("failed to save contact", sl.Err(err))
		return models.Contact{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("contact created", slog.Int64("contact_id", c.ID))

	return c, nil
}

func (s *Service) List(ctx context.Context, owner models.Identity) ([]models.Contact, error) {
	const op = "contacts.List"

	list, err := s.storage.Contacts(ctx, owner.UserID)
	if err != nil {
		s.log.Error("failed to list contacts", slog.String("op", op), slog.Int64("uid", owner.UserID), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *Service) Update(ctx context.Context, owner models.Identity, id int64, name, phone string) (models.Contact, error) {
	const op = "contacts.Update"

	log := s.log.With(slog.String("op", op), slog.Int64("uid", owner.UserID), slog.Int64("contact_id", id))

	c, err := s.storage.UpdateContact(ctx, owner.UserID, id, name, phone)
	if err != nil {
		if errors.Is(err, storage.ErrContactNotFound) {
			log.Info("contact not found")
			return models.Contact{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		log.Error("failed to update contact", sl.Err(err))
		return models.Contact{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("contact updated")

	return c, nil
}

func (s *Service) Delete(ctx context.Context, owner models.Identity, id int64) error {
	const op = "contacts.Delete"

	log := s.log.With(slog.String("op", op), slog.Int64("uid", owner.UserID), slog.Int64("contact_id", id))

	if _, err := s.storage.DeleteContact(ctx, owner.UserID, id); err != nil {
		if errors.Is(err, storage.ErrContactNotFound) {
			log.Info("contact not found")
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		log.Error("failed to delete contact", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("contact deleted")

	return nil
}
