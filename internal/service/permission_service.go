// Package service provides application business logic (messaging, conversations, presence).
package service

import (
	"context"
	"errors"

	"liaison/internal/models"
	"liaison/internal/observability"
	"liaison/internal/repository"

	"gorm.io/gorm"
)

// PermissionService decides who may message whom. Edges are computed per
// request and never cached: project membership changes must take effect
// immediately.
type PermissionService struct {
	userRepo          repository.UserRepository
	haveSharedProject func(ctx context.Context, coordinatorID, clientID uint) (bool, error)
}

// NewPermissionService returns a new PermissionService.
func NewPermissionService(
	userRepo repository.UserRepository,
	haveSharedProject func(ctx context.Context, coordinatorID, clientID uint) (bool, error),
) *PermissionService {
	return &PermissionService{
		userRepo:          userRepo,
		haveSharedProject: haveSharedProject,
	}
}

// CanMessage reports whether sender may message recipient.
//
// Admins message and are messaged by anyone. A coordinator and a client may
// message each other only while they share at least one project. Every other
// pairing is denied. Any lookup failure denies: the check fails closed.
func (s *PermissionService) CanMessage(ctx context.Context, senderID, recipientID uint) (bool, error) {
	if senderID == recipientID {
		observability.PermissionDenials.WithLabelValues("self").Inc()
		return false, nil
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return false, denyOnLookup(err, "sender")
	}
	recipient, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		return false, denyOnLookup(err, "recipient")
	}

	if !sender.Active || !recipient.Active {
		observability.PermissionDenials.WithLabelValues("inactive").Inc()
		return false, nil
	}

	if sender.Role == models.RoleAdmin || recipient.Role == models.RoleAdmin {
		return true, nil
	}

	var coordinatorID, clientID uint
	switch {
	case sender.Role == models.RoleCoordinator && recipient.Role == models.RoleClient:
		coordinatorID, clientID = sender.ID, recipient.ID
	case sender.Role == models.RoleClient && recipient.Role == models.RoleCoordinator:
		coordinatorID, clientID = recipient.ID, sender.ID
	default:
		observability.PermissionDenials.WithLabelValues("role_pair").Inc()
		return false, nil
	}

	if s.haveSharedProject == nil {
		observability.PermissionDenials.WithLabelValues("membership_unavailable").Inc()
		return false, nil
	}
	shared, err := s.haveSharedProject(ctx, coordinatorID, clientID)
	if err != nil {
		// Membership lookup failure denies, never allows
		observability.PermissionDenials.WithLabelValues("membership_error").Inc()
		return false, nil
	}
	if !shared {
		observability.PermissionDenials.WithLabelValues("no_shared_project").Inc()
	}
	return shared, nil
}

// PermittedContacts returns every user the given user may currently message,
// including users with no message history. Used by the conversation deriver
// so new permitted contacts surface with empty threads.
func (s *PermissionService) PermittedContacts(ctx context.Context, userID uint) ([]*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.userRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	contacts := make([]*models.User, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.ID == user.ID {
			continue
		}
		ok, err := s.canMessageResolved(ctx, user, candidate)
		if err != nil {
			return nil, err
		}
		if ok {
			contacts = append(contacts, candidate)
		}
	}
	return contacts, nil
}

// canMessageResolved is CanMessage with both users already loaded.
func (s *PermissionService) canMessageResolved(ctx context.Context, sender, recipient *models.User) (bool, error) {
	if !sender.Active || !recipient.Active {
		return false, nil
	}
	if sender.Role == models.RoleAdmin || recipient.Role == models.RoleAdmin {
		return true, nil
	}

	var coordinatorID, clientID uint
	switch {
	case sender.Role == models.RoleCoordinator && recipient.Role == models.RoleClient:
		coordinatorID, clientID = sender.ID, recipient.ID
	case sender.Role == models.RoleClient && recipient.Role == models.RoleCoordinator:
		coordinatorID, clientID = recipient.ID, sender.ID
	default:
		return false, nil
	}

	if s.haveSharedProject == nil {
		return false, nil
	}
	shared, err := s.haveSharedProject(ctx, coordinatorID, clientID)
	if err != nil {
		return false, nil
	}
	return shared, nil
}

func denyOnLookup(err error, which string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		observability.PermissionDenials.WithLabelValues("unknown_user").Inc()
		return models.NewNotFoundError("User", which)
	}
	observability.PermissionDenials.WithLabelValues("lookup_error").Inc()
	return err
}
