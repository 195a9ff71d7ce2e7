package guests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commercecore/storefront-backend/internal/cart"
	"github.com/commercecore/storefront-backend/internal/users"
	"github.com/commercecore/storefront-backend/pkg/config"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/outbox"
	"github.com/commercecore/storefront-backend/pkg/security"
	"github.com/commercecore/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateGuestInput carries the payload to register an anonymous session.
type CreateGuestInput struct {
	SessionID string        `json:"session_id" validate:"required"`
	Email     *string       `json:"email" validate:"omitempty,email"`
	CartID    *uuid.UUID    `json:"cart_id" validate:"omitempty"`
	Metadata  types.JSONMap `json:"metadata"`
}

// ConvertGuestInput carries the registration payload that upgrades a guest
// to a full account.
type ConvertGuestInput struct {
	Username  string  `json:"username" validate:"required,min=3,max=64"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Phone     *string `json:"phone" validate:"omitempty"`
}

// ConversionResult bundles everything the caller gets back after a guest
// becomes a registered user.
type ConversionResult struct {
	User  *models.User  `json:"user"`
	Guest *models.Guest `json:"guest"`
	Cart  *models.Cart  `json:"cart,omitempty"`
}

// Service governs the guest identity lifecycle.
type Service interface {
	CreateGuest(ctx context.Context, input CreateGuestInput) (*models.Guest, error)
	GetBySession(ctx context.Context, sessionID string) (*models.Guest, error)
	ConvertToUser(ctx context.Context, sessionID string, input ConvertGuestInput) (*ConversionResult, error)
}

type service struct {
	repo    GuestRepository
	users   users.UserRepository
	carts   cart.Service
	tx      txRunner
	outbox  *outbox.Service
	logg    *logger.Logger
	pwdCfg  config.PasswordConfig
	now     func() time.Time
}

// ServiceParams bundles the dependencies required to build a guest service.
type ServiceParams struct {
	Repo     GuestRepository
	Users    users.UserRepository
	Carts    cart.Service
	Tx       txRunner
	Outbox   *outbox.Service
	Logger   *logger.Logger
	Password config.PasswordConfig
}

// NewService builds a guest service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("guest repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   params.Repo,
		users:  params.Users,
		carts:  params.Carts,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
		pwdCfg: params.Password,
		now:    time.Now,
	}, nil
}

// CreateGuest registers an anonymous session. The session must be new, the
// email (when given) must not belong to a registered user, and a bound cart
// must be the session's own.
func (s *service) CreateGuest(ctx context.Context, input CreateGuestInput) (*models.Guest, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	email := normalizeEmail(input.Email)
	if email != nil {
		taken, err := s.users.ExistsByEmail(ctx, *email)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check email availability")
		}
		if taken {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email belongs to a registered user")
		}
	}

	if _, err := s.repo.FindBySessionID(ctx, sessionID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "guest session already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up guest session")
	}

	if input.CartID != nil {
		record, err := s.carts.GetCart(ctx, cart.Owner{SessionID: &sessionID})
		if err != nil {
			return nil, err
		}
		if record == nil || record.ID != *input.CartID {
			return nil, pkgerrors.New(pkgerrors.CodeOwnership, "cart is not bound to this session")
		}
	}

	guest, err := s.repo.Create(ctx, &models.Guest{
		SessionID: sessionID,
		Email:     email,
		CartID:    input.CartID,
		Status:    enums.GuestStatusActive,
		Metadata:  input.Metadata,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create guest")
	}
	return guest, nil
}

// GetBySession loads the guest bound to a session.
func (s *service) GetBySession(ctx context.Context, sessionID string) (*models.Guest, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	guest, err := s.repo.FindBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "guest not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load guest")
	}
	return guest, nil
}

// ConvertToUser upgrades a guest into a registered account, migrating any
// active guest cart to the new user. Uniqueness and state checks all run
// before anything is written, so a failed conversion leaves the guest
// untouched and retryable.
func (s *service) ConvertToUser(ctx context.Context, sessionID string, input ConvertGuestInput) (*ConversionResult, error) {
	guest, err := s.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if guest.Status == enums.GuestStatusConverted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "guest session already converted")
	}

	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username, email and password are required")
	}

	taken, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check email availability")
	}
	if taken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}
	taken, err = s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check username availability")
	}
	if taken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
	}

	hash, err := security.HashPassword(input.Password, s.pwdCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"guest_id":   guest.ID.String(),
		"session_id": guest.SessionID,
	})

	var user *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		usersRepo := s.users.WithTx(tx)
		guestsRepo := s.repo.WithTx(tx)

		created, err := usersRepo.Create(ctx, &models.User{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			FirstName:    strings.TrimSpace(input.FirstName),
			LastName:     strings.TrimSpace(input.LastName),
			Phone:        input.Phone,
			IsActive:     true,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		user = created

		flipped, err := guestsRepo.MarkConverted(ctx, guest.ID, user.ID, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark guest converted")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "guest converted concurrently")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGuestConverted,
			AggregateType: enums.AggregateGuest,
			AggregateID:   guest.ID,
			Data: map[string]any{
				"guest_id":   guest.ID,
				"session_id": guest.SessionID,
				"user_id":    user.ID,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	// Cart migration runs in its own transaction after the identity flip:
	// the account exists either way, and migration is idempotent so a
	// failure here can be retried without touching the guest again.
	migrated, err := s.carts.MigrateGuestToUserCart(ctx, guest.SessionID, user.ID)
	if err != nil {
		s.logg.Error(ctx, "guest cart migration failed after conversion", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "migrate guest cart")
	}

	converted, err := s.repo.FindBySessionID(ctx, guest.SessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload guest")
	}

	s.logg.Info(ctx, "guest converted to user")
	return &ConversionResult{User: user, Guest: converted, Cart: migrated}, nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	normalized := strings.ToLower(strings.TrimSpace(*email))
	if normalized == "" {
		return nil
	}
	return &normalized
}
