package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/internal/cardkeys"
	"github.com/xymail/xymail-backend/internal/roles"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/enums"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/pagination"
	"gorm.io/gorm"
)

var ErrUserNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "user not found")

// Database is the slice of *db.Client the service needs.
type Database interface {
	db.TxRunner
	DB() *gorm.DB
}

// Service implements user administration.
type Service struct {
	db   Database
	logg *logger.Logger
}

// NewService builds the user administration service.
func NewService(database Database, logg *logger.Logger) (*Service, error) {
	if database == nil {
		return nil, fmt.Errorf("database required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{db: database, logg: logg}, nil
}

// List returns a page of users with their roles.
func (s *Service) List(ctx context.Context, params pagination.Params, search string) (pagination.Page[UserDTO], error) {
	rows, total, err := NewRepository(s.db.DB()).List(ctx, params, search)
	if err != nil {
		return pagination.Page[UserDTO]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	roleByUser, err := roles.NewRepository(s.db.DB()).RolesForUsers(ctx, ids)
	if err != nil {
		return pagination.Page[UserDTO]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load roles")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		role, ok := roleByUser[rows[i].ID]
		if !ok {
			role = enums.RoleCivilian
		}
		out = append(out, *FromModel(&rows[i], role))
	}
	return pagination.NewPage(out, params, total), nil
}

// UpdateRoleInput is the role change request.
type UpdateRoleInput struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
	Role   string    `json:"role" validate:"required"`
}

// UpdateRole replaces the target user's role. Nobody can be promoted to
// emperor through the API and actors cannot change their own role.
func (s *Service) UpdateRole(ctx context.Context, actorID uuid.UUID, input UpdateRoleInput) (*UserDTO, error) {
	role, err := enums.ParseRole(input.Role)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role").WithDetails(map[string]string{"role": err.Error()})
	}
	if role == enums.RoleEmperor {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot promote users to emperor")
	}
	if input.UserID == actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot change your own role")
	}

	var dto *UserDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		user, err := NewRepository(tx).FindByID(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		roleRepo := roles.NewRepository(tx)
		current, err := roleRepo.RoleForUser(ctx, user.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load role")
		}
		if current == enums.RoleEmperor {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cannot change the role of an emperor")
		}
		if err := roleRepo.AssignByName(ctx, user.ID, role); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assign role")
		}
		dto = FromModel(user, role)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"target_user_id": input.UserID.String(), "new_role": string(role)})
	s.logg.Info(logCtx, "user role updated")
	return dto, nil
}

// Delete removes a user after returning the card keys they consumed to the
// unused state so the codes can be handed out again.
func (s *Service) Delete(ctx context.Context, actorID, userID uuid.UUID) error {
	if actorID == userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot delete yourself")
	}
	var reset int64
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		if _, err := repo.FindByID(ctx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		role, err := roles.NewRepository(tx).RoleForUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load role")
		}
		if role == enums.RoleEmperor {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cannot delete an emperor")
		}
		if reset, err = cardkeys.NewRepository(tx).ResetForUser(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reset card keys")
		}
		if _, err := repo.Delete(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete user")
		}
		return nil
	})
	if err != nil {
		return err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"target_user_id": userID.String(), "reset_card_keys": reset})
	s.logg.Info(logCtx, "user deleted")
	return nil
}
