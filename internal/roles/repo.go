// Package roles persists the single role each user holds.
package roles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/enums"
	"gorm.io/gorm"
)

var descriptions = map[enums.Role]string{
	enums.RoleEmperor:  "site owner with every permission",
	enums.RoleDuke:     "manages emails, webhooks and API keys",
	enums.RoleKnight:   "manages emails and webhooks",
	enums.RoleCivilian: "regular user",
	enums.RoleTempUser: "temporary user limited to the bound address",
}

// Repository exposes role persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a roles repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindOrCreate returns the role row named name, inserting it on first use.
func (r *Repository) FindOrCreate(ctx context.Context, name enums.Role) (*models.Role, error) {
	var role models.Role
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error
	if err == nil {
		return &role, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	role = models.Role{Name: name, Description: descriptions[name]}
	if err := r.db.WithContext(ctx).Create(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// Assign replaces whatever role the user holds with roleID.
func (r *Repository) Assign(ctx context.Context, userID, roleID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserRole{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&models.UserRole{UserID: userID, RoleID: roleID}).Error
}

// AssignByName resolves the role and assigns it.
func (r *Repository) AssignByName(ctx context.Context, userID uuid.UUID, name enums.Role) error {
	role, err := r.FindOrCreate(ctx, name)
	if err != nil {
		return err
	}
	return r.Assign(ctx, userID, role.ID)
}

// RoleForUser returns the user's role, or civilian when none is assigned.
func (r *Repository) RoleForUser(ctx context.Context, userID uuid.UUID) (enums.Role, error) {
	var names []enums.Role
	err := r.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Limit(1).
		Pluck("roles.name", &names).Error
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return enums.RoleCivilian, nil
	}
	return names[0], nil
}

// RolesForUsers maps each user id to its role; users without one are absent.
func (r *Repository) RolesForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]enums.Role, error) {
	out := make(map[uuid.UUID]enums.Role, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		UserID uuid.UUID
		Name   enums.Role
	}
	err := r.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Select("user_roles.user_id AS user_id, roles.name AS name").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id IN ?", userIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.UserID] = row.Name
	}
	return out, nil
}
