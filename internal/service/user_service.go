package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/psds-microservice/portal-service/internal/access"
	"github.com/psds-microservice/portal-service/internal/errs"
	"github.com/psds-microservice/portal-service/internal/identity"
	"github.com/psds-microservice/portal-service/internal/model"
	"github.com/psds-microservice/portal-service/internal/store"
)

// ProfileFields — изменяемые поля профиля. Пустые значения берутся из claims.
type ProfileFields struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ImageURL  string `json:"image_url"`
}

// UserService разрешает внешнюю личность во внутреннего пользователя с ролью.
type UserService struct {
	store store.Store
	deps
}

func NewUserService(st store.Store, opts ...Option) *UserService {
	return &UserService{store: st, deps: newDeps(opts)}
}

// CurrentUser resolves the identity carried by ctx.
func (s *UserService) CurrentUser(ctx context.Context) (*model.User, error) {
	id := identity.FromContext(ctx)
	if id == nil {
		return nil, errs.ErrUnauthenticated
	}
	u, err := s.store.GetUserByExternalID(ctx, id.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Sync upserts the caller's user record. New users get the tourist role;
// existing users keep their role and only have profile fields refreshed.
func (s *UserService) Sync(ctx context.Context, fields ProfileFields) (*model.User, error) {
	id := identity.FromContext(ctx)
	if id == nil {
		return nil, errs.ErrUnauthenticated
	}
	fields = mergeProfile(fields, id)
	if err := checkProfile(fields); err != nil {
		return nil, err
	}
	now := s.now()

	existing, err := s.store.GetUserByExternalID(ctx, id.Subject)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if existing == nil {
		u := &model.User{
			ID:                 newID(),
			ExternalIdentityID: id.Subject,
			Email:              fields.Email,
			FirstName:          fields.FirstName,
			LastName:           fields.LastName,
			ImageURL:           fields.ImageURL,
			Role:               model.RoleTourist,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		err := s.store.CreateUser(ctx, u)
		if err == nil {
			s.log.Info("user created", "user_id", u.ID)
			return u, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		// Параллельный sync успел создать запись, обновляем её.
		if existing, err = s.store.GetUserByExternalID(ctx, id.Subject); err != nil {
			return nil, fmt.Errorf("reload user: %w", err)
		}
	}

	existing.Email = fields.Email
	existing.FirstName = fields.FirstName
	existing.LastName = fields.LastName
	existing.ImageURL = fields.ImageURL
	existing.UpdatedAt = later(existing.UpdatedAt, now)
	if err := s.store.SaveUser(ctx, existing); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return existing, nil
}

func checkProfile(f ProfileFields) error {
	if err := checkLen("email", f.Email, maxEmailLen); err != nil {
		return err
	}
	if err := checkLen("first name", f.FirstName, maxPersonalName); err != nil {
		return err
	}
	return checkLen("last name", f.LastName, maxPersonalName)
}

func mergeProfile(f ProfileFields, id *identity.Identity) ProfileFields {
	if f.Email == "" {
		f.Email = id.Email
	}
	if f.FirstName == "" {
		f.FirstName = id.FirstName
	}
	if f.LastName == "" {
		f.LastName = id.LastName
	}
	if f.ImageURL == "" {
		f.ImageURL = id.ImageURL
	}
	return f
}

// UpdateRole changes another user's role. Staff only; granting or revoking
// super_admin additionally requires a super_admin caller.
func (s *UserService) UpdateRole(ctx context.Context, targetUserID string, role model.Role) (*model.User, error) {
	caller, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !access.IsStaff(caller) {
		return nil, errs.ErrUnauthorized
	}
	if !role.Valid() {
		return nil, errs.ErrInvalidRole
	}
	target, err := s.GetByID(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	touchesSuper := role == model.RoleSuperAdmin || target.Role == model.RoleSuperAdmin
	if touchesSuper && !access.HasRole(caller, access.SuperAdminRoles...) {
		return nil, errs.ErrUnauthorized
	}
	if target.Role == role {
		return target, nil
	}
	prev := target.Role
	target.Role = role
	target.UpdatedAt = later(target.UpdatedAt, s.now())
	if err := s.store.SaveUser(ctx, target); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	s.log.Info("user role updated", "user_id", target.ID, "from", prev, "to", role, "by", caller.ID)
	return target, nil
}

// List returns users, optionally filtered by role. Staff only.
func (s *UserService) List(ctx context.Context, role model.Role) ([]model.User, error) {
	caller, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !access.IsStaff(caller) {
		return nil, errs.ErrUnauthorized
	}
	if role != "" && !role.Valid() {
		return nil, errs.ErrInvalidRole
	}
	return s.store.ListUsers(ctx, role)
}
