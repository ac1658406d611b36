package service

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
)

type accountRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.Account, int, error)
	SetActive(ctx context.Context, exec sqlx.ExtContext, id string, active bool) (bool, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type roleRepository interface {
	LockByUserID(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.Profile, error)
	UpdateRole(ctx context.Context, exec sqlx.ExtContext, profile *models.Profile) error
}

// RequestMeta identifies the client behind an administrative change.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// UserService handles account administration: listings, role assignment and sign-in status.
// Callers are expected to be admins; the router enforces that with the stored role.
type UserService struct {
	tx        txProvider
	users     accountRepository
	profiles  roleRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(tx txProvider, users accountRepository, profiles roleRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{tx: tx, users: users, profiles: profiles, audit: audit, validator: validate, logger: logger}
}

// List returns paginated accounts and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.Account, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "role must be user, premium or admin")
	}
	page, size, _ := models.NormalizePage(filter.Page, filter.PageSize)
	filter.Page, filter.PageSize = page, size

	accounts, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	return accounts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// SetRole assigns a new role to the profile of userID. Admins cannot change their own role so the
// last admin cannot lock everyone out by accident. Counters are not affected by role changes.
func (s *UserService) SetRole(ctx context.Context, actor policy.Actor, userID string, req models.SetRoleRequest, meta RequestMeta) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid role payload")
	}
	if actor.UserID == userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admins cannot change their own role")
	}

	var (
		profile *models.Profile
		oldRole models.Role
	)
	err := inTx(ctx, s.tx, nil, func(tx *sqlx.Tx) error {
		var err error
		profile, err = s.profiles.LockByUserID(ctx, tx, userID)
		if err != nil {
			return storeError(err, "profile not found", "failed to load profile")
		}
		oldRole = profile.Role
		if oldRole == req.Role {
			return nil
		}
		profile.Role = req.Role
		if err := s.profiles.UpdateRole(ctx, tx, profile); err != nil {
			return storeError(err, "profile not found", "failed to update role")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if oldRole != req.Role {
		s.record(ctx, actor, models.AuditActionRoleChange, userID,
			map[string]interface{}{"role": oldRole},
			map[string]interface{}{"role": req.Role}, meta)
		s.logger.Info("profile role changed",
			zap.String("user_id", userID),
			zap.String("from", string(oldRole)),
			zap.String("to", string(req.Role)),
		)
	}
	return profile, nil
}

// SetActive enables or disables sign-in for userID. Disabling also revokes every refresh token so
// existing sessions end when their access token expires.
func (s *UserService) SetActive(ctx context.Context, actor policy.Actor, userID string, req models.SetActiveRequest, meta RequestMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid status payload")
	}
	if actor.UserID == userID && !*req.Active {
		return appErrors.Clone(appErrors.ErrForbidden, "admins cannot deactivate themselves")
	}

	found, err := s.users.SetActive(ctx, nil, userID, *req.Active)
	if err != nil {
		return storeError(err, "user not found", "failed to update user")
	}
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	if !*req.Active {
		if err := s.users.RevokeUserRefreshTokens(ctx, userID); err != nil {
			return appErrors.Internal(err, "failed to revoke sessions")
		}
	}

	s.record(ctx, actor, models.AuditActionUserStatus, userID, nil, map[string]interface{}{"active": *req.Active}, meta)
	return nil
}

func (s *UserService) record(ctx context.Context, actor policy.Actor, action, userID string, oldValues, newValues map[string]interface{}, meta RequestMeta) {
	if s.audit == nil {
		return
	}
	actorID := actor.UserID
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &userID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
