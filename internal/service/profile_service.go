package service

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
)

type profileRepository interface {
	FindByUserID(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.Profile, error)
	LockByUserID(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.Profile, error)
	UpdateDetails(ctx context.Context, exec sqlx.ExtContext, profile *models.Profile) error
}

// ProfileService reads profiles and applies owner edits. Counters and role are never written here.
type ProfileService struct {
	tx            txProvider
	profiles      profileRepository
	validator     *validator.Validate
	logger        *zap.Logger
	avatarBaseURL string
}

// NewProfileService constructs a ProfileService.
func NewProfileService(tx txProvider, profiles profileRepository, validate *validator.Validate, logger *zap.Logger, avatarBaseURL string) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{tx: tx, profiles: profiles, validator: validate, logger: logger, avatarBaseURL: avatarBaseURL}
}

// Get returns any user's profile. Profiles are readable by everyone, including anonymous callers.
func (s *ProfileService) Get(ctx context.Context, actor policy.Actor, userID string) (*models.Profile, error) {
	if !policy.CanReadProfile(actor) {
		return nil, appErrors.ErrForbidden
	}
	profile, err := s.profiles.FindByUserID(ctx, nil, userID)
	if err != nil {
		return nil, storeError(err, "profile not found", "failed to load profile")
	}
	return profile, nil
}

// Me returns the caller's own profile.
func (s *ProfileService) Me(ctx context.Context, actor policy.Actor) (*models.Profile, error) {
	if !actor.Authenticated() {
		return nil, appErrors.ErrUnauthorized
	}
	return s.Get(ctx, actor, actor.UserID)
}

// Update changes the display name and avatar of the caller's profile.
func (s *ProfileService) Update(ctx context.Context, actor policy.Actor, userID string, req models.UpdateProfileRequest) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid profile payload")
	}
	if !actor.Authenticated() {
		return nil, appErrors.ErrUnauthorized
	}
	if !policy.CanWriteProfile(actor, userID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "profiles can only be edited by their owner")
	}

	var profile *models.Profile
	err := inTx(ctx, s.tx, nil, func(tx *sqlx.Tx) error {
		var err error
		profile, err = s.profiles.LockByUserID(ctx, tx, userID)
		if err != nil {
			return storeError(err, "profile not found", "failed to load profile")
		}
		if req.FullName != nil {
			profile.FullName = trimmedOrNil(req.FullName)
		}
		if req.AvatarSeed != nil {
			profile.AvatarURL = avatarURL(s.avatarBaseURL, *req.AvatarSeed)
		}
		if err := s.profiles.UpdateDetails(ctx, tx, profile); err != nil {
			return storeError(err, "profile not found", "failed to update profile")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// avatarURL derives the avatar locator from a seed. An empty seed clears the avatar.
func avatarURL(base, seed string) *string {
	seed = strings.TrimSpace(seed)
	if seed == "" || base == "" {
		return nil
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	v := base + sep + "seed=" + url.QueryEscape(seed)
	return &v
}
