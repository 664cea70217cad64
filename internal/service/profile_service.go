package service

import (
	"context"

	"github.com/kazumasamatsumoto/api-insta/internal/models"
	"github.com/kazumasamatsumoto/api-insta/internal/observability"
	"github.com/kazumasamatsumoto/api-insta/internal/repository"
	"github.com/kazumasamatsumoto/api-insta/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// ProfileInput carries the client-writable profile fields. A nil field was
// not supplied. Any owner value sent by the client never reaches this struct.
type ProfileInput struct {
	NickName *string
	Avatar   *Upload
}

type ProfileService struct {
	repo  repository.ProfileRepository
	media MediaStore
}

func NewProfileService(repo repository.ProfileRepository, media MediaStore) *ProfileService {
	return &ProfileService{repo: repo, media: media}
}

func (s *ProfileService) ListProfiles(ctx context.Context, limit, offset int) ([]models.Profile, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListOwnProfile returns the caller's profiles, never anyone else's.
func (s *ProfileService) ListOwnProfile(ctx context.Context, actingAccountID uint) ([]models.Profile, error) {
	return s.repo.ListByOwner(ctx, actingAccountID)
}

func (s *ProfileService) GetProfile(ctx context.Context, id uint) (*models.Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProfile creates the acting account's profile.
func (s *ProfileService) CreateProfile(ctx context.Context, actingAccountID uint, in ProfileInput) (_ *models.Profile, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "CreateProfile", attribute.Int64("account.id", int64(actingAccountID)))
	defer func() { observability.EndSpan(span, err) }()

	nick, err := cleanRequired("nick_name", in.NickName, models.MaxNickNameLength)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByOwner(ctx, actingAccountID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, models.NewValidationError("Profile already exists")
	}

	profile := &models.Profile{NickName: nick, OwnerID: actingAccountID}
	if in.Avatar != nil {
		stored, err := s.media.Save(ctx, models.AvatarPath(actingAccountID, nick, in.Avatar.Filename), in.Avatar)
		if err != nil {
			return nil, err
		}
		profile.Avatar = &stored
	}

	if err := s.repo.Create(ctx, profile); err != nil {
		if profile.Avatar != nil {
			s.media.Remove(ctx, *profile.Avatar)
		}
		return nil, err
	}

	observability.RecordDomainEvent("profile", "create")
	return profile, nil
}

// UpdateProfile applies in to the profile. With partial false the nick name
// is required, as for a full replacement. The owner never changes.
func (s *ProfileService) UpdateProfile(ctx context.Context, id uint, in ProfileInput, partial bool) (_ *models.Profile, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "UpdateProfile", attribute.Int64("profile.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.NickName != nil || !partial {
		nick, err := cleanRequired("nick_name", in.NickName, models.MaxNickNameLength)
		if err != nil {
			return nil, err
		}
		profile.NickName = nick
	}

	previous := profile.Avatar
	var stored string
	if in.Avatar != nil {
		stored, err = s.media.Save(ctx, models.AvatarPath(profile.OwnerID, profile.NickName, in.Avatar.Filename), in.Avatar)
		if err != nil {
			return nil, err
		}
		profile.Avatar = &stored
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		s.media.Remove(ctx, unreferenced(stored, previous))
		return nil, err
	}
	if stored != "" && previous != nil {
		s.media.Remove(ctx, unreferenced(*previous, &stored))
	}

	observability.RecordDomainEvent("profile", "update")
	return profile, nil
}

func (s *ProfileService) DeleteProfile(ctx context.Context, id uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "service", "DeleteProfile", attribute.Int64("profile.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if profile.Avatar != nil {
		s.media.Remove(ctx, *profile.Avatar)
	}

	observability.RecordDomainEvent("profile", "delete")
	return nil
}

// unreferenced returns path unless kept still points at it; the result is the
// file an update leaves without a row.
func unreferenced(path string, kept *string) string {
	if kept != nil && *kept == path {
		return ""
	}
	return path
}

// cleanRequired strips markup from a required free-text field and checks its length.
func cleanRequired(field string, value *string, maxLength int) (string, error) {
	if value == nil {
		return "", models.NewValidationError(field + " is required")
	}
	cleaned, err := validation.CleanText(field, *value, maxLength)
	if err != nil {
		return "", models.NewValidationError(err.Error())
	}
	return cleaned, nil
}
