package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// Invite redemption failures
var (
	ErrInviteInvalid = errors.New("invalid invite code")
	ErrInviteUsed    = errors.New("invite already used")
	ErrInviteExpired = errors.New("invite expired")
	ErrUsernameTaken = errors.New("username already exists")
)

func invitesWithUser(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Invite{}).
		Select("invites.*, users.username AS used_by_username").
		Joins("LEFT JOIN users ON users.id = invites.used_by")
}

// CreateInvite inserts an invite.
func (s *Store) CreateInvite(ctx context.Context, invite *models.Invite) error {
	if err := s.db.WithContext(ctx).Create(invite).Error; err != nil {
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}

// ListInvites returns every invite, newest first, with the redeeming username.
func (s *Store) ListInvites(ctx context.Context) ([]models.Invite, error) {
	var invites []models.Invite
	err := invitesWithUser(s.db.WithContext(ctx)).Order("invites.created_at DESC").Find(&invites).Error
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	return invites, nil
}

// GetInviteByCode loads an invite by its code, case-insensitively.
func (s *Store) GetInviteByCode(ctx context.Context, code string) (*models.Invite, error) {
	var invite models.Invite
	err := s.db.WithContext(ctx).First(&invite, "code = ?", strings.ToUpper(strings.TrimSpace(code))).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &invite, nil
}

// CheckInvite returns the invite for code when it can still be redeemed.
func (s *Store) CheckInvite(ctx context.Context, code string, now time.Time) (*models.Invite, error) {
	invite, err := s.GetInviteByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInviteInvalid
	}
	if err != nil {
		return nil, err
	}
	return invite, redeemable(invite, now)
}

func redeemable(invite *models.Invite, now time.Time) error {
	if invite.IsUsed() {
		return ErrInviteUsed
	}
	if invite.IsExpired(now) {
		return ErrInviteExpired
	}
	return nil
}

// DeleteInvite removes an invite.
func (s *Store) DeleteInvite(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Invite{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete invite: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RegisterWithInvite creates user and redeems code in one transaction. The
// redemption is a conditional update, so two registrations racing for the
// same code cannot both succeed.
func (s *Store) RegisterWithInvite(ctx context.Context, user *models.User, code string, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invite models.Invite
		err := tx.First(&invite, "code = ?", strings.ToUpper(strings.TrimSpace(code))).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInviteInvalid
		}
		if err != nil {
			return fmt.Errorf("load invite: %w", err)
		}
		if err := redeemable(&invite, now); err != nil {
			return err
		}

		var taken int64
		if err := tx.Model(&models.User{}).Where("username = ?", user.Username).Count(&taken).Error; err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken > 0 {
			return ErrUsernameTaken
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		res := tx.Model(&models.Invite{}).
			Where("id = ? AND used_by IS NULL", invite.ID).
			Updates(map[string]any{"used_by": user.ID, "used_at": now.UTC()})
		if res.Error != nil {
			return fmt.Errorf("redeem invite: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInviteUsed
		}
		return nil
	})
}
