// Package profile はuser_profilesへのプロフィール行の作成を提供する。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/hitoshi/weatherdesk/internal/model"
	"github.com/hitoshi/weatherdesk/internal/repository"
)

// Writer はプロフィール行の作成を担う。作成後の更新は行わない。
type Writer struct {
	repo   repository.ProfileRepository
	logger *slog.Logger
}

// NewWriter はWriterを生成する。
func NewWriter(repo repository.ProfileRepository, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{repo: repo, logger: logger}
}

// CreateUserProfile はサインアップ直後のプロフィール行を作成する。
// 既存行の確認は行わず、同一IDの行があればrepository.ErrDuplicateKeyを返す。
func (w *Writer) CreateUserProfile(ctx context.Context, user *model.User, username, fullName string) (*model.UserProfile, error) {
	if user == nil || user.ID == "" {
		return nil, errors.New("user is required")
	}

	p := &model.UserProfile{
		ID:       user.ID,
		Username: username,
		FullName: fullName,
		Email:    user.Email,
	}
	if err := w.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create user profile: %w", err)
	}

	w.logger.Info("user profile created",
		slog.String("user_id", user.ID),
		slog.String("username", username),
	)
	return p, nil
}

// CreateGoogleUserProfile はGoogleログインユーザーのプロフィール行を用意する。
// 既に存在する場合は変更せずにそのまま返すため、何度呼んでも結果は同じ。
func (w *Writer) CreateGoogleUserProfile(ctx context.Context, user *model.User) (*model.UserProfile, error) {
	if user == nil || user.ID == "" {
		return nil, errors.New("user is required")
	}

	existing, err := w.repo.FindByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing profile: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	p := &model.UserProfile{
		ID:       user.ID,
		Username: DeriveUsername(user),
		FullName: googleFullName(user),
		Email:    user.Email,
	}
	if err := w.repo.Create(ctx, p); err != nil {
		// 確認と挿入の間に別リクエストが作成した場合
		if errors.Is(err, repository.ErrDuplicateKey) {
			existing, findErr := w.repo.FindByID(ctx, user.ID)
			if findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create google user profile: %w", err)
	}

	w.logger.Info("google user profile created",
		slog.String("user_id", user.ID),
		slog.String("username", p.Username),
	)
	return p, nil
}

// DeriveUsername はOAuthユーザーのユーザー名を決める。
// preferred_username → メールアドレスの@より前 → 空白を除いて小文字にしたフルネーム の順。
func DeriveUsername(user *model.User) string {
	if v := user.MetadataString("preferred_username"); v != "" {
		return v
	}
	if v := model.EmailLocalPart(user.Email); v != "" {
		return v
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, googleFullName(user))
}

func googleFullName(user *model.User) string {
	if v := user.MetadataString("full_name"); v != "" {
		return v
	}
	return user.MetadataString("name")
}
