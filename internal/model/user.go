// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// ProviderGoogle はGoogle OAuthでログインしたユーザーのプロバイダー名。
const ProviderGoogle = "google"

// User は認証プロバイダーが管理するユーザーレコードを表す。
type User struct {
	ID               string
	Email            string
	UserMetadata     map[string]any
	AppMetadata      map[string]any
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
}

// MetadataString はuser_metadataから文字列値を取得する。存在しない場合は空文字列。
func (u *User) MetadataString(key string) string {
	if u == nil || u.UserMetadata == nil {
		return ""
	}
	v, ok := u.UserMetadata[key].(string)
	if !ok {
		return ""
	}
	return v
}

// Provider はapp_metadata.providerを返す。
func (u *User) Provider() string {
	if u == nil || u.AppMetadata == nil {
		return ""
	}
	v, _ := u.AppMetadata["provider"].(string)
	return v
}

// DisplayName はヘッダー表示用の名前を返す。
// username → full_name → "User" の順で採用する。
func (u *User) DisplayName() string {
	if name := u.MetadataString("username"); name != "" {
		return name
	}
	if name := u.MetadataString("full_name"); name != "" {
		return name
	}
	return "User"
}

// Session は現在認証中のユーザーのローカルな記録を表す。
// 認証状態が変わるたびに丸ごと置き換えられ、部分的に更新されることはない。
type Session struct {
	UserID      string
	Email       string
	DisplayName string
	Provider    string

	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time

	User *User
}

// NewSession はユーザーとトークンからSessionを生成する。
func NewSession(user *User, accessToken, refreshToken string, expiresAt time.Time) *Session {
	s := &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}
	if user != nil {
		s.UserID = user.ID
		s.Email = user.Email
		s.DisplayName = user.DisplayName()
		s.Provider = user.Provider()
	}
	return s
}

// UserProfile はuser_profilesテーブルの行を表す。
// 作成後にこのシステムが更新することはない。
type UserProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// EmailLocalPart はメールアドレスの@より前の部分を返す。
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
