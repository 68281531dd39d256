package session

import (
	"context"
	"log/slog"

	"github.com/hitoshi/weatherdesk/internal/auth"
	"github.com/hitoshi/weatherdesk/internal/model"
	"github.com/hitoshi/weatherdesk/internal/supabase"
)

// GoogleProfileCreator はGoogleログインユーザーのプロフィールを用意する。
type GoogleProfileCreator interface {
	CreateGoogleUserProfile(ctx context.Context, user *model.User) (*model.UserProfile, error)
}

// GoogleProfileHook はGoogleでサインインしたユーザーのプロフィール行を作成するHookを返す。
// 失敗はログに出すのみでサインイン自体は継続する。
func GoogleProfileHook(creator GoogleProfileCreator, logger *slog.Logger) Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, event auth.Event, sess *model.Session) {
		if event != auth.EventSignedIn || sess == nil || sess.User == nil {
			return
		}
		if sess.Provider != model.ProviderGoogle {
			return
		}

		ctx = supabase.ContextWithAccessToken(context.WithoutCancel(ctx), sess.AccessToken)
		if _, err := creator.CreateGoogleUserProfile(ctx, sess.User); err != nil {
			logger.Error("failed to create google user profile",
				slog.String("user_id", sess.UserID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// EventRecorder は認証イベントを記録するメトリクスのインターフェース。
type EventRecorder interface {
	RecordAuthEvent(event string)
}

// MetricsHook は認証イベントをメトリクスに記録するHookを返す。
func MetricsHook(recorder EventRecorder) Hook {
	return func(_ context.Context, event auth.Event, _ *model.Session) {
		recorder.RecordAuthEvent(string(event))
	}
}
