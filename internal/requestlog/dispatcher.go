// Package requestlog は天気検索の成功を検索履歴としてバックグラウンドで記録する。
// 書き込み結果は画面表示に影響せず、診断ログとメトリクスにのみ残る。
package requestlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/weatherdesk/internal/metrics"
	"github.com/hitoshi/weatherdesk/internal/model"
	"github.com/hitoshi/weatherdesk/internal/repository"
	"github.com/hitoshi/weatherdesk/internal/supabase"
	"github.com/hitoshi/weatherdesk/internal/weather"
)

// defaultWriteTimeout は1件の書き込みに許す時間の既定値。
const defaultWriteTimeout = 10 * time.Second

// ResultRecorder は書き込み結果を記録するメトリクスのインターフェース。
type ResultRecorder interface {
	RecordRequestLog(result string)
}

// Dispatcher は検索履歴の書き込みを呼び出し元から切り離して実行する。
// 実行中の書き込みはWaitで待機できる。
type Dispatcher struct {
	repo     repository.WeatherRequestRepository
	recorder ResultRecorder
	logger   *slog.Logger
	timeout  time.Duration

	wg sync.WaitGroup
}

// NewDispatcher はDispatcherを生成する。recorderはnilでもよい。
func NewDispatcher(repo repository.WeatherRequestRepository, recorder ResultRecorder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		timeout:  defaultWriteTimeout,
	}
}

// Dispatch は検索成功1件分の履歴書き込みを開始してすぐに戻る。
// セッションがない場合は何も書き込まない。
// 書き込みはリクエストのキャンセルの影響を受けない。
func (d *Dispatcher) Dispatch(ctx context.Context, sess *model.Session, resp *weather.Response) {
	if sess == nil || sess.UserID == "" || resp == nil {
		d.record(metrics.ResultSkipped)
		return
	}

	entry := NewEntry(sess, resp)
	writeCtx := supabase.ContextWithAccessToken(context.WithoutCancel(ctx), sess.AccessToken)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(writeCtx, d.timeout)
		defer cancel()

		if err := d.repo.Create(ctx, entry); err != nil {
			logErr := model.NewLoggingFailureError(err)
			d.logger.Error("検索履歴の記録に失敗しました",
				slog.String("code", logErr.Code),
				slog.String("user_id", entry.UserID),
				slog.String("city", entry.City),
				slog.String("error", err.Error()),
			)
			d.record(metrics.ResultFailed)
			return
		}

		d.logger.Debug("検索履歴を記録しました",
			slog.String("user_id", entry.UserID),
			slog.String("city", entry.City),
		)
		d.record(metrics.ResultWritten)
	}()
}

// Wait は実行中の書き込みがすべて終わるまで待機する。
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown はctxの期限までに実行中の書き込みの完了を待つ。
// 期限切れの場合はctxのエラーを返す。
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) record(result string) {
	if d.recorder != nil {
		d.recorder.RecordRequestLog(result)
	}
}

// NewEntry はセッションと検索結果から検索履歴の行を組み立てる。
// usernameはuser_metadata.username、なければメールアドレス。
func NewEntry(sess *model.Session, resp *weather.Response) *model.WeatherRequestLog {
	entry := &model.WeatherRequestLog{
		UserID:     sess.UserID,
		Username:   Username(sess),
		City:       resp.City,
		RawPayload: resp.Raw,
	}
	if p := resp.Payload; p != nil {
		entry.Temperature = p.Temperature()
		entry.FeelsLike = p.FeelsLike()
		entry.Description = p.Description()
		entry.Humidity = p.Humidity()
		entry.WindSpeed = p.WindSpeed()
	}
	return entry
}

// Username は履歴に残すユーザー名を返す。
func Username(sess *model.Session) string {
	if name := sess.User.MetadataString("username"); name != "" {
		return name
	}
	return sess.Email
}
