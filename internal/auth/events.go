package auth

import (
	"context"
	"sync"

	"github.com/hitoshi/weatherdesk/internal/model"
)

// Event は認証状態変更の種類を表す。
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Listener は認証状態変更の通知を受け取る関数。
// sessはサインアウト時にnilとなる。ctxは状態変更を引き起こした呼び出しのもの。
type Listener func(ctx context.Context, event Event, sess *model.Session)

// Subscription はOnAuthStateChangeで登録したリスナーの購読を表す。
type Subscription interface {
	Unsubscribe()
}

type listenerEntry struct {
	id uint64
	fn Listener
}

type subscription struct {
	id   uint64
	g    *Gateway
	once sync.Once
}

// Unsubscribe はリスナーを解除する。複数回呼んでも安全。
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.g.removeListener(s.id)
	})
}

// OnAuthStateChange はリスナーを登録する。
// リスナーは登録順に、状態変更を起こしたゴルーチン上で同期的に呼ばれる。
func (g *Gateway) OnAuthStateChange(fn Listener) Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := g.nextID
	g.listeners = append(g.listeners, listenerEntry{id: id, fn: fn})
	return &subscription{id: id, g: g}
}

// ListenerCount は登録中のリスナー数を返す。
func (g *Gateway) ListenerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.listeners)
}

func (g *Gateway) removeListener(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, l := range g.listeners {
		if l.id == id {
			g.listeners = append(g.listeners[:i:i], g.listeners[i+1:]...)
			return
		}
	}
}

// emit はロック外でリスナーを呼び出す。
func (g *Gateway) emit(ctx context.Context, event Event, sess *model.Session) {
	g.mu.Lock()
	listeners := make([]listenerEntry, len(g.listeners))
	copy(listeners, g.listeners)
	g.mu.Unlock()

	for _, l := range listeners {
		l.fn(ctx, event, sess)
	}
}
