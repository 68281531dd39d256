package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hitoshi/weatherdesk/internal/model"
	"github.com/hitoshi/weatherdesk/internal/repository"
)

// --- モック定義 ---

// memoryProfileRepo はメモリ上のProfileRepository。一意制約を再現する。
type memoryProfileRepo struct {
	mu       sync.Mutex
	rows     map[string]model.UserProfile
	creates  int
	findErr  error
	createFn func(p *model.UserProfile) error
}

func newMemoryProfileRepo() *memoryProfileRepo {
	return &memoryProfileRepo{rows: map[string]model.UserProfile{}}
}

func (r *memoryProfileRepo) FindByID(_ context.Context, id string) (*model.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memoryProfileRepo) Create(_ context.Context, p *model.UserProfile) error {
	if r.createFn != nil {
		if err := r.createFn(p); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if _, ok := r.rows[p.ID]; ok {
		return fmt.Errorf("insert: %w", repository.ErrDuplicateKey)
	}
	r.rows[p.ID] = *p
	return nil
}

// --- テスト ---

func TestCreateUserProfile_InsertsRow(t *testing.T) {
	repo := newMemoryProfileRepo()
	w := NewWriter(repo, nil)
	user := &model.User{ID: "user-1", Email: "a@example.com"}

	p, err := w.CreateUserProfile(context.Background(), user, "alice", "Alice Smith")
	if err != nil {
		t.Fatalf("CreateUserProfile() error = %v", err)
	}
	want := model.UserProfile{ID: "user-1", Username: "alice", FullName: "Alice Smith", Email: "a@example.com"}
	if *p != want {
		t.Errorf("profile = %+v, want %+v", *p, want)
	}
	if repo.rows["user-1"] != want {
		t.Errorf("stored row = %+v", repo.rows["user-1"])
	}
}

func TestCreateUserProfile_DuplicateKey(t *testing.T) {
	repo := newMemoryProfileRepo()
	w := NewWriter(repo, nil)
	user := &model.User{ID: "user-1", Email: "a@example.com"}

	if _, err := w.CreateUserProfile(context.Background(), user, "alice", "Alice"); err != nil {
		t.Fatalf("first CreateUserProfile() error = %v", err)
	}
	_, err := w.CreateUserProfile(context.Background(), user, "alice2", "Alice")
	if !errors.Is(err, repository.ErrDuplicateKey) {
		t.Errorf("second CreateUserProfile() error = %v, want ErrDuplicateKey", err)
	}
	// 既存行は変更されない
	if repo.rows["user-1"].Username != "alice" {
		t.Errorf("username = %q, want alice", repo.rows["user-1"].Username)
	}
}

func TestCreateUserProfile_NilUser(t *testing.T) {
	w := NewWriter(newMemoryProfileRepo(), nil)
	if _, err := w.CreateUserProfile(context.Background(), nil, "a", "b"); err == nil {
		t.Error("expected error for nil user")
	}
}

func TestCreateGoogleUserProfile_Idempotent(t *testing.T) {
	repo := newMemoryProfileRepo()
	w := NewWriter(repo, nil)
	user := &model.User{
		ID:           "user-g",
		Email:        "jane.doe@gmail.com",
		UserMetadata: map[string]any{"name": "Jane Doe"},
	}

	first, err := w.CreateGoogleUserProfile(context.Background(), user)
	if err != nil {
		t.Fatalf("CreateGoogleUserProfile() error = %v", err)
	}
	second, err := w.CreateGoogleUserProfile(context.Background(), user)
	if err != nil {
		t.Fatalf("second CreateGoogleUserProfile() error = %v", err)
	}

	if *first != *second {
		t.Errorf("profiles differ: %+v vs %+v", first, second)
	}
	if repo.creates != 1 {
		t.Errorf("inserts = %d, want 1", repo.creates)
	}
	if first.Username != "jane.doe" {
		t.Errorf("Username = %q, want jane.doe", first.Username)
	}
	if first.FullName != "Jane Doe" {
		t.Errorf("FullName = %q, want Jane Doe", first.FullName)
	}
}

func TestCreateGoogleUserProfile_ExistingRowUnchanged(t *testing.T) {
	repo := newMemoryProfileRepo()
	repo.rows["user-g"] = model.UserProfile{ID: "user-g", Username: "custom", FullName: "Custom", Email: "old@example.com"}
	w := NewWriter(repo, nil)

	p, err := w.CreateGoogleUserProfile(context.Background(), &model.User{ID: "user-g", Email: "new@gmail.com"})
	if err != nil {
		t.Fatalf("CreateGoogleUserProfile() error = %v", err)
	}
	if p.Username != "custom" || p.Email != "old@example.com" {
		t.Errorf("profile = %+v, want existing row", p)
	}
	if repo.creates != 0 {
		t.Errorf("inserts = %d, want 0", repo.creates)
	}
}

func TestCreateGoogleUserProfile_RaceReturnsExisting(t *testing.T) {
	repo := newMemoryProfileRepo()
	// 確認後・挿入前に別経路で行が作られた状況を再現する
	repo.createFn = func(p *model.UserProfile) error {
		repo.mu.Lock()
		repo.rows[p.ID] = model.UserProfile{ID: p.ID, Username: "winner"}
		repo.mu.Unlock()
		repo.createFn = nil
		return nil
	}
	w := NewWriter(repo, nil)

	p, err := w.CreateGoogleUserProfile(context.Background(), &model.User{ID: "user-r", Email: "r@gmail.com"})
	if err != nil {
		t.Fatalf("CreateGoogleUserProfile() error = %v", err)
	}
	if p.Username != "winner" {
		t.Errorf("Username = %q, want the concurrently created row", p.Username)
	}
}

func TestCreateGoogleUserProfile_FindError(t *testing.T) {
	repo := newMemoryProfileRepo()
	repo.findErr = errors.New("connection reset")
	w := NewWriter(repo, nil)

	if _, err := w.CreateGoogleUserProfile(context.Background(), &model.User{ID: "user-g"}); err == nil {
		t.Error("expected error when lookup fails")
	}
	if repo.creates != 0 {
		t.Errorf("inserts = %d, want 0 when lookup fails", repo.creates)
	}
}

func TestDeriveUsername(t *testing.T) {
	tests := []struct {
		name string
		user *model.User
		want string
	}{
		{
			name: "preferred_username wins",
			user: &model.User{Email: "x@gmail.com", UserMetadata: map[string]any{"preferred_username": "jdoe", "full_name": "J Doe"}},
			want: "jdoe",
		},
		{
			name: "email local part",
			user: &model.User{Email: "john.smith@gmail.com", UserMetadata: map[string]any{"full_name": "John Smith"}},
			want: "john.smith",
		},
		{
			name: "full name lowercased without whitespace",
			user: &model.User{UserMetadata: map[string]any{"full_name": "Mary Ann  Lee"}},
			want: "maryannlee",
		},
		{
			name: "name claim when full_name missing",
			user: &model.User{UserMetadata: map[string]any{"name": "Bob\tJones"}},
			want: "bobjones",
		},
		{
			name: "nothing available",
			user: &model.User{},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveUsername(tt.user); got != tt.want {
				t.Errorf("DeriveUsername() = %q, want %q", got, tt.want)
			}
		})
	}
}
