package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/hitoshi/weatherdesk/internal/model"
)

// NewPostgresProfileRepoが正しく初期化されることを検証
func TestNewPostgresProfileRepo_Initializes(t *testing.T) {
	if NewPostgresProfileRepo(nil) == nil {
		t.Fatal("expected non-nil repo")
	}
	if NewPostgresWeatherRequestRepo(nil) == nil {
		t.Fatal("expected non-nil repo")
	}
}

// UUIDでないIDはDBに問い合わせずに未存在として扱う
func TestPostgresProfileRepo_FindByID_NonUUID(t *testing.T) {
	repo := NewPostgresProfileRepo(nil)
	p, err := repo.FindByID(context.Background(), "not-a-uuid")
	if err != nil || p != nil {
		t.Errorf("FindByID() = %+v, %v, want nil, nil", p, err)
	}
}

func TestPostgresProfileRepo_Create_InvalidUserID(t *testing.T) {
	repo := NewPostgresProfileRepo(nil)
	if err := repo.Create(context.Background(), &model.UserProfile{ID: "bad"}); err == nil {
		t.Error("expected error for non-UUID user id")
	}
}

func TestPostgresWeatherRequestRepo_Create_InvalidUserID(t *testing.T) {
	repo := NewPostgresWeatherRequestRepo(nil)
	if err := repo.Create(context.Background(), &model.WeatherRequestLog{UserID: "bad"}); err == nil {
		t.Error("expected error for non-UUID user id")
	}
}

func TestPgWriteError_UniqueViolation(t *testing.T) {
	err := pgWriteError("insert failed", fmt.Errorf("exec: %w", &pq.Error{Code: "23505", Constraint: "user_profiles_pkey"}))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("err = %v, want ErrDuplicateKey", err)
	}

	err = pgWriteError("insert failed", &pq.Error{Code: "23503"})
	if errors.Is(err, ErrDuplicateKey) {
		t.Errorf("foreign key violation should not map to ErrDuplicateKey")
	}
}

func TestNullHelpers(t *testing.T) {
	if v := nullInt(nil); v.Valid {
		t.Error("nullInt(nil) should be NULL")
	}
	if v := nullInt(intPtr(0)); !v.Valid || v.Int64 != 0 {
		t.Errorf("nullInt(0) = %+v, want valid 0", v)
	}
	if v := nullFloat(floatPtr(3.5)); !v.Valid || v.Float64 != 3.5 {
		t.Errorf("nullFloat(3.5) = %+v", v)
	}
	if v := nullString(nil); v.Valid {
		t.Error("nullString(nil) should be NULL")
	}
	if jsonbValue(nil) != nil {
		t.Error("jsonbValue(nil) should be nil")
	}
	if jsonbValue([]byte(`{"a":1}`)) != `{"a":1}` {
		t.Error("jsonbValue should pass JSON as string")
	}
}
