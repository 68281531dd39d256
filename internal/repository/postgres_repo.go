package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/weatherdesk/internal/model"
)

// uniqueViolation は一意制約違反のSQLSTATE。
const uniqueViolation pq.ErrorCode = "23505"

// PostgresProfileRepo はPostgreSQLを直接使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定ユーザーIDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	p := &model.UserProfile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, full_name, email FROM user_profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Username, &p.FullName, &p.Email)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	return p, nil
}

// Create はプロフィールを作成する。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile *model.UserProfile) error {
	if _, err := uuid.Parse(profile.ID); err != nil {
		return fmt.Errorf("invalid user id %q: %w", profile.ID, err)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (id, username, full_name, email, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		profile.ID, profile.Username, profile.FullName, profile.Email, time.Now(),
	)
	if err != nil {
		return pgWriteError("プロフィールの作成に失敗しました", err)
	}
	return nil
}

// PostgresWeatherRequestRepo はPostgreSQLを直接使用した検索履歴リポジトリ。
type PostgresWeatherRequestRepo struct {
	db *sql.DB
}

// NewPostgresWeatherRequestRepo はPostgresWeatherRequestRepoを生成する。
func NewPostgresWeatherRequestRepo(db *sql.DB) *PostgresWeatherRequestRepo {
	return &PostgresWeatherRequestRepo{db: db}
}

// Create は検索履歴を1件追加する。IDが空の場合は新規UUIDを採番する。
func (r *PostgresWeatherRequestRepo) Create(ctx context.Context, entry *model.WeatherRequestLog) error {
	if _, err := uuid.Parse(entry.UserID); err != nil {
		return fmt.Errorf("invalid user id %q: %w", entry.UserID, err)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO weather_requests
		 (id, user_id, username, city, temperature, description, feels_like, humidity, wind_speed, weather_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.UserID, entry.Username, entry.City,
		nullInt(entry.Temperature), nullString(entry.Description), nullInt(entry.FeelsLike),
		nullFloat(entry.Humidity), nullFloat(entry.WindSpeed),
		jsonbValue(entry.RawPayload), entry.CreatedAt,
	)
	if err != nil {
		return pgWriteError("検索履歴の作成に失敗しました", err)
	}
	return nil
}

// pgWriteError は一意制約違反をErrDuplicateKeyに変換する。
func pgWriteError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", msg, ErrDuplicateKey, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// jsonbValue は生のJSONをjsonb列に渡せる値にする。空ならNULL。
func jsonbValue(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// compile-time interface check
var (
	_ ProfileRepository        = (*PostgresProfileRepo)(nil)
	_ WeatherRequestRepository = (*PostgresWeatherRequestRepo)(nil)
)
