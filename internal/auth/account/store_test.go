package account

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"socialregistration/internal/auth"
	"socialregistration/internal/auth/credentials"
	"socialregistration/internal/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewStore(&db.DB{DB: sqlDB}), mock
}

func TestCreate(t *testing.T) {
	store, mock := newMockStore(t)
	userID := uuid.New()
	profileID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("alice", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(userID.String(), now))
	mock.ExpectQuery("INSERT INTO social_profiles").
		WithArgs(userID.String(), "twitter", "42", "key", "secret").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(profileID.String(), now))
	mock.ExpectCommit()

	u := User{Username: " alice ", Email: "alice@example.com"}
	p := NewProfile(&auth.Identity{Provider: "twitter", ExternalID: "42", AccessKey: "key", AccessSecret: "secret"})

	require.NoError(t, store.Create(context.Background(), &u, &p, nil))
	assert.Equal(t, userID, u.ID)
	assert.True(t, u.Saved())
	assert.Equal(t, profileID, p.ID)
	assert.Equal(t, userID, p.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUsernameTaken(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: db.ConstraintUsernameUnique})
	mock.ExpectRollback()

	u := User{Username: "taken"}
	p := Profile{Provider: "facebook", ExternalID: "123"}

	err := store.Create(context.Background(), &u, &p, nil)
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.False(t, u.Saved())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProfileAlreadyLinked(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.NewString(), time.Now()))
	mock.ExpectQuery("INSERT INTO social_profiles").
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: db.ConstraintProfileUnique})
	mock.ExpectRollback()

	u := User{Username: "bob"}
	p := Profile{Provider: "facebook", ExternalID: "123"}

	err := store.Create(context.Background(), &u, &p, nil)
	assert.ErrorIs(t, err, ErrProfileLinked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkProfileCreates(t *testing.T) {
	store, mock := newMockStore(t)
	userID := uuid.New()

	mock.ExpectQuery("ON CONFLICT \\(provider, external_id\\) DO NOTHING").
		WithArgs(userID.String(), "facebook", "123", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.NewString(), time.Now()))

	p := Profile{Provider: "facebook", ExternalID: "123"}
	created, err := store.LinkProfile(context.Background(), userID, &p)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, userID, p.UserID)
}

func TestLinkProfileExisting(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name    string
		owner   uuid.UUID
		wantErr error
	}{
		{"same user", userID, nil},
		{"other user", uuid.New(), ErrProfileLinked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)

			mock.ExpectQuery("INSERT INTO social_profiles").
				WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
			mock.ExpectQuery("SELECT id, user_id, created_at").
				WithArgs("facebook", "123").
				WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at"}).
					AddRow(uuid.NewString(), tt.owner.String(), time.Now()))

			p := Profile{Provider: "facebook", ExternalID: "123"}
			created, err := store.LinkProfile(context.Background(), userID, &p)

			assert.False(t, created)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLinkProfileProviderInUse(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO social_profiles").
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: db.ConstraintUserProviderUnique})

	p := Profile{Provider: "facebook", ExternalID: "999"}
	_, err := store.LinkProfile(context.Background(), uuid.New(), &p)
	assert.ErrorIs(t, err, ErrProviderInUse)
}

func TestProfile(t *testing.T) {
	store, mock := newMockStore(t)
	userID := uuid.New()
	profileID := uuid.New()

	mock.ExpectQuery("FROM social_profiles").
		WithArgs(userID.String(), "twitter").
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id", "oauth_access_key", "oauth_access_secret", "created_at"}).
			AddRow(profileID.String(), "42", "k", "s", time.Now()))

	p, err := store.Profile(context.Background(), userID, "twitter")
	require.NoError(t, err)
	assert.Equal(t, profileID, p.ID)
	assert.Equal(t, "42", p.ExternalID)
	assert.Equal(t, "k", p.OAuthAccessKey)
}

func TestProfileNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM social_profiles").WillReturnError(sql.ErrNoRows)

	_, err := store.Profile(context.Background(), uuid.New(), "twitter")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfileTokens(t *testing.T) {
	store, mock := newMockStore(t)
	profileID := uuid.New()

	mock.ExpectExec("UPDATE social_profiles").
		WithArgs(profileID.String(), "new-key", "new-secret").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.UpdateProfileTokens(context.Background(), profileID, "new-key", "new-secret"))

	mock.ExpectExec("UPDATE social_profiles").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.UpdateProfileTokens(context.Background(), profileID, "k", "s"), ErrNotFound)
}

func TestGetUser(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("FROM users").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"username", "email", "created_at"}).AddRow("alice", nil, time.Now()))

	u, err := store.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Empty(t, u.Email)
}

func TestTranslateWrapsUnknownErrors(t *testing.T) {
	boom := errors.New("connection reset")
	err := translate(boom)

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestCreateWithCredential(t *testing.T) {
	store, mock := newMockStore(t)
	userID := uuid.New()
	now := time.Now()

	cred, err := credentials.NewCredential("correct horse")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(userID.String(), now))
	mock.ExpectQuery("INSERT INTO social_profiles").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.NewString(), now))
	mock.ExpectQuery("INSERT INTO credentials").
		WithArgs(userID.String(), cred.PasswordHash, credentials.HashVersionBcrypt).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(uuid.NewString(), now, now))
	mock.ExpectCommit()

	u := User{Username: "alice"}
	p := Profile{Provider: "facebook", ExternalID: "123"}

	require.NoError(t, store.Create(context.Background(), &u, &p, cred))
	assert.Equal(t, userID, cred.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCredentialFailureRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	cred, err := credentials.NewCredential("correct horse")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.NewString(), time.Now()))
	mock.ExpectQuery("INSERT INTO social_profiles").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.NewString(), time.Now()))
	mock.ExpectQuery("INSERT INTO credentials").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	u := User{Username: "alice"}
	p := Profile{Provider: "facebook", ExternalID: "123"}

	assert.Error(t, store.Create(context.Background(), &u, &p, cred))
	assert.NoError(t, mock.ExpectationsWereMet())
}
