package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"circle/internal/apperr"
	"circle/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789"

func TestAccessToken_RoundTrip(t *testing.T) {
	s := NewTokenService(nil, testSecret, 15*time.Minute, time.Hour)

	token, err := s.IssueAccessToken(&models.User{ID: 7, Username: "ada", Role: models.RoleUser})
	require.NoError(t, err)

	claims, err := s.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID())
	assert.Equal(t, "ada", claims.Username)
	assert.Equal(t, models.RoleUser, claims.Role)

	id, err := s.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)
}

func TestAccessToken_Expired(t *testing.T) {
	s := NewTokenService(nil, testSecret, time.Minute, time.Hour)
	issued := time.Now().Add(-time.Hour)
	s.now = func() time.Time { return issued }
	token, err := s.IssueAccessToken(&models.User{ID: 1})
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.ParseAccessToken(token)
	require.Error(t, err)
	assert.Equal(t, "token_expired", apperr.Translate(err).Code)
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))
}

func TestAccessToken_WrongSecret(t *testing.T) {
	a := NewTokenService(nil, testSecret, time.Minute, time.Hour)
	b := NewTokenService(nil, "another-secret-0123456789", time.Minute, time.Hour)

	token, err := a.IssueAccessToken(&models.User{ID: 1})
	require.NoError(t, err)

	_, err = b.ParseAccessToken(token)
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))
}

func TestAccessToken_RejectsRefreshAudience(t *testing.T) {
	s := NewTokenService(nil, testSecret, time.Minute, time.Hour)
	claims := jwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{audienceRefresh},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = s.ParseAccessToken(token)
	assert.Error(t, err)
}

func TestAccessToken_RejectsNoneAlg(t *testing.T) {
	s := NewTokenService(nil, testSecret, time.Minute, time.Hour)
	claims := AccessClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{audienceAccess},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.ParseAccessToken(token)
	assert.Error(t, err)
}

func signRefresh(t *testing.T, jti string, userID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   userID,
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{audienceRefresh},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestRotateRefreshToken_ReuseRevokesAll(t *testing.T) {
	gdb, mock := newMockDB(t)
	s := NewTokenService(gdb, testSecret, time.Minute, time.Hour)

	token := signRefresh(t, "jti-1", "5")
	revokedAt := time.Now().Add(-time.Minute)
	mock.ExpectQuery(`SELECT \* FROM "refresh_tokens"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "revoked_at"}).
			AddRow("jti-1", 5, hashToken(token), time.Now().Add(time.Hour), revokedAt))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "refresh_tokens" SET "revoked_at"`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	_, _, err := s.RotateRefreshToken(context.Background(), token, "test")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshToken_HashMismatch(t *testing.T) {
	gdb, mock := newMockDB(t)
	s := NewTokenService(gdb, testSecret, time.Minute, time.Hour)

	token := signRefresh(t, "jti-2", "5")
	mock.ExpectQuery(`SELECT \* FROM "refresh_tokens"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at"}).
			AddRow("jti-2", 5, "not-the-hash", time.Now().Add(time.Hour)))

	_, _, err := s.RotateRefreshToken(context.Background(), token, "test")
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshToken_Garbage(t *testing.T) {
	s := NewTokenService(nil, testSecret, time.Minute, time.Hour)
	_, _, err := s.RotateRefreshToken(context.Background(), "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))

	_, _, err = s.RotateRefreshToken(context.Background(), "", "")
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))
}

func TestPurgeExpired(t *testing.T) {
	gdb, mock := newMockDB(t)
	s := NewTokenService(gdb, testSecret, time.Minute, time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "refresh_tokens" WHERE`).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	n, err := s.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
