package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"circle/internal/apperr"
	"circle/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsGet_DefaultsWhenMissing(t *testing.T) {
	gdb, mock := newMockDB(t)
	s := NewSettingsService(gdb, nil)

	mock.ExpectQuery(`SELECT \* FROM "user_settings"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := s.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(4), got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsUpdate_InvalidTheme(t *testing.T) {
	gdb, mock := newMockDB(t)
	s := NewSettingsService(gdb, nil)

	mock.ExpectQuery(`SELECT \* FROM "user_settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "theme"}).AddRow(1, 4, "light"))

	theme := "neon"
	_, err := s.Update(context.Background(), 4, SettingsInput{Theme: &theme})
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsUpdate_CreatesMissingRow(t *testing.T) {
	gdb, mock := newMockDB(t)
	s := NewSettingsService(gdb, nil)

	mock.ExpectQuery(`SELECT \* FROM "user_settings"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "user_settings"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectCommit()

	theme, off := models.ThemeDark, false
	got, err := s.Update(context.Background(), 4, SettingsInput{Theme: &theme, NotifyLikes: &off})
	require.NoError(t, err)
	assert.Equal(t, uint(9), got.ID)
	assert.Equal(t, models.ThemeDark, got.Theme)
	assert.False(t, got.NotifyLikes)
	assert.True(t, got.NotifyComments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePassword_TooShort(t *testing.T) {
	gdb, mock := newMockDB(t)
	s := NewSettingsService(gdb, nil)

	err := s.ChangePassword(context.Background(), 1, "old-password", "short")
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	gdb, mock := newMockDB(t)
	s := NewSettingsService(gdb, nil)

	hash, err := hashForTest("right-password")
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "password"}).AddRow(1, hash))

	err = s.ChangePassword(context.Background(), 1, "wrong-password", "new-password")
	appErr := apperr.Translate(err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Contains(t, appErr.Details, "current_password")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePassword_RevokesSessions(t *testing.T) {
	gdb, mock := newMockDB(t)
	s := NewSettingsService(gdb, NewTokenService(gdb, testSecret, time.Minute, time.Hour))

	hash, err := hashForTest("right-password")
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "password"}).AddRow(1, hash))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET "password"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "refresh_tokens" SET "revoked_at"`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, s.ChangePassword(context.Background(), 1, "right-password", "new-password"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAccount_WrongPassword(t *testing.T) {
	gdb, mock := newMockDB(t)
	s := NewSettingsService(gdb, nil)

	hash, err := hashForTest("right-password")
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "password"}).AddRow(1, hash))

	err = s.DeleteAccount(context.Background(), 1, "nope")
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAccount_AdjustsCountersBeforeDelete(t *testing.T) {
	gdb, mock := newMockDB(t)
	s := NewSettingsService(gdb, nil)

	hash, err := hashForTest("right-password")
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "password"}).AddRow(1, hash))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET follower_count`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE users SET following_count`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE posts SET like_count`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE comments SET like_count`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "id" FROM "posts"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery(`SELECT "id" FROM "comments"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`DELETE FROM "likes"`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM "notifications"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "users"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteAccount(context.Background(), 1, "right-password"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
