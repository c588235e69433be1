package user

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewRepository(db), mock
}

func TestGetUserByWallet_NormalizesAddress(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := sqlmock.NewRows([]string{"id", "wallet_address", "role", "is_active", "settings", "nft_holdings"}).
		AddRow("u1", "0xabc0000000000000000000000000000000000123", "user", true, `{"language":"en","currency":"USD"}`, `[{"tokenId":"7"}]`)
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE wallet_address = \$1`).
		WillReturnRows(rows)

	u, err := repo.GetUserByWallet(context.Background(), "0xABC0000000000000000000000000000000000123")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "en", u.Settings.Language)
	require.Len(t, u.NFTHoldings, 1)
	assert.JSONEq(t, `{"tokenId":"7"}`, string(u.NFTHoldings[0]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByWallet_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE wallet_address = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetUserByWallet(context.Background(), "0xabc0000000000000000000000000000000000123")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestExistsByWallet(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "users" WHERE wallet_address = \$1`).
		WithArgs("0xabc0000000000000000000000000000000000123").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsByWallet(context.Background(), "0xAbc0000000000000000000000000000000000123")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
