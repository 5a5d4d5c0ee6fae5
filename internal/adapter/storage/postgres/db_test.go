package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-ledger/config"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "ledger",
		Password:        "secret",
		DBName:          "wallet_ledger",
		SSLMode:         "disable",
		MaxConns:        12,
		MinConns:        3,
		ConnMaxLifetime: 15 * time.Minute,
	}

	poolCfg, err := poolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(12), poolCfg.MaxConns)
	assert.Equal(t, int32(3), poolCfg.MinConns)
	assert.Equal(t, 15*time.Minute, poolCfg.MaxConnLifetime)
	assert.Equal(t, "wallet_ledger", poolCfg.ConnConfig.Database)
	assert.Equal(t, uint16(5432), poolCfg.ConnConfig.Port)
	assert.Equal(t, "wallet-ledger", poolCfg.ConnConfig.RuntimeParams["application_name"])
}

func TestTransactor_Begin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	tr := NewTransactor(mock)
	tx, err := tr.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(context.Background()))

	_, err = tr.Begin(context.Background())
	assert.ErrorContains(t, err, "begin ledger tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolConfig_BadDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "localhost", Port: 5432, SSLMode: "not-a-mode"}

	_, err := poolConfig(cfg)
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	utrErr := &pgconn.PgError{Code: "23505", ConstraintName: "offline_recharge_requests_utr_key"}

	assert.True(t, isUniqueViolation(utrErr, ""))
	assert.True(t, isUniqueViolation(utrErr, "offline_recharge_requests_utr_key"))
	assert.False(t, isUniqueViolation(utrErr, "wallet_transactions_reference_key"))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "40001"}, ""))
	assert.False(t, isUniqueViolation(assert.AnError, ""))
}
