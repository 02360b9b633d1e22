package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN("app", "pw", "db", "3306", "svc")
	assert.Contains(t, dsn, "app:pw@tcp(db:3306)/svc?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestStatements(t *testing.T) {
	stmts := Statements()
	require.Len(t, stmts, 6)
	for _, s := range stmts {
		assert.Regexp(t, `^CREATE TABLE IF NOT EXISTS \w+`, s)
	}
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, s := range Statements() {
		mock.ExpectExec(regexp.QuoteMeta(s)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS user_roles").WillReturnError(errors.New("denied"))
	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 1")
}
