package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNormalizeMySQLDSN(t *testing.T) {
	tests := []struct {
		name string
		in   string
		user string
		pass string
		want string
	}{
		{
			name: "native dsn untouched",
			in:   "root:pw@tcp(127.0.0.1:3306)/school?parseTime=true",
			want: "root:pw@tcp(127.0.0.1:3306)/school?parseTime=true",
		},
		{
			name: "url form",
			in:   "mysql://root:pw@db:3306/school",
			want: "root:pw@tcp(db:3306)/school?charset=utf8mb4&parseTime=true",
		},
		{
			name: "jdbc with overrides",
			in:   "jdbc:mysql://db:3306/school?useSSL=false&characterEncoding=utf8",
			user: "app",
			pass: "secret",
			want: "app:secret@tcp(db:3306)/school?charset=utf8&parseTime=true&tls=false",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeMySQLDSN(tt.in, tt.user, tt.pass))
		})
	}
}

func TestUniqueViolation(t *testing.T) {
	c, ok := UniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uk_students_mobile"}))
	assert.True(t, ok)
	assert.Equal(t, "uk_students_mobile", c)

	_, ok = UniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)

	c, ok = UniqueViolation(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '9876543210' for key 'students.uk_students_mobile'"})
	assert.True(t, ok)
	assert.Contains(t, c, "uk_students_mobile")

	_, ok = UniqueViolation(gorm.ErrDuplicatedKey)
	assert.True(t, ok)

	c, ok = UniqueViolation(errors.New("UNIQUE constraint failed: students.mobile"))
	assert.True(t, ok)
	assert.Contains(t, c, "students.mobile")

	_, ok = UniqueViolation(errors.New("connection refused"))
	assert.False(t, ok)
	_, ok = UniqueViolation(nil)
	assert.False(t, ok)
}

func TestNewGormRejectsUnknownDriver(t *testing.T) {
	_, err := NewGorm(Opts{Driver: "oracle"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestNewGormSQLite(t *testing.T) {
	db, err := NewGorm(Opts{Driver: "sqlite", DSN: "file:dbtest?mode=memory&cache=shared", MaxOpenConns: 1, MaxIdleConns: 1, LogLevel: "silent"})
	require.NoError(t, err)
	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}
