package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// UniqueViolation 判断是否唯一约束冲突；返回冲突所在的约束/索引描述（可能为空）
func UniqueViolation(err error) (constraint string, ok bool) {
	if err == nil {
		return "", false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // unique_violation
			return pgErr.ConstraintName, true
		}
		return "", false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number == 1062 { // ER_DUP_ENTRY: ... for key 'students.uk_students_mobile'
			return myErr.Message, true
		}
		return "", false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	// sqlite: "UNIQUE constraint failed: students.mobile"
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return msg, true
	}
	return "", false
}

// IsNotFound gorm 未找到
func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
