// Package testutil 测试用的内存 sqlite 与种子数据
package testutil

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"student-records/internal/core/database"
	"student-records/internal/feature/student"
)

// DB 每个测试一个独立的内存库。单连接：写事务天然串行，
// 事务内只能使用 tx 句柄，否则会自锁。
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := database.NewGorm(database.Opts{
		Driver:       "sqlite",
		DSN:          dsn,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	if err := database.AutoMigrate(db, student.Models()...); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// PostgresEnv 指向一个可建 schema 的 Postgres（URL 形式 DSN）
const PostgresEnv = "APP_TEST_POSTGRES_DSN"

// Postgres 多连接的真实库，事务可以真正并发；未设置 PostgresEnv 时跳过。
// 每个测试独占一个 schema，结束时删除。
func Postgres(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := os.Getenv(PostgresEnv)
	if dsn == "" {
		tb.Skipf("%s not set", PostgresEnv)
	}
	admin, err := database.NewGorm(database.Opts{Driver: "postgres", DSN: dsn, MaxOpenConns: 1, LogLevel: "silent"})
	if err != nil {
		tb.Fatalf("open postgres: %v", err)
	}
	schema := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := admin.Exec("CREATE SCHEMA " + schema).Error; err != nil {
		tb.Fatalf("create schema: %v", err)
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := database.NewGorm(database.Opts{
		Driver:       "postgres",
		DSN:          dsn + sep + "search_path=" + schema,
		MaxOpenConns: 32,
		MaxIdleConns: 32,
		LogLevel:     "silent",
	})
	if err != nil {
		tb.Fatalf("open postgres schema: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		if sqlDB, err := admin.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := database.AutoMigrate(db, student.Models()...); err != nil {
		tb.Fatalf("migrate postgres: %v", err)
	}
	return db
}

// SeedStudent 绕过服务层直接落一行
func SeedStudent(tb testing.TB, db *gorm.DB, studentID, mobile string) *student.StudentModel {
	tb.Helper()
	m := &student.StudentModel{
		StudentID:   studentID,
		FirstName:   "Seed",
		LastName:    "Row",
		Mobile:      mobile,
		DateOfBirth: time.Date(2012, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:      "ACTIVE",
	}
	if err := db.Create(m).Error; err != nil {
		tb.Fatalf("seed student: %v", err)
	}
	return m
}
