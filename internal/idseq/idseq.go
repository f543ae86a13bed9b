// Package idseq 生成学号 STU-<year>-<5 位序号>。
//
// 计数器按年份分区存放在 student_sequences 表中，只在注册写入的同一事务里递增，
// 多实例部署下也不会重复发号。
package idseq

import (
	"fmt"
	"strconv"
	"strings"

	"student-records/internal/domain"
)

const (
	Prefix = "STU"
	MaxSeq = 99999
)

// Format 组装学号；序号越界视为致命配置错误
func Format(year, seq int) (string, error) {
	if seq > MaxSeq {
		return "", domain.SequenceExhausted(year)
	}
	if seq <= 0 || year < 1000 || year > 9999 {
		return "", fmt.Errorf("idseq: invalid year/seq %d/%d", year, seq)
	}
	return fmt.Sprintf("%s-%04d-%05d", Prefix, year, seq), nil
}

// Parse 拆解学号
func Parse(id string) (year, seq int, err error) {
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[0] != Prefix || len(parts[1]) != 4 || len(parts[2]) != 5 {
		return 0, 0, fmt.Errorf("idseq: malformed student id %q", id)
	}
	if year, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("idseq: malformed year in %q", id)
	}
	if seq, err = strconv.Atoi(parts[2]); err != nil || seq <= 0 {
		return 0, 0, fmt.Errorf("idseq: malformed sequence in %q", id)
	}
	return year, seq, nil
}

// YearPrefix 某年学号的公共前缀，用于 LIKE 查询
func YearPrefix(year int) string { return fmt.Sprintf("%s-%04d-", Prefix, year) }
