package idseq

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"student-records/internal/feature/student"
)

// Sequencer 库内计数器（arena = 年份，index = 序号）
type Sequencer struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, l *zap.Logger) *Sequencer {
	return &Sequencer{db: db, log: l.Named("idseq")}
}

// Next 分配下一个学号。tx 必须是注册写入所在的事务：
// UPDATE 持有计数行的行锁直到事务结束，失败回滚时序号一并回滚，不会出现空洞或重复。
func (s *Sequencer) Next(tx *gorm.DB, year int) (string, error) {
	if err := ensureRow(tx, year); err != nil {
		return "", err
	}
	res := tx.Model(&student.SequenceModel{}).
		Where("year = ?", year).
		Update("last_value", gorm.Expr("last_value + ?", 1))
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected != 1 {
		return "", fmt.Errorf("idseq: counter row for %d missing", year)
	}

	var row student.SequenceModel
	if err := tx.Where("year = ?", year).Take(&row).Error; err != nil {
		return "", err
	}
	id, err := Format(year, int(row.LastValue))
	if err != nil {
		s.log.Error("student id sequence exhausted", zap.Int("year", year), zap.Int64("last_value", row.LastValue))
		return "", err
	}
	return id, nil
}

// Current 当前已发放的最大序号，未发放过为 0
func (s *Sequencer) Current(ctx context.Context, year int) (int64, error) {
	var row student.SequenceModel
	err := s.db.WithContext(ctx).Where("year = ?", year).Limit(1).Find(&row).Error
	if err != nil {
		return 0, err
	}
	return row.LastValue, nil
}

// Reconcile 把计数器抬到 students 表中该年已存在的最大序号（只升不降）。
// 启动时调用，用于数据导入 / 手工修复之后的自愈。
func (s *Sequencer) Reconcile(ctx context.Context, year int) (int64, error) {
	var out int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRow(tx, year); err != nil {
			return err
		}
		var maxID string
		if err := tx.Model(&student.StudentModel{}).
			Where("student_id LIKE ?", YearPrefix(year)+"%").
			Select("COALESCE(MAX(student_id), '')").
			Scan(&maxID).Error; err != nil {
			return err
		}
		var maxSeq int64
		if maxID != "" {
			_, seq, err := Parse(maxID)
			if err != nil {
				return err
			}
			maxSeq = int64(seq)
		}
		res := tx.Model(&student.SequenceModel{}).
			Where("year = ? AND last_value < ?", year, maxSeq).
			Update("last_value", maxSeq)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			s.log.Warn("student id counter behind stored ids, raised",
				zap.Int("year", year), zap.Int64("last_value", maxSeq))
		}
		var row student.SequenceModel
		if err := tx.Where("year = ?", year).Take(&row).Error; err != nil {
			return err
		}
		out = row.LastValue
		return nil
	})
	return out, err
}

// ensureRow 首次使用某年份时建计数行；并发建行由主键冲突 + DO NOTHING 吸收
func ensureRow(tx *gorm.DB, year int) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&student.SequenceModel{Year: year}).Error
}
