package student

import (
	"time"

	"gorm.io/datatypes"
)

// StudentModel students 表；student_id 与 mobile 各有唯一索引，version 为乐观锁列
type StudentModel struct {
	ID          uint64            `gorm:"primaryKey;autoIncrement"`
	StudentID   string            `gorm:"uniqueIndex:uk_students_student_id;size:16;not null"`
	FirstName   string            `gorm:"size:64;not null"`
	LastName    string            `gorm:"size:64;not null"`
	Email       string            `gorm:"size:191"`
	Mobile      string            `gorm:"uniqueIndex:uk_students_mobile;size:16;not null"`
	DateOfBirth time.Time         `gorm:"not null"`
	Status      string            `gorm:"size:16;not null;index"`
	Extra       datatypes.JSONMap `gorm:"type:json"`
	Version     int64             `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (StudentModel) TableName() string { return "students" }

// SequenceModel 按年份分区的学号计数器；一行一年
type SequenceModel struct {
	Year      int   `gorm:"primaryKey;autoIncrement:false"`
	LastValue int64 `gorm:"not null;default:0"`

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (SequenceModel) TableName() string { return "student_sequences" }

// Models 迁移清单
func Models() []any { return []any{&StudentModel{}, &SequenceModel{}} }
