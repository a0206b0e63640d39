package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Username           string `gorm:"uniqueIndex;size:64"`
	PasswordHash       string `gorm:"size:255"`
	Role               string `gorm:"size:16;default:employee"`
	MustChangePassword bool   `gorm:"default:false"`
	CompanyID          *uint  `gorm:"index"`
}

// Template 表示可复用的 HR 文档模板。
// FieldTags 与 Settings 以 JSONB 存储；Version 用于乐观并发控制。
type Template struct {
	gorm.Model
	DocumentName     string         `gorm:"size:255"`
	FieldTags        datatypes.JSON `gorm:"type:jsonb"`
	Content          string         `gorm:"type:text"`
	Settings         datatypes.JSON `gorm:"type:jsonb"`
	Version          int            `gorm:"not null;default:1"`
	CompanyID        *uint          `gorm:"index"`
	UserID           uint           `gorm:"index"`
	PreviewImageURL  string         `gorm:"size:512"`
	PreviewObjectKey string         `gorm:"size:512"`
}

// 生成文档的状态。
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// GeneratedDocument 记录一次异步生成的结果。
type GeneratedDocument struct {
	gorm.Model
	TemplateID   uint           `gorm:"index"`
	UserID       uint           `gorm:"index"`
	FieldValues  datatypes.JSON `gorm:"type:jsonb"`
	Filename     string         `gorm:"size:255"`
	ObjectKey    string         `gorm:"size:512"`
	Status       string         `gorm:"size:32;index"`
	Pages        int
	ErrorMessage string `gorm:"size:1024"`
}

// SalarySlip 表示某员工某一期的工资单。金额均以最小货币单位存储。
type SalarySlip struct {
	gorm.Model
	EmployeeID       uint           `gorm:"index"`
	EmployeeName     string         `gorm:"size:255"`
	CompanyName      string         `gorm:"size:255"`
	Period           string         `gorm:"size:7;index"`
	Currency         string         `gorm:"size:3"`
	Earnings         datatypes.JSON `gorm:"type:jsonb"`
	Deductions       datatypes.JSON `gorm:"type:jsonb"`
	IssuedBy         uint
	VerificationCode string `gorm:"size:64;uniqueIndex"`
}
