package database

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"certforge/internal/binding"
)

// Dealer 表示签发证书的经销商（培训机构）。
type Dealer struct {
	gorm.Model
	Name          string `gorm:"size:255"`
	LogoObjectKey string `gorm:"size:512"`
}

// Student 表示证书持有人。国民身份证号仅以掩码形式对外展示。
type Student struct {
	gorm.Model
	FirstName  string `gorm:"size:128"`
	LastName   string `gorm:"size:128"`
	NationalID string `gorm:"size:32;index"`
	DealerID   uint   `gorm:"index"`
	Dealer     Dealer `gorm:"constraint:OnDelete:CASCADE"`
}

// Training 表示培训项目。Names 为 JSONB 的语言→名称映射。
type Training struct {
	gorm.Model
	Names           datatypes.JSON `gorm:"type:jsonb"`
	DefaultLanguage string         `gorm:"size:8"`
	DurationHours   int
	DealerID        uint   `gorm:"index"`
	Dealer          Dealer `gorm:"constraint:OnDelete:CASCADE"`
}

// CertificateType 表示证书类型，名称同样按语言本地化。
type CertificateType struct {
	gorm.Model
	Names datatypes.JSON `gorm:"type:jsonb"`
}

// Template 表示证书模板：背景图与设计器保存的布局配置。
// LayoutConfig 作为不透明 JSONB 存储，未知字段在编辑往返中保留。
type Template struct {
	gorm.Model
	Title               string `gorm:"size:255"`
	DealerID            uint   `gorm:"index"`
	Dealer              Dealer `gorm:"constraint:OnDelete:CASCADE"`
	BackgroundObjectKey string `gorm:"size:512"`
	// native pixel size of the background image
	BackgroundWidth  int
	BackgroundHeight int
	LayoutConfig     datatypes.JSON `gorm:"type:jsonb"`
	PreviewObjectKey string         `gorm:"size:512"`
}

// Certificate 表示一次签发。VerifyToken 是面向公众核验的不透明查询令牌。
type Certificate struct {
	gorm.Model
	CertificateNo     string `gorm:"uniqueIndex;size:64"`
	VerifyToken       string `gorm:"uniqueIndex;size:64"`
	IssueDate         datatypes.Date
	StudentID         uint            `gorm:"index"`
	Student           Student         `gorm:"constraint:OnDelete:CASCADE"`
	TrainingID        uint            `gorm:"index"`
	Training          Training        `gorm:"constraint:OnDelete:CASCADE"`
	CertificateTypeID uint            `gorm:"index"`
	CertificateType   CertificateType `gorm:"constraint:OnDelete:CASCADE"`
	TemplateID        uint            `gorm:"index"`
	Template          Template        `gorm:"constraint:OnDelete:CASCADE"`
	// 每语言渲染产物：语言代码 → 对象键。
	RenderedObjects datatypes.JSONMap `gorm:"type:jsonb"`
	Status          string            `gorm:"size:32"`
}

// BindingRecord 把已预加载关联的证书行装配成渲染/核验用的只读记录。
func (c *Certificate) BindingRecord() binding.Record {
	return binding.Record{
		CertificateNo: c.CertificateNo,
		IssueDate:     time.Time(c.IssueDate),
		VerifyToken:   c.VerifyToken,
		Student: binding.Student{
			FirstName: c.Student.FirstName,
			LastName:  c.Student.LastName,
		},
		Dealer: binding.Dealer{
			Name:          c.Student.Dealer.Name,
			LogoObjectKey: c.Student.Dealer.LogoObjectKey,
		},
		Training: binding.Training{
			Names:           DecodeNames(c.Training.Names),
			DefaultLanguage: c.Training.DefaultLanguage,
			DurationHours:   c.Training.DurationHours,
		},
		CertificateType: binding.CertificateType{
			Names: DecodeNames(c.CertificateType.Names),
		},
	}
}

// DecodeNames 解码 JSONB 的语言→名称映射；损坏的数据当作空映射处理。
func DecodeNames(raw datatypes.JSON) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var names map[string]string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil
	}
	return names
}

// AllModels 列出自动迁移所需的全部模型。
func AllModels() []any {
	return []any{
		&Dealer{},
		&Student{},
		&Training{},
		&CertificateType{},
		&Template{},
		&Certificate{},
	}
}
