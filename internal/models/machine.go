package models

import (
	"strings"
	"time"
)

// IntervalUnit 自动测试间隔单位
type IntervalUnit string

const (
	UnitSeconds IntervalUnit = "seconds"
	UnitMinutes IntervalUnit = "minutes"
	UnitHours   IntervalUnit = "hours"
)

func ParseIntervalUnit(s string) (IntervalUnit, bool) {
	switch IntervalUnit(strings.ToLower(strings.TrimSpace(s))) {
	case UnitSeconds, "":
		return UnitSeconds, true
	case UnitMinutes:
		return UnitMinutes, true
	case UnitHours:
		return UnitHours, true
	}
	return "", false
}

func (u IntervalUnit) Duration() time.Duration {
	switch u {
	case UnitMinutes:
		return time.Minute
	case UnitHours:
		return time.Hour
	default:
		return time.Second
	}
}

// Machine 已登记的远程机器（即一条凭据记录）
type Machine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Host string `json:"host" gorm:"type:varchar(255)"`
	// 小写主机名，唯一；查重忽略大小写
	HostKey string `json:"-" gorm:"type:varchar(255);uniqueIndex"`

	User     string `json:"user" gorm:"type:varchar(128)"`
	Password string `json:"-"    gorm:"type:text"` // AES-GCM 密文

	AutoTestIntervalValue uint         `json:"auto_test_interval_value"`
	AutoTestIntervalUnit  IntervalUnit `json:"auto_test_interval_unit" gorm:"type:varchar(16);default:seconds"`

	Online       bool       `json:"online"`
	LastTestedAt *time.Time `json:"last_tested_at"`
}

// AutoTestInterval 为 0 表示不自动测试
func (m *Machine) AutoTestInterval() time.Duration {
	return time.Duration(m.AutoTestIntervalValue) * m.AutoTestIntervalUnit.Duration()
}

// 统一规整：去空格、主机键小写、默认单位
func (m *Machine) Normalize() {
	m.Host = strings.TrimSpace(m.Host)
	m.User = strings.TrimSpace(m.User)
	m.HostKey = HostKey(m.Host)
	if m.AutoTestIntervalUnit == "" {
		m.AutoTestIntervalUnit = UnitSeconds
	}
}

func HostKey(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}
