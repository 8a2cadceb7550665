package database

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DatabaseOptions 数据库配置选项
type DatabaseOptions struct {
	Name         string
	Dialector    gorm.Dialector
	GormConfig   *gorm.Config
	MaxIdleConns int
	MaxOpenConns int
	MaxLifetime  time.Duration
	AutoMigrate  []any // 需要自动迁移的模型
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, dialector gorm.Dialector) *DatabaseOptions {
	return &DatabaseOptions{
		Name:         name,
		Dialector:    dialector,
		GormConfig:   &gorm.Config{},
		MaxIdleConns: 10,
		MaxOpenConns: 100,
		MaxLifetime:  time.Hour,
	}
}

// Validate 验证配置
func (o *DatabaseOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if o.Dialector == nil {
		return fmt.Errorf("database dialector is required")
	}
	return nil
}

// databaseSection 配置文件中一个数据库的结构
type databaseSection struct {
	Driver       string `json:"driver"`
	DSN          string `json:"dsn"`
	MaxIdleConns int    `json:"max_idle_conns"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxLifetime  string `json:"max_lifetime"`
}

func (s databaseSection) apply(o *DatabaseOptions) error {
	if s.DSN != "" {
		dialector, err := openDialector(s.Driver, s.DSN)
		if err != nil {
			return err
		}
		o.Dialector = dialector
	}
	if s.MaxIdleConns > 0 {
		o.MaxIdleConns = s.MaxIdleConns
	}
	if s.MaxOpenConns > 0 {
		o.MaxOpenConns = s.MaxOpenConns
	}
	if s.MaxLifetime != "" {
		d, err := time.ParseDuration(s.MaxLifetime)
		if err != nil {
			return fmt.Errorf("max_lifetime: %w", err)
		}
		o.MaxLifetime = d
	}
	return nil
}

// openDialector 按驱动名称创建 dialector，目前内置 sqlite
func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "", "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q, pass a dialector in code instead", driver)
	}
}
