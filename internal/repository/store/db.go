package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fanpage-server/internal/model"
)

const fullTextIndex = "idx_posts_fulltext"

// Open 按驱动名打开数据库并做一次 Ping
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		// 级联删除在业务层显式完成，不依赖数据库外键
		DisableForeignKeyConstraintWhenMigrating: true,
		// 唯一索引冲突统一翻译为 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sql db handle: %w", err)
	}
	if driver == "sqlite" {
		// sqlite 单写者，连接数放开会出现 database is locked
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// Migrate 建表，并按方言建立全文索引
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Post{},
		&model.Comment{},
		&model.PostLike{},
		&model.ContentOutbox{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if db.Migrator().HasIndex(&model.Post{}, fullTextIndex) {
		return nil
	}
	switch db.Dialector.Name() {
	case "mysql":
		return db.Exec("ALTER TABLE posts ADD FULLTEXT INDEX " + fullTextIndex + " (title, content)").Error
	case "postgres":
		return db.Exec("CREATE INDEX IF NOT EXISTS " + fullTextIndex +
			" ON posts USING GIN (to_tsvector('english', title || ' ' || content))").Error
	}
	return nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
