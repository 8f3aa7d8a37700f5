package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"accountdesk/backend/internal/domain"
	"accountdesk/backend/internal/storage"
	"accountdesk/backend/internal/storage/codec"
)

var _ storage.Backend = (*Store)(nil)

// collectionRow 集合表：一行保存一个集合的完整 JSON 数组
type collectionRow struct {
	Name      string `gorm:"primaryKey;size:64"`
	Documents string `gorm:"not null"`
	UpdatedAt time.Time
}

func (collectionRow) TableName() string {
	return "collections"
}

// Store SQL 数据库集合后端（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string // "mysql" or "postgres"
}

// NewStore 创建SQL数据库后端
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	if driverName == "mysql" {
		dialector = mysql.New(mysql.Config{Conn: db})
	} else {
		dialector = postgres.New(postgres.Config{Conn: db})
	}

	gormDB, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Ping()
}

// migrate 执行数据库迁移（使用GORM AutoMigrate）
func (s *Store) migrate() error {
	return s.gormDB.AutoMigrate(&collectionRow{})
}

// Read 读取集合
func (s *Store) Read(ctx context.Context, name string) ([]json.RawMessage, error) {
	var row collectionRow
	if err := s.gormDB.WithContext(ctx).Where("name = ?", name).Take(&row).Error; err != nil {
		return nil, readError(name, err)
	}

	docs, err := codec.Decode([]byte(row.Documents))
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", name, err)
	}
	return docs, nil
}

// Update 在事务内用 SELECT ... FOR UPDATE 锁定集合行后完成读-改-写
func (s *Store) Update(ctx context.Context, name string, fn storage.UpdateFunc) error {
	return s.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row collectionRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", name).
			Take(&row).Error
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorageWrite, readError(name, err))
		}

		docs, err := codec.Decode([]byte(row.Documents))
		if err != nil {
			return fmt.Errorf("%w: collection %q: %w", domain.ErrStorageWrite, name, err)
		}

		updated, err := fn(docs)
		if err != nil {
			return err
		}

		data, err := codec.Encode(updated)
		if err != nil {
			return err
		}

		err = tx.Model(&collectionRow{}).
			Where("name = ?", name).
			Updates(map[string]any{
				"documents":  string(data),
				"updated_at": time.Now().UTC(),
			}).Error
		if err != nil {
			return fmt.Errorf("%w: update collection %q: %v", domain.ErrStorageWrite, name, err)
		}
		return nil
	})
}

// List 列出所有集合名称（按名称排序）
func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string
	err := s.gormDB.WithContext(ctx).
		Model(&collectionRow{}).
		Order("name").
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list collections: %v", domain.ErrStorageRead, err)
	}
	return names, nil
}

// Create 创建空集合，名称已存在时返回 ErrCollectionExists
func (s *Store) Create(ctx context.Context, name string) error {
	row := collectionRow{
		Name:      name,
		Documents: string(codec.EmptyArray),
		UpdatedAt: time.Now().UTC(),
	}

	result := s.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return fmt.Errorf("%w: create collection %q: %v", domain.ErrStorageWrite, name, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrCollectionExists
	}
	return nil
}

// DriverName 返回数据库驱动名称
func (s *Store) DriverName() string {
	return s.driverName
}

func readError(name string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: collection %q not found", domain.ErrStorageRead, name)
	}
	return fmt.Errorf("%w: read collection %q: %v", domain.ErrStorageRead, name, err)
}
