package sqlstore

import (
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open 打开 MySQL 连接池（结构化数据主库）。
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
