package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Connect はPostgreSQLへの接続を開き、疎通を確認して返す。
// コンテナ環境ではDBの起動がアプリより遅れることがあるため、
// Pingを短い間隔で数回リトライする。
func Connect(databaseURL string) (*sql.DB, error) {
	return connect(databaseURL, 5, time.Second)
}

func connect(databaseURL string, attempts int, retryUnit time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	var pingErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if pingErr = db.Ping(); pingErr == nil {
			return db, nil
		}
		time.Sleep(time.Duration(attempt+1) * retryUnit)
	}

	db.Close()
	return nil, fmt.Errorf("failed to connect to database: %w", pingErr)
}
