package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/novagaze/barforge/internal/config"
)

// MySQL is for connecting and inserting data to mysql.
type MySQL struct {
	DB  *sql.DB
	Cfg *config.MySQL
}

var mysql MySQL

// Go time gives Z00:00, mysql timestamp needs +00:00 for UTC.
const mysqlTimestamp = "2006-01-02T15:04:05.999+00:00"

// InitMySQL initializes mysql connection with configured values.
func InitMySQL(cfg *config.MySQL) (*MySQL, error) {
	if mysql.DB == nil {
		dataSourceName := cfg.User + ":" + cfg.Password + cfg.URL + "/" + cfg.Schema
		db, err := sql.Open("mysql",
			dataSourceName)
		if err != nil {
			return nil, err
		}
		db.SetConnMaxLifetime(time.Second * time.Duration(cfg.ConnMaxLifetimeSec))
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)

		var ctx context.Context
		if cfg.ReqTimeoutSec > 0 {
			timeoutCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ReqTimeoutSec)*time.Second)
			ctx = timeoutCtx
			defer cancel()
		} else {
			ctx = context.Background()
		}
		err = db.PingContext(ctx)
		if err != nil {
			return nil, err
		}
		mysql = MySQL{
			DB:  db,
			Cfg: cfg,
		}
	}
	return &mysql, nil
}

// GetMySQL returns already prepared mysql instance.
func GetMySQL() *MySQL {
	return &mysql
}

// CommitBars batch inserts input bar data to database.
func (m *MySQL) CommitBars(appCtx context.Context, data []BarRow) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO bar(bar_key, venue, symbol, specification, open, high, low, close, volume, timestamp, created_at) VALUES ")
	for i, bar := range data {
		if i != 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("(\"%v\", \"%v\", \"%v\", \"%v\", %v, %v, %v, %v, %v, \"%v\", \"%v\")", bar.Key, bar.Venue, bar.Symbol, bar.Specification, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.Timestamp.Format(mysqlTimestamp), time.Now().UTC().Format(mysqlTimestamp)))
	}
	var ctx context.Context
	if m.Cfg.ReqTimeoutSec > 0 {
		timeoutCtx, cancel := context.WithTimeout(appCtx, time.Duration(m.Cfg.ReqTimeoutSec)*time.Second)
		ctx = timeoutCtx
		defer cancel()
	} else {
		ctx = context.Background()
	}
	_, err := m.DB.ExecContext(ctx, sb.String())
	if err != nil {
		return err
	}
	return nil
}

// CommitTicks batch inserts input tick data to database.
func (m *MySQL) CommitTicks(appCtx context.Context, data []TickRow) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO tick(tick_key, venue, symbol, bid, ask, timestamp, created_at) VALUES ")
	for i, tick := range data {
		if i != 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("(\"%v\", \"%v\", \"%v\", %v, %v, \"%v\", \"%v\")", tick.Key, tick.Venue, tick.Symbol, tick.Bid, tick.Ask, tick.Timestamp.Format(mysqlTimestamp), time.Now().UTC().Format(mysqlTimestamp)))
	}
	var ctx context.Context
	if m.Cfg.ReqTimeoutSec > 0 {
		timeoutCtx, cancel := context.WithTimeout(appCtx, time.Duration(m.Cfg.ReqTimeoutSec)*time.Second)
		ctx = timeoutCtx
		defer cancel()
	} else {
		ctx = context.Background()
	}
	_, err := m.DB.ExecContext(ctx, sb.String())
	if err != nil {
		return err
	}
	return nil
}
