package api

import "time"

type ServerConfig struct {
	DB    DBConfig
	Redis RedisConfig
	Sweep SweepConfig
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// LockKey 為跨程序掃描鎖的key
	LockKey string

	StreamKeys RedisStreamKeys
}

type RedisStreamKeys struct {
	// Corrections 為修正事件發佈的stream
	Corrections string
}

type SweepConfig struct {
	// Workers 為同時檢查的拍賣數上限
	Workers int
	// Interval 為內建排程的執行間隔，0 表示停用（交由外部cron觸發）
	Interval time.Duration
}
