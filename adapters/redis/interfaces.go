package redis

import (
	"context"
)

// IPublisher 定義了 Publisher 的操作介面
type IPublisher[T any] interface {
	Start()
	Publish(data T) error
	Close()
}

// ISweepLock 定義了跨程序掃描鎖的操作介面
type ISweepLock interface {
	Lock(ctx context.Context) (context.Context, error)
	Unlock() (bool, error)
	Valid() bool
}
