package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld 表示掃描鎖已被其他程序持有
var ErrLockHeld = errors.New("sweep lock held by another process")

// SweepLock 是基於 redsync 的跨程序掃描鎖
// 與一般互斥鎖不同，拿不到鎖時立即失敗而不重試，
// 讓呼叫端可以直接回報「已有掃描在執行」；
// 持有期間會自動續期，掃描時間超過鎖的過期時間也不會失效
type SweepLock struct {
	mutex    *redsync.Mutex
	cancel   context.CancelFunc
	renewing bool
	mu       sync.Mutex
	wg       sync.WaitGroup
	options  sweepLockOptions
}

type sweepLockOptions struct {
	expiry        time.Duration
	renewInterval time.Duration
}

type SweepLockOption func(*sweepLockOptions)

// WithSweepLockExpiry 設置鎖過期時間
func WithSweepLockExpiry(d time.Duration) SweepLockOption {
	return func(o *sweepLockOptions) {
		o.expiry = d
	}
}

// WithSweepLockRenewInterval 設置自動續期間隔
func WithSweepLockRenewInterval(d time.Duration) SweepLockOption {
	return func(o *sweepLockOptions) {
		o.renewInterval = d
	}
}

// NewSweepLock 建立一個新的掃描鎖
func NewSweepLock(client *redis.Client, key string, opts ...SweepLockOption) ISweepLock {
	// 默認選項
	options := sweepLockOptions{
		expiry:        30 * time.Second,
		renewInterval: 0, // 會在下面根據expiry計算
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	// 如果未設置續期間隔，使用過期時間的1/3
	if options.renewInterval <= 0 {
		options.renewInterval = options.expiry / 3
	}

	pool := goredis.NewPool(client)
	rs := redsync.New(pool)

	mutex := rs.NewMutex(
		key,
		redsync.WithExpiry(options.expiry),
		redsync.WithTries(1),
	)

	return &SweepLock{
		mutex:   mutex,
		options: options,
	}
}

// Lock 嘗試取得鎖，成功時啟動自動續期並回傳與鎖生命週期綁定的context
// 鎖被其他程序持有時回傳 ErrLockHeld
func (l *SweepLock) Lock(ctx context.Context) (context.Context, error) {
	if err := l.mutex.TryLockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrLockHeld, err)
	}

	lockCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.startAutoRenew(lockCtx)
	return lockCtx, nil
}

// Unlock 停止自動續期並釋放鎖
func (l *SweepLock) Unlock() (bool, error) {
	l.stopAutoRenew()
	l.wg.Wait()
	return l.mutex.Unlock()
}

// Valid 檢查鎖是否仍然有效
func (l *SweepLock) Valid() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Now().Before(l.mutex.Until()) && l.renewing
}

func (l *SweepLock) startAutoRenew(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.renewing {
		return
	}

	l.renewing = true
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.options.renewInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				success, err := l.mutex.Extend()
				if err != nil || !success {
					l.stopAutoRenew()
					return
				}
			}
		}
	}()
}

func (l *SweepLock) stopAutoRenew() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.renewing {
		return
	}

	l.renewing = false
	if l.cancel != nil {
		l.cancel()
	}
}
