package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	redisAdapter "lelong/adapters/redis"
	"lelong/adapters/store"
	"lelong/models"
	"lelong/settlement"
	"lelong/sweep"
)

// IAuctionReader 為診斷入口所需的唯讀存取介面
type IAuctionReader interface {
	GetAuction(ctx context.Context, auctionID uuid.UUID) (models.Auction, error)
	BidsForAuction(ctx context.Context, auctionID uuid.UUID) ([]settlement.Bid, error)
}

// ISweepRunner 為修正入口所需的掃描介面
type ISweepRunner interface {
	Run(ctx context.Context) (*sweep.Report, error)
}

type ServerImpl struct {
	reader      IAuctionReader
	sweeper     ISweepRunner
	publisher   redisAdapter.IPublisher[sweep.CorrectionEvent]
	redisClient *redis.Client
	db          *gorm.DB
	wg          sync.WaitGroup
	cancelFunc  context.CancelFunc

	config ServerConfig
}

func NewServer(config ServerConfig) (*ServerImpl, error) {
	const op = "NewServer"

	// 初始化資料庫連線
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s", config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: config.DB.Schema + ".",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
	}
	gormStore, err := store.NewGormStore(db)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create store, err=%w", op, err)
	}

	// 初始化Redis連線
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	// 初始化修正事件發佈者
	publisher, err := redisAdapter.NewPublisher[sweep.CorrectionEvent](redisClient, config.Redis.StreamKeys.Corrections)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create correction publisher, err=%w", op, err)
	}

	// 初始化對帳掃描器
	sweeper, err := sweep.New(
		gormStore,
		gormStore,
		sweep.WithLogger(slog.Default()),
		sweep.WithWorkers(config.Sweep.Workers),
		sweep.WithLock(redisAdapter.NewSweepLock(redisClient, config.Redis.LockKey)),
		sweep.WithPublisher(publisher),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create sweep, err=%w", op, err)
	}

	return &ServerImpl{
		reader:      gormStore,
		sweeper:     sweeper,
		publisher:   publisher,
		redisClient: redisClient,
		db:          db,
		config:      config,
	}, nil
}

func (impl *ServerImpl) Start() {
	// 啟動修正事件發佈者
	impl.publisher.Start()

	ctx, cancel := context.WithCancel(context.Background())
	impl.cancelFunc = cancel

	// 掃描的觸發節奏由外部決定，內建排程僅供沒有cron的部署使用
	if impl.config.Sweep.Interval > 0 {
		slog.Info("Start reconciliation scheduler", slog.Duration("interval", impl.config.Sweep.Interval))
		impl.wg.Add(1)
		go func() {
			logger := slog.Default().With(slog.String("caller", "ReconciliationScheduler"))
			defer impl.wg.Done()
			defer slog.Info("Reconciliation scheduler stopped")
			ticker := time.NewTicker(impl.config.Sweep.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					report, err := impl.sweeper.Run(ctx)
					if err != nil {
						if errors.Is(err, sweep.ErrSweepLocked) {
							logger.Info("Skip scheduled sweep, another sweep is running")
							continue
						}
						logger.Error("Scheduled sweep failed", slog.Any("error", err))
						continue
					}
					logger.Info("Scheduled sweep finished",
						slog.Int("inspected", report.Inspected),
						slog.Int("corrected", report.Corrected),
						slog.Int("errored", report.Errored),
					)
				}
			}
		}()
	}
}

func (impl *ServerImpl) Close() {
	// 關閉內建排程
	if impl.cancelFunc != nil {
		impl.cancelFunc()
	}
	impl.wg.Wait()
	// 關閉修正事件發佈者
	impl.publisher.Close()
	// 關閉Redis連線
	if err := impl.redisClient.Close(); err != nil {
		slog.Warn("Fail to close redis client", slog.Any("error", err))
	}
	// 關閉資料庫連線
	if sqlDB, err := impl.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Warn("Fail to close database", slog.Any("error", err))
		}
	}
}
