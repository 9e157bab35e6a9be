// Package sweep 重新計算並修正與結算決策不一致的拍賣狀態。
// 掃描對每場拍賣執行 解析時刻 -> 彙總出價 -> 結算決策 -> 條件寫入，
// 單場拍賣的失敗只會記錄在報告中，不會中止整個掃描。
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/smallnest/chanx"

	"lelong/models"
	"lelong/settlement"
)

// ErrSweepLocked 表示另一個掃描正在執行或無法取得掃描鎖
var ErrSweepLocked = errors.New("reconciliation sweep is locked")

type sweepOptions struct {
	logger    *slog.Logger
	workers   int
	now       func() time.Time
	lock      ILocker
	publisher IPublisher
}

type Option func(*sweepOptions)

// WithLogger 設置日誌記錄器
func WithLogger(logger *slog.Logger) Option {
	return func(o *sweepOptions) {
		o.logger = logger
	}
}

// WithWorkers 設置同時檢查的拍賣數上限
func WithWorkers(n int) Option {
	return func(o *sweepOptions) {
		o.workers = n
	}
}

// WithClock 設置評估用的時鐘，測試時可注入固定時刻
func WithClock(now func() time.Time) Option {
	return func(o *sweepOptions) {
		o.now = now
	}
}

// WithLock 設置跨程序的掃描鎖
func WithLock(lock ILocker) Option {
	return func(o *sweepOptions) {
		o.lock = lock
	}
}

// WithPublisher 設置修正事件的發佈者
func WithPublisher(p IPublisher) Option {
	return func(o *sweepOptions) {
		o.publisher = p
	}
}

// Sweep 為對帳掃描器，對不同拍賣的修正彼此獨立、可並行
type Sweep struct {
	store    AuctionStore
	listings ListingStore
	logger   *slog.Logger
	options  sweepOptions
}

func New(store AuctionStore, listings ListingStore, opts ...Option) (*Sweep, error) {
	if store == nil {
		return nil, errors.New("auction store cannot be nil")
	}
	if listings == nil {
		return nil, errors.New("listing store cannot be nil")
	}

	// 默認選項
	options := sweepOptions{
		logger:  slog.Default(),
		workers: 4,
		now:     time.Now,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}
	if options.workers < 1 {
		options.workers = 1
	}

	return &Sweep{
		store:    store,
		listings: listings,
		logger:   options.logger.With(slog.String("caller", "Sweep")),
		options:  options,
	}, nil
}

// Run 執行一次完整掃描並回傳報告。
// 只有兩種情況會讓掃描中止：候選清單無法取得（致命，不碰任何拍賣），
// 以及呼叫端取消（已處理的結果仍會連同 ctx 錯誤一併回傳）
func (s *Sweep) Run(ctx context.Context) (*Report, error) {
	const op = "Sweep.Run"

	if s.options.lock != nil {
		lockCtx, err := s.options.lock.Lock(ctx)
		if err != nil {
			return nil, fmt.Errorf("[%s] %w, err=%v", op, ErrSweepLocked, err)
		}
		defer func() {
			if _, err := s.options.lock.Unlock(); err != nil {
				s.logger.Warn("fail to release sweep lock", slog.Any("error", err))
			}
		}()
		ctx = lockCtx
	}

	startedAt := s.options.now()
	auctions, err := s.store.ListSettleable(ctx)
	if err != nil {
		return nil, fmt.Errorf("[%s] fail to enumerate settleable auctions, err=%w", op, err)
	}
	s.logger.Info("sweep started", slog.Int("candidates", len(auctions)))

	// 檢查結果經由無界通道匯集，避免 worker 因慢速收集端阻塞
	collectCtx, collectCancel := context.WithCancel(context.Background())
	defer collectCancel()
	results := chanx.NewUnboundedChan[Entry](collectCtx, len(auctions)+1)

	entries := make([]Entry, 0, len(auctions))
	var collector sync.WaitGroup
	collector.Add(1)
	go func() {
		defer collector.Done()
		for entry := range results.Out {
			entries = append(entries, entry)
		}
	}()

	sem := make(chan struct{}, s.options.workers)
	var wg sync.WaitGroup
	cancelled := false
	for _, auction := range auctions {
		// 取消只發生在拍賣與拍賣之間，單場修正不會做到一半
		select {
		case <-ctx.Done():
			cancelled = true
		case sem <- struct{}{}:
			wg.Add(1)
			go func(a models.Auction) {
				defer wg.Done()
				defer func() { <-sem }()
				results.In <- s.inspect(ctx, a)
			}(auction)
		}
		if cancelled {
			break
		}
	}
	wg.Wait()
	close(results.In)
	collector.Wait()

	report := &Report{
		Inspected:  len(entries),
		Corrected:  lo.CountBy(entries, func(e Entry) bool { return e.Corrected }),
		Errored:    lo.CountBy(entries, func(e Entry) bool { return e.Err != "" }),
		StartedAt:  startedAt,
		FinishedAt: s.options.now(),
		Entries:    entries,
	}
	report.Unchanged = report.Inspected - report.Corrected - report.Errored

	s.logger.Info("sweep finished",
		slog.Int("inspected", report.Inspected),
		slog.Int("corrected", report.Corrected),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("errored", report.Errored),
	)

	if cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// inspect 對單場拍賣執行讀取、決策與（必要時的）修正
func (s *Sweep) inspect(ctx context.Context, auction models.Auction) Entry {
	logger := s.logger.With(slog.String("auctionID", auction.ID.String()))
	entry := Entry{
		AuctionID:  auction.ID,
		ProductID:  auction.ProductID,
		Previous:   auction.Status,
		Recomputed: auction.Status,
	}

	endsAt, err := settlement.Resolve(auction.EndsAt)
	if err != nil {
		entry.Err = err.Error()
		logger.Warn("unresolvable end instant", slog.String("endsAt", auction.EndsAt), slog.Any("error", err))
		return entry
	}

	reserve, err := auction.ReserveMoney()
	if err != nil {
		entry.Err = err.Error()
		logger.Warn("unparseable reserve price", slog.Any("error", err))
		return entry
	}

	bids, err := s.store.BidsForAuction(ctx, auction.ID)
	if err != nil {
		entry.Err = err.Error()
		logger.Warn("fail to read bids", slog.Any("error", err))
		return entry
	}

	summary, hasBids := settlement.Summarize(bids)
	input := settlement.Input{
		Status:        auction.Status,
		ReservePrice:  reserve,
		WindowElapsed: settlement.WindowElapsed(endsAt, s.options.now()),
	}
	if hasBids {
		input.HighestBid = &summary.HighestAmount
	}

	outcome := settlement.Evaluate(input)
	entry.Recomputed = outcome.Status
	entry.Reason = outcome.Reason
	if outcome.Status == auction.Status {
		return entry
	}

	var winner *settlement.Summary
	if hasBids {
		winner = &summary
	}
	applied, err := s.store.TransitionStatus(ctx, auction.ID, auction.Status, outcome.Status, winner)
	if err != nil {
		entry.Err = err.Error()
		logger.Error("fail to apply correction", slog.Any("error", err))
		return entry
	}
	if !applied {
		// 狀態在讀取後被其他流程合法推進，放棄這次修正
		entry.Skipped = true
		logger.Info("correction skipped, status moved since read")
		return entry
	}
	entry.Corrected = true
	logger.Info("status corrected",
		slog.String("from", string(auction.Status)),
		slog.String("to", string(outcome.Status)),
		slog.String("reason", outcome.Reason),
	)

	// 進入 pending 時連帶更新商品刊登，失敗只記為警告不回滾拍賣修正
	if outcome.Status == models.AuctionStatusPending {
		if err := s.listings.SetListingStatus(ctx, auction.ProductID, models.ListingStatusPending); err != nil {
			entry.Warning = fmt.Sprintf("listing cascade failed: %v", err)
			logger.Warn("fail to cascade listing status", slog.Any("error", err))
		}
	}

	if s.options.publisher != nil {
		event := CorrectionEvent{
			AuctionID:  auction.ID,
			ProductID:  auction.ProductID,
			Previous:   auction.Status,
			Corrected:  outcome.Status,
			Reason:     outcome.Reason,
			OccurredAt: s.options.now(),
		}
		if err := s.options.publisher.Publish(event); err != nil {
			logger.Warn("fail to publish correction event", slog.Any("error", err))
		}
	}

	return entry
}
