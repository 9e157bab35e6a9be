package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lelong/models"
	"lelong/settlement"
)

// fakeStore 以記憶體資料模擬儲存層，TransitionStatus 具備與真實實作相同的條件更新語意
type fakeStore struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*models.Auction
	bids     map[uuid.UUID][]settlement.Bid

	listErr  error
	bidsErr  map[uuid.UUID]error
	writeErr map[uuid.UUID]error

	transitions []transition
}

type transition struct {
	auctionID uuid.UUID
	from, to  models.AuctionStatus
	winner    *settlement.Summary
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		auctions: make(map[uuid.UUID]*models.Auction),
		bids:     make(map[uuid.UUID][]settlement.Bid),
		bidsErr:  make(map[uuid.UUID]error),
		writeErr: make(map[uuid.UUID]error),
	}
}

func (f *fakeStore) ListSettleable(ctx context.Context) ([]models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Auction
	for _, a := range f.auctions {
		if !a.Status.Settled() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) BidsForAuction(ctx context.Context, auctionID uuid.UUID) ([]settlement.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bidsErr[auctionID]; err != nil {
		return nil, err
	}
	return f.bids[auctionID], nil
}

func (f *fakeStore) TransitionStatus(ctx context.Context, auctionID uuid.UUID, from, to models.AuctionStatus, winner *settlement.Summary) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeErr[auctionID]; err != nil {
		return false, err
	}
	a, ok := f.auctions[auctionID]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	if winner != nil {
		amount := winner.HighestAmount.String()
		a.CurrentBid = &amount
		a.CurrentBidID = lo.ToPtr(winner.WinningBidID)
		a.CurrentBidderID = lo.ToPtr(winner.HighestBidderID)
	}
	f.transitions = append(f.transitions, transition{auctionID: auctionID, from: from, to: to, winner: winner})
	return true, nil
}

type fakeListings struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]models.ListingStatus
	err      error
}

func newFakeListings() *fakeListings {
	return &fakeListings{statuses: make(map[uuid.UUID]models.ListingStatus)}
}

func (f *fakeListings) SetListingStatus(ctx context.Context, productID uuid.UUID, status models.ListingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.statuses[productID] = status
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []CorrectionEvent
}

func (f *fakePublisher) Publish(event CorrectionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

var testNow = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func pastInstant() string {
	return "2025-06-21 14:21:44.615+00"
}

func futureInstant() string {
	return "2025-07-21T14:21:44.615Z"
}

func seedAuction(store *fakeStore, status models.AuctionStatus, reserve *string, endsAt string) *models.Auction {
	a := &models.Auction{
		ID:           uuid.New(),
		ProductID:    uuid.New(),
		ReservePrice: reserve,
		EndsAt:       endsAt,
		Status:       status,
	}
	store.auctions[a.ID] = a
	return a
}

func seedBid(store *fakeStore, auctionID uuid.UUID, amount models.Money, placedAt time.Time) settlement.Bid {
	b := settlement.Bid{
		ID:       uuid.New(),
		BidderID: uuid.New(),
		Amount:   amount,
		PlacedAt: placedAt,
	}
	store.bids[auctionID] = append(store.bids[auctionID], b)
	return b
}

func newTestSweep(t *testing.T, store *fakeStore, listings *fakeListings, opts ...Option) *Sweep {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	s, err := New(store, listings, opts...)
	require.NoError(t, err)
	return s
}

func entryFor(t *testing.T, report *Report, auctionID uuid.UUID) Entry {
	t.Helper()
	entry, ok := lo.Find(report.Entries, func(e Entry) bool { return e.AuctionID == auctionID })
	require.True(t, ok, "no entry for auction %s", auctionID)
	return entry
}

func TestSweep_CorrectsStaleStatuses(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := newFakeStore()
	listings := newFakeListings()

	// 底價達標但仍停在 active
	met := seedAuction(store, models.AuctionStatusActive, lo.ToPtr("100.00"), pastInstant())
	winning := seedBid(store, met.ID, 12000, testNow.Add(-2*time.Hour))
	seedBid(store, met.ID, 8000, testNow.Add(-3*time.Hour))

	// 底價未達
	notMet := seedAuction(store, models.AuctionStatusActive, lo.ToPtr("100.00"), pastInstant())
	seedBid(store, notMet.ID, 8000, testNow.Add(-2*time.Hour))

	// 無底價無出價
	noBids := seedAuction(store, models.AuctionStatusActive, nil, pastInstant())

	// 時間窗尚未結束，不應變動
	open := seedAuction(store, models.AuctionStatusActive, nil, futureInstant())
	seedBid(store, open.ID, 5000, testNow.Add(-time.Hour))

	publisher := &fakePublisher{}
	s := newTestSweep(t, store, listings, WithPublisher(publisher))
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Inspected)
	assert.Equal(t, 3, report.Corrected)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 0, report.Errored)

	assert.Equal(t, models.AuctionStatusPending, store.auctions[met.ID].Status)
	assert.Equal(t, models.AuctionStatusReserveNotMet, store.auctions[notMet.ID].Status)
	assert.Equal(t, models.AuctionStatusExpiredNoBids, store.auctions[noBids.ID].Status)
	assert.Equal(t, models.AuctionStatusActive, store.auctions[open.ID].Status)

	// 得標快照回寫
	require.NotNil(t, store.auctions[met.ID].CurrentBidID)
	assert.Equal(t, winning.ID, *store.auctions[met.ID].CurrentBidID)
	assert.Equal(t, "120.00", *store.auctions[met.ID].CurrentBid)

	// 進入 pending 的拍賣連帶更新刊登
	assert.Equal(t, models.ListingStatusPending, listings.statuses[met.ProductID])
}

func TestSweep_Idempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := newFakeStore()
	listings := newFakeListings()

	met := seedAuction(store, models.AuctionStatusActive, lo.ToPtr("100.00"), pastInstant())
	seedBid(store, met.ID, 12000, testNow.Add(-2*time.Hour))
	seedAuction(store, models.AuctionStatusActive, lo.ToPtr("100.00"), pastInstant())
	seedAuction(store, models.AuctionStatusActive, nil, pastInstant())

	s := newTestSweep(t, store, listings)

	first, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Corrected)

	// 沒有新的出價活動時，第二次掃描必須零修正
	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Corrected)
	assert.Equal(t, 0, second.Errored)
}

func TestSweep_UnresolvableInstantRecordedAndContinues(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := newFakeStore()
	listings := newFakeListings()

	broken := seedAuction(store, models.AuctionStatusActive, nil, "21/06/2025 2.21pm")
	fine := seedAuction(store, models.AuctionStatusActive, nil, pastInstant())

	s := newTestSweep(t, store, listings)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Errored)
	assert.Equal(t, 1, report.Corrected)

	brokenEntry := entryFor(t, report, broken.ID)
	assert.Contains(t, brokenEntry.Err, "invalid timestamp format")
	assert.False(t, brokenEntry.Corrected)
	// 壞資料不影響其他拍賣
	assert.Equal(t, models.AuctionStatusExpiredNoBids, store.auctions[fine.ID].Status)
}

func TestSweep_PerAuctionFailuresDoNotAbort(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := newFakeStore()
	listings := newFakeListings()

	readFail := seedAuction(store, models.AuctionStatusActive, nil, pastInstant())
	store.bidsErr[readFail.ID] = errors.New("connection reset")

	writeFail := seedAuction(store, models.AuctionStatusActive, nil, pastInstant())
	store.writeErr[writeFail.ID] = errors.New("deadlock detected")

	fine := seedAuction(store, models.AuctionStatusActive, nil, pastInstant())

	s := newTestSweep(t, store, listings)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Inspected)
	assert.Equal(t, 2, report.Errored)
	assert.Equal(t, 1, report.Corrected)
	// 寫入失敗的拍賣狀態保持原樣，沒有半套用的修正
	assert.Equal(t, models.AuctionStatusActive, store.auctions[writeFail.ID].Status)
	assert.Equal(t, models.AuctionStatusExpiredNoBids, store.auctions[fine.ID].Status)
}

func TestSweep_EnumerationFailureIsFatal(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := newFakeStore()
	store.listErr = errors.New("relation does not exist")

	s := newTestSweep(t, store, newFakeListings())
	report, err := s.Run(context.Background())
	assert.Error(t, err)
	assert.Nil(t, report)
}

func TestSweep_CascadeFailureIsWarningOnly(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := newFakeStore()
	listings := newFakeListings()
	listings.err = errors.New("listing service unavailable")

	met := seedAuction(store, models.AuctionStatusActive, nil, pastInstant())
	seedBid(store, met.ID, 5000, testNow.Add(-time.Hour))

	s := newTestSweep(t, store, listings)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	entry := entryFor(t, report, met.ID)
	// 拍賣修正保留，刊登失敗只是警告
	assert.True(t, entry.Corrected)
	assert.Contains(t, entry.Warning, "listing cascade failed")
	assert.Empty(t, entry.Err)
	assert.Equal(t, models.AuctionStatusPending, store.auctions[met.ID].Status)
}

func TestSweep_GuardedUpdateSkipsMovedStatus(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := newFakeStore()
	listings := newFakeListings()

	moved := seedAuction(store, models.AuctionStatusActive, nil, pastInstant())
	seedBid(store, moved.ID, 5000, testNow.Add(-time.Hour))

	// 模擬掃描讀取後、寫入前，狀態被外部流程推進為 completed
	s := newTestSweep(t, store, listings)
	candidates, err := store.ListSettleable(context.Background())
	require.Len(t, candidates, 1)
	require.NoError(t, err)
	store.auctions[moved.ID].Status = models.AuctionStatusCompleted

	entry := s.inspect(context.Background(), candidates[0])
	assert.True(t, entry.Skipped)
	assert.False(t, entry.Corrected)
	assert.Equal(t, models.AuctionStatusCompleted, store.auctions[moved.ID].Status)
}

func TestSweep_CancellationStopsBetweenAuctions(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := newFakeStore()
	listings := newFakeListings()
	for i := 0; i < 20; i++ {
		seedAuction(store, models.AuctionStatusActive, nil, pastInstant())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestSweep(t, store, listings)
	report, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	// 已取消的掃描不會留下做到一半的拍賣
	for _, entry := range report.Entries {
		assert.True(t, entry.Corrected || entry.Skipped || entry.Err != "" || entry.Previous == entry.Recomputed)
	}
}

func TestSweep_PublishesCorrectionEvents(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := newFakeStore()
	listings := newFakeListings()
	publisher := &fakePublisher{}

	met := seedAuction(store, models.AuctionStatusActive, nil, pastInstant())
	seedBid(store, met.ID, 5000, testNow.Add(-time.Hour))
	seedAuction(store, models.AuctionStatusActive, nil, futureInstant())

	s := newTestSweep(t, store, listings, WithPublisher(publisher))
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, met.ID, event.AuctionID)
	assert.Equal(t, models.AuctionStatusActive, event.Previous)
	assert.Equal(t, models.AuctionStatusPending, event.Corrected)
}

type fakeLocker struct {
	err      error
	unlocked bool
}

func (f *fakeLocker) Lock(ctx context.Context) (context.Context, error) {
	if f.err != nil {
		return nil, f.err
	}
	return ctx, nil
}

func (f *fakeLocker) Unlock() (bool, error) {
	f.unlocked = true
	return true, nil
}

func TestSweep_LockHeldElsewhere(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := newFakeStore()
	seedAuction(store, models.AuctionStatusActive, nil, pastInstant())

	locker := &fakeLocker{err: fmt.Errorf("lock already taken")}
	s := newTestSweep(t, store, newFakeListings(), WithLock(locker))

	report, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrSweepLocked)
	assert.Nil(t, report)
	// 沒拿到鎖就不碰任何拍賣
	assert.Empty(t, store.transitions)
}

func TestSweep_ReleasesLock(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := newFakeStore()
	locker := &fakeLocker{}

	s := newTestSweep(t, store, newFakeListings(), WithLock(locker))
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, locker.unlocked)
}
