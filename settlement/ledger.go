package settlement

import (
	"time"

	"github.com/google/uuid"

	"lelong/models"
)

// Bid 為儲存層邊界轉換後的出價：金額為最小單位、時間為標準時刻
type Bid struct {
	ID       uuid.UUID
	BidderID uuid.UUID
	Amount   models.Money
	PlacedAt time.Time
}

// Summary 描述一場拍賣目前的最高出價
type Summary struct {
	HighestAmount   models.Money
	HighestBidderID uuid.UUID
	// WinningBidID 讓呼叫端得以維護「恰好一筆 is_winning」的不變量，
	// 帳冊本身永遠不會改動出價紀錄
	WinningBidID uuid.UUID
}

// Summarize 從出價序列中選出最高出價：金額最大者勝出，
// 金額相同時由最早出價者勝出；沒有出價時回傳 false
func Summarize(bids []Bid) (Summary, bool) {
	if len(bids) == 0 {
		return Summary{}, false
	}
	best := bids[0]
	for _, b := range bids[1:] {
		if b.Amount > best.Amount {
			best = b
			continue
		}
		if b.Amount == best.Amount && b.PlacedAt.Before(best.PlacedAt) {
			best = b
		}
	}
	return Summary{
		HighestAmount:   best.Amount,
		HighestBidderID: best.BidderID,
		WinningBidID:    best.ID,
	}, true
}
