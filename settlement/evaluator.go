package settlement

import (
	"fmt"

	"lelong/models"
)

// Input 為結算決策所需的全部事實
type Input struct {
	// Status 為拍賣目前持久化的狀態
	Status models.AuctionStatus
	// ReservePrice 為底價，nil 表示無底價；0 視同無底價
	ReservePrice *models.Money
	// HighestBid 為帳冊選出的最高出價，nil 表示沒有任何出價
	HighestBid *models.Money
	// WindowElapsed 表示拍賣時間窗是否已結束
	WindowElapsed bool
}

// Outcome 為結算決策的結果，Reason 供診斷與報告使用
type Outcome struct {
	Status models.AuctionStatus
	Reason string
}

// Evaluate 是純決策函式：給定相同輸入必得相同輸出，沒有任何 I/O。
// 決策表（僅在時間窗已結束時套用）：
//
//	無底價、無出價   -> expired_no_bids
//	無底價、有出價   -> pending
//	有底價、無出價   -> reserve_not_met
//	有底價、出價達標 -> pending
//	有底價、出價未達 -> reserve_not_met
//
// pending/completed 是單向狀態，重複評估不會使其倒退；
// cancelled 由外部流程決定，這裡永遠不會覆寫
func Evaluate(in Input) Outcome {
	if in.Status.Settled() {
		return Outcome{
			Status: in.Status,
			Reason: fmt.Sprintf("status %q is final for settlement; never regressed", in.Status),
		}
	}

	if !in.WindowElapsed {
		if in.Status == models.AuctionStatusScheduled {
			// 尚未開標的拍賣不在結算範圍內
			return Outcome{Status: in.Status, Reason: "window not elapsed; auction still scheduled"}
		}
		return Outcome{Status: models.AuctionStatusActive, Reason: "window not elapsed; auction stays active"}
	}

	hasReserve := in.ReservePrice != nil && *in.ReservePrice > 0

	switch {
	case in.HighestBid == nil && !hasReserve:
		return Outcome{
			Status: models.AuctionStatusExpiredNoBids,
			Reason: "window elapsed with no bids and no reserve price",
		}
	case in.HighestBid == nil:
		return Outcome{
			Status: models.AuctionStatusReserveNotMet,
			Reason: fmt.Sprintf("window elapsed with no bids against reserve %s", in.ReservePrice),
		}
	case !hasReserve:
		return Outcome{
			Status: models.AuctionStatusPending,
			Reason: fmt.Sprintf("highest bid %s with no reserve price", in.HighestBid),
		}
	case *in.HighestBid >= *in.ReservePrice:
		return Outcome{
			Status: models.AuctionStatusPending,
			Reason: fmt.Sprintf("highest bid %s meets reserve %s", in.HighestBid, in.ReservePrice),
		}
	default:
		return Outcome{
			Status: models.AuctionStatusReserveNotMet,
			Reason: fmt.Sprintf("highest bid %s below reserve %s", in.HighestBid, in.ReservePrice),
		}
	}
}
