package sweep

import (
	"context"
	"time"

	"github.com/google/uuid"

	"lelong/models"
	"lelong/settlement"
)

// AuctionStore 是掃描對拍賣資料的唯一存取介面
type AuctionStore interface {
	// ListSettleable 列出所有尚未進入 pending/completed/cancelled 的拍賣
	ListSettleable(ctx context.Context) ([]models.Auction, error)
	// BidsForAuction 回傳依下標時間排序、已轉換為標準型別的出價
	BidsForAuction(ctx context.Context, auctionID uuid.UUID) ([]settlement.Bid, error)
	// TransitionStatus 執行受保護的條件更新：儲存的狀態若已不是 from 則不做任何事並回傳 false。
	// winner 不為 nil 時，同一個交易內會回寫最高出價快照並翻轉 is_winning 旗標
	TransitionStatus(ctx context.Context, auctionID uuid.UUID, from, to models.AuctionStatus, winner *settlement.Summary) (bool, error)
}

// ListingStore 是掃描對商品刊登的唯一存取介面
type ListingStore interface {
	SetListingStatus(ctx context.Context, productID uuid.UUID, status models.ListingStatus) error
}

// IPublisher 將已套用的修正發佈給外部訂閱者，投遞本身不在本系統範圍內
type IPublisher interface {
	Publish(event CorrectionEvent) error
}

// ILocker 讓多個掃描程序彼此互斥，nil 表示單程序模式
type ILocker interface {
	Lock(ctx context.Context) (context.Context, error)
	Unlock() (bool, error)
}

// CorrectionEvent 描述一筆已套用的狀態修正
type CorrectionEvent struct {
	AuctionID  uuid.UUID
	ProductID  uuid.UUID
	Previous   models.AuctionStatus
	Corrected  models.AuctionStatus
	Reason     string
	OccurredAt time.Time
}

// Entry 為單一拍賣的檢查結果
type Entry struct {
	AuctionID  uuid.UUID            `json:"auctionId"`
	ProductID  uuid.UUID            `json:"productId"`
	Previous   models.AuctionStatus `json:"previous"`
	Recomputed models.AuctionStatus `json:"recomputed"`
	Reason     string               `json:"reason,omitempty"`
	Corrected  bool                 `json:"corrected"`
	// Skipped 表示受保護更新發現狀態在讀取後已被其他流程推進
	Skipped bool   `json:"skipped,omitempty"`
	Err     string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// Report 彙總一次掃描的結果
type Report struct {
	Inspected  int       `json:"inspected"`
	Corrected  int       `json:"corrected"`
	Unchanged  int       `json:"unchanged"`
	Errored    int       `json:"errored"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Entries    []Entry   `json:"entries"`
}
