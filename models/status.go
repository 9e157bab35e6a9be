package models

// AuctionStatus 代表拍賣在資料庫中持久化的狀態字串
// 狀態字串會原樣寫入資料庫，不做任何轉換
type AuctionStatus string

const (
	AuctionStatusScheduled     AuctionStatus = "scheduled"
	AuctionStatusActive        AuctionStatus = "active"
	AuctionStatusPending       AuctionStatus = "pending"
	AuctionStatusReserveNotMet AuctionStatus = "reserve_not_met"
	AuctionStatusCompleted     AuctionStatus = "completed"
	AuctionStatusExpiredNoBids AuctionStatus = "expired_no_bids"
	AuctionStatusCancelled     AuctionStatus = "cancelled"
)

// Settled 回報狀態是否已進入單向的結算後階段
// pending/completed 不會被重新評估降級，cancelled 由外部流程控制
func (s AuctionStatus) Settled() bool {
	switch s {
	case AuctionStatusPending, AuctionStatusCompleted, AuctionStatusCancelled:
		return true
	}
	return false
}

// ListingStatus 代表商品刊登的狀態
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusPending   ListingStatus = "pending"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusCancelled ListingStatus = "cancelled"
)
