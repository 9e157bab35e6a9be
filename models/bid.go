package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bid 代表拍賣的出價紀錄
// 每場拍賣最多只有一筆 IsWinning 為 true 的紀錄，
// 其金額必須等於拍賣的 CurrentBid 且為該拍賣的最高出價
type Bid struct {
	*gorm.Model

	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AuctionID uuid.UUID `gorm:"type:uuid;not null;<-:create"`
	BidderID  uuid.UUID `gorm:"type:uuid;not null;<-:create"`

	// Amount 為文字十進位金額（舊版 schema），PlacedAt 為文字時間戳
	Amount    string `gorm:"type:varchar(32);not null;<-:create"`
	PlacedAt  string `gorm:"type:varchar(64);not null;<-:create"`
	IsWinning bool   `gorm:"not null;default:false"`
}
