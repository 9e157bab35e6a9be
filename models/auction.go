package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Auction 代表拍賣系統中的一場限時競標
// 舊版資料層將時間與金額存成文字欄位，這裡保留原樣，
// 轉換為標準型別一律透過 ReserveMoney/CurrentBidMoney 與 settlement.Resolve
type Auction struct {
	gorm.Model

	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;<-:create"`

	// ReservePrice 為底價，NULL 表示無底價；文字十進位格式（例如 "100.00"）
	ReservePrice *string `gorm:"type:varchar(32)"`
	// CurrentBid 為目前最高出價的金額快照，由結算流程依出價紀錄回寫
	CurrentBid      *string    `gorm:"type:varchar(32)"`
	CurrentBidID    *uuid.UUID `gorm:"type:uuid"`
	CurrentBidderID *uuid.UUID `gorm:"type:uuid"`

	// EndsAt 為結標時間的文字表示，格式不一（空白或 T 分隔、+00 或 Z 結尾）
	EndsAt string        `gorm:"type:varchar(64);not null"`
	Status AuctionStatus `gorm:"type:varchar(32);not null;default:'active'"`

	// 外鍵關聯
	BidRecords []Bid `gorm:"foreignKey:AuctionID"`
}

// ReserveMoney 將文字底價轉換為最小單位金額，NULL 底價回傳 nil
func (a Auction) ReserveMoney() (*Money, error) {
	return parseOptionalMoney(a.ReservePrice)
}

// CurrentBidMoney 將文字出價快照轉換為最小單位金額，NULL 回傳 nil
func (a Auction) CurrentBidMoney() (*Money, error) {
	return parseOptionalMoney(a.CurrentBid)
}

func parseOptionalMoney(raw *string) (*Money, error) {
	if raw == nil {
		return nil, nil
	}
	m, err := ParseMoney(*raw)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
