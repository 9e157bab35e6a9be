// Package store 以 gorm 實作掃描與診斷所需的持久層介面。
// 文字時間戳與文字金額只在這個邊界被轉換成標準型別。
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lelong/models"
	"lelong/settlement"
)

// ErrAuctionNotFound 表示指定的拍賣不存在
var ErrAuctionNotFound = errors.New("auction not found")

// ErrListingNotFound 表示指定的商品刊登不存在
var ErrListingNotFound = errors.New("listing not found")

// settleableStatuses 為尚未進入 pending/completed/cancelled 的狀態集合，
// 這些拍賣是對帳掃描的候選對象
var settleableStatuses = []models.AuctionStatus{
	models.AuctionStatusScheduled,
	models.AuctionStatusActive,
	models.AuctionStatusReserveNotMet,
	models.AuctionStatusExpiredNoBids,
}

// GormStore 同時實作 sweep.AuctionStore 與 sweep.ListingStore
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	return &GormStore{db: db}, nil
}

// ListSettleable 列出所有可能需要修正的拍賣
// 時間窗是否已結束無法在 SQL 層判斷（文字時間戳格式不一），由掃描端解析後決定
func (s *GormStore) ListSettleable(ctx context.Context) ([]models.Auction, error) {
	const op = "GormStore.ListSettleable"
	var auctions []models.Auction
	if result := s.db.WithContext(ctx).Where("status IN ?", settleableStatuses).Find(&auctions); result.Error != nil {
		return nil, fmt.Errorf("[%s] fail to list auctions, err=%w", op, result.Error)
	}
	return auctions, nil
}

// GetAuction 取得單場拍賣，供診斷入口使用
func (s *GormStore) GetAuction(ctx context.Context, auctionID uuid.UUID) (models.Auction, error) {
	const op = "GormStore.GetAuction"
	auction := models.Auction{ID: auctionID}
	if result := s.db.WithContext(ctx).First(&auction); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.Auction{}, ErrAuctionNotFound
		}
		return models.Auction{}, fmt.Errorf("[%s] fail to find auction, err=%w", op, result.Error)
	}
	return auction, nil
}

// BidsForAuction 回傳單場拍賣的全部出價，依下標時間排序，
// 金額與時間戳在這裡一次轉換為標準型別
func (s *GormStore) BidsForAuction(ctx context.Context, auctionID uuid.UUID) ([]settlement.Bid, error) {
	const op = "GormStore.BidsForAuction"
	var rows []models.Bid
	result := s.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "placed_at"}}).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] fail to list bids, err=%w", op, result.Error)
	}

	bids := make([]settlement.Bid, 0, len(rows))
	for _, row := range rows {
		amount, err := models.ParseMoney(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("[%s] bid %s has invalid amount, err=%w", op, row.ID, err)
		}
		placedAt, err := settlement.Resolve(row.PlacedAt)
		if err != nil {
			return nil, fmt.Errorf("[%s] bid %s has invalid placedAt, err=%w", op, row.ID, err)
		}
		bids = append(bids, settlement.Bid{
			ID:       row.ID,
			BidderID: row.BidderID,
			Amount:   amount,
			PlacedAt: placedAt,
		})
	}
	return bids, nil
}

// TransitionStatus 在單一交易內執行受保護的狀態修正。
// 更新帶有 status = from 的條件：狀態在讀取後被其他流程改動時不會覆寫，
// 回傳 false 讓呼叫端放棄這次修正。
// winner 不為 nil 時同時回寫最高出價快照並維護 is_winning 旗標
// （得標出價為 true，其餘一律為 false）
func (s *GormStore) TransitionStatus(ctx context.Context, auctionID uuid.UUID, from, to models.AuctionStatus, winner *settlement.Summary) (bool, error) {
	const op = "GormStore.TransitionStatus"
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"status": to}
		if winner != nil {
			updates["current_bid"] = winner.HighestAmount.String()
			updates["current_bid_id"] = winner.WinningBidID
			updates["current_bidder_id"] = winner.HighestBidderID
		}

		result := tx.Model(&models.Auction{}).
			Where("id = ? AND status = ?", auctionID, from).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("[%s] fail to update auction status, err=%w", op, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		applied = true

		if winner != nil {
			if result := tx.Model(&models.Bid{}).
				Where("auction_id = ? AND id <> ? AND is_winning = ?", auctionID, winner.WinningBidID, true).
				Update("is_winning", false); result.Error != nil {
				return fmt.Errorf("[%s] fail to clear winning flags, err=%w", op, result.Error)
			}
			if result := tx.Model(&models.Bid{}).
				Where("id = ?", winner.WinningBidID).
				Update("is_winning", true); result.Error != nil {
				return fmt.Errorf("[%s] fail to set winning flag, err=%w", op, result.Error)
			}
		}
		return nil
	})
	if err != nil {
		applied = false
		return false, err
	}
	return applied, nil
}

// SetListingStatus 更新商品刊登的狀態
func (s *GormStore) SetListingStatus(ctx context.Context, productID uuid.UUID, status models.ListingStatus) error {
	const op = "GormStore.SetListingStatus"
	result := s.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", productID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("[%s] fail to update listing status, err=%w", op, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("[%s] %w: %s", op, ErrListingNotFound, productID)
	}
	return nil
}
