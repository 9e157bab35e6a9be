package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"lelong/adapters/store"
	"lelong/settlement"
	"lelong/sweep"
)

// RegisterRoutes 掛載診斷與修正入口
func (impl *ServerImpl) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", impl.GetHealthz)
	group := router.Group("/api")
	group.GET("/auctions/:auctionID/settlement", impl.GetAuctionSettlement)
	group.POST("/reconciliation", impl.PostReconciliation)
}

func (impl *ServerImpl) GetHealthz(ctx *gin.Context) {
	ctx.Status(http.StatusOK)
}

// BidDetail 為診斷輸出中的單筆出價，金額與時間都已轉換為標準型別
type BidDetail struct {
	BidID    uuid.UUID `json:"bidId"`
	BidderID uuid.UUID `json:"bidderId"`
	Amount   string    `json:"amount"`
	PlacedAt time.Time `json:"placedAt"`
}

// SettlementDiagnosis 為單場拍賣的診斷輸出：
// 持久化欄位原樣呈現，加上重新計算的決策與可讀原因
type SettlementDiagnosis struct {
	AuctionID     uuid.UUID   `json:"auctionId"`
	ProductID     uuid.UUID   `json:"productId"`
	StoredStatus  string      `json:"storedStatus"`
	ReservePrice  *string     `json:"reservePrice"`
	CurrentBid    *string     `json:"currentBid"`
	EndsAtRaw     string      `json:"endsAtRaw"`
	EndsAt        time.Time   `json:"endsAt"`
	WindowElapsed bool        `json:"windowElapsed"`
	Bids          []BidDetail `json:"bids"`
	Recomputed    string      `json:"recomputed"`
	Reason        string      `json:"reason"`
	Diverged      bool        `json:"diverged"`
}

// Inspect settlement decision for one auction
// (GET /api/auctions/{auctionID}/settlement)
func (impl *ServerImpl) GetAuctionSettlement(ctx *gin.Context) {
	const op = "GetAuctionSettlement"

	auctionID, err := uuid.Parse(ctx.Param("auctionID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "invalid auction id"})
		return
	}

	auction, err := impl.reader.GetAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, store.ErrAuctionNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "auction not found"})
			return
		}
		slog.Error("Fail to load auction", slog.String("op", op), slog.Any("error", err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "fail to load auction"})
		return
	}

	// 無法解析的持久化資料對診斷入口而言不是伺服器錯誤，
	// 以 422 連同原因回給調查者
	endsAt, err := settlement.Resolve(auction.EndsAt)
	if err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}
	reserve, err := auction.ReserveMoney()
	if err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	bids, err := impl.reader.BidsForAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, settlement.ErrInvalidTimestampFormat) {
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
			return
		}
		slog.Error("Fail to load bids", slog.String("op", op), slog.Any("error", err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "fail to load bids"})
		return
	}

	summary, hasBids := settlement.Summarize(bids)
	input := settlement.Input{
		Status:        auction.Status,
		ReservePrice:  reserve,
		WindowElapsed: settlement.WindowElapsed(endsAt, time.Now()),
	}
	if hasBids {
		input.HighestBid = &summary.HighestAmount
	}
	outcome := settlement.Evaluate(input)

	ctx.JSON(http.StatusOK, SettlementDiagnosis{
		AuctionID:     auction.ID,
		ProductID:     auction.ProductID,
		StoredStatus:  string(auction.Status),
		ReservePrice:  auction.ReservePrice,
		CurrentBid:    auction.CurrentBid,
		EndsAtRaw:     auction.EndsAt,
		EndsAt:        endsAt,
		WindowElapsed: input.WindowElapsed,
		Bids: lo.Map(bids, func(b settlement.Bid, _ int) BidDetail {
			return BidDetail{
				BidID:    b.ID,
				BidderID: b.BidderID,
				Amount:   b.Amount.String(),
				PlacedAt: b.PlacedAt,
			}
		}),
		Recomputed: string(outcome.Status),
		Reason:     outcome.Reason,
		Diverged:   outcome.Status != auction.Status,
	})
}

// Run the reconciliation sweep
// (POST /api/reconciliation)
func (impl *ServerImpl) PostReconciliation(ctx *gin.Context) {
	const op = "PostReconciliation"

	report, err := impl.sweeper.Run(ctx)
	if err != nil {
		if errors.Is(err, sweep.ErrSweepLocked) {
			ctx.JSON(http.StatusConflict, gin.H{"message": "another sweep is already running"})
			return
		}
		if report != nil {
			// 掃描被取消：已處理的部分仍回給呼叫端
			ctx.JSON(http.StatusOK, report)
			return
		}
		slog.Error("Sweep failed", slog.String("op", op), slog.Any("error", err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "fail to run reconciliation sweep"})
		return
	}

	ctx.JSON(http.StatusOK, report)
}
