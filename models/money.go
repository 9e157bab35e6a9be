package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money 以最小貨幣單位（仙）表示金額
// 所有金額比較都必須在 Money 上進行，禁止比較文字或浮點數
type Money int64

// minorUnitScale 為主單位與最小單位的換算（RM 1.00 = 100 仙）
var minorUnitScale = decimal.New(1, 2)

// ParseMoney 在儲存層邊界將文字十進位金額轉換為 Money
// 拒絕負數與超出最小單位精度的值
func ParseMoney(raw string) (Money, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	scaled := d.Mul(minorUnitScale)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-minor-unit precision", raw)
	}
	if scaled.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", raw)
	}
	return Money(scaled.IntPart()), nil
}

// String 以主單位十進位格式輸出，例如 12000 -> "120.00"
func (m Money) String() string {
	return decimal.New(int64(m), 0).Div(minorUnitScale).StringFixed(2)
}
