// Package settlement 決定限時拍賣結標後的最終結果。
// 時間、金額與決策邏輯集中在這裡，診斷與修正路徑共用同一份實作。
package settlement

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimestampFormat 表示文字時間戳無法被任何已知格式解析
var ErrInvalidTimestampFormat = errors.New("invalid timestamp format")

// instantLayouts 涵蓋舊版資料層的三種時間戳形態：
//   - "2006-01-02 15:04:05.000+00"（空白分隔、尾端時區偏移）
//   - "2006-01-02T15:04:05.000+00"（T 分隔、尾端時區偏移）
//   - "2006-01-02T15:04:05.000Z"
//
// 小數秒為可選，時區標記必須存在，解析結果絕不依賴主機時區
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999-0700",
}

// Resolve 將持久層的文字時間戳解析為單一標準時刻（UTC）
// 同一個絕對時刻不論以哪種形態儲存，解析結果都相同
func Resolve(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty input", ErrInvalidTimestampFormat)
	}

	// 正規化日期與時間之間的分隔符
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}

	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestampFormat, raw)
}

// WindowElapsed 回報拍賣時間窗是否已結束，結標時刻當下視為尚未結束
// 只在標準時刻上比較，禁止對文字或未解析的偏移量做運算
func WindowElapsed(endsAt, now time.Time) bool {
	return now.After(endsAt)
}
