package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Listing 代表拍賣對應的商品刊登
// 刊登由外部的上架流程建立與維護，結算只會更新它的狀態
type Listing struct {
	gorm.Model

	ID     uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Status ListingStatus `gorm:"type:varchar(32);not null;default:'active'"`
}
