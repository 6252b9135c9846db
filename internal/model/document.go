package model

import (
	"time"

	"gorm.io/datatypes"
)

// Document is one stored JSON tree addressed by a fixed key.
type Document struct {
	Key       string         `gorm:"column:doc_key;type:varchar(128);primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"column:value" json:"value"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}
