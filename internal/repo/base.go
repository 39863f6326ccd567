// Package repo holds the plumbing shared by the gorm repositories.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by repositories so every query carries the caller's context.
type Base struct {
	conn *gorm.DB
}

func NewBase(conn *gorm.DB) Base {
	return Base{conn: conn}
}

// DB scopes the connection to ctx; a nil ctx returns the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}
