// Package database stores the auth token the remote player issues, either in
// memory or in MongoDB.
package database

import (
	"errors"
	"time"
)

const TokenCollectionName = "tokens"

var ErrAppNameEmpty = errors.New("app_name is empty")

type TokenRecord struct {
	AppName   string    `bson:"app_name"`
	Token     string    `bson:"token"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewTokenRecord(appName, token string) *TokenRecord {
	return &TokenRecord{
		AppName:   appName,
		Token:     token,
		UpdatedAt: time.Now().UTC(),
	}
}
