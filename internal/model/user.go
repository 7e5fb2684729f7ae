// Package model はドメインモデルを定義する。
package model

import "time"

// ServiceGoogle はGoogle連携を示すサービス名。
const ServiceGoogle = "google"

// User はサービス利用ユーザーを表す。
type User struct {
	ID             string
	FullName       string
	Email          string
	ProfilePicture string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SocialAccount は外部IdPのアカウントとユーザーの紐付けを表す。
// AccessToken / RefreshToken は暗号化済みの値を保持する。
// (Service, SocialAccountID) の組はユーザーを跨いで一意。
type SocialAccount struct {
	ID              string
	Service         string
	SocialAccountID string
	AccessToken     string
	RefreshToken    string
	UserID          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
