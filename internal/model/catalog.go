// Package model はドメインモデルを定義する。
package model

import "time"

// Collection はユーザーが所有する映画コレクションを表す。
// OwnerIDは作成時に確定し、以降変更されない。
// 編集・削除の権限は所有者のみが持つ。
type Collection struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CoverSource はカバー画像の参照元の種別を表す。
type CoverSource string

const (
	// CoverSourceLocal はアップロードされたローカルファイルを示す。
	CoverSourceLocal CoverSource = "local"
	// CoverSourceURL は外部URL参照を示す。
	CoverSourceURL CoverSource = "url"
	// CoverSourceNone はカバー画像なし（デフォルト画像）を示す。
	CoverSourceNone CoverSource = ""
)

// DefaultCoverImage はカバー画像未指定時のプレースホルダー参照。
const DefaultCoverImage = "no_cover.png"

// Movie はコレクションに属する映画エントリを表す。
// 必ず1つのCollectionに属する。OwnerIDは作成者の記録であり、
// 認可判定には使用されない（親コレクションの所有者に従う）。
type Movie struct {
	ID           string
	Name         string
	Director     string
	Genre        string
	Year         string // 4文字の年表記
	Description  string
	CoverSource  CoverSource
	CoverImage   string
	OwnerID      string
	CollectionID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
