// Package cover はカバー画像の参照解決とファイルライフサイクル管理を提供する。
//
// カバーの指定方法（directive）は3種類:
//   - "local":  アップロードされたファイルを保存し、ファイル名を参照として保持する
//   - "url":    外部URLをそのまま参照として保持する
//   - その他:    デフォルトのプレースホルダー画像を参照する
//
// ローカルカバーの差し替え・削除時には、以前のファイルをベストエフォートで
// 回収する。DBトランザクションとファイル操作はアトミックではなく、
// 失敗時に孤児ファイルが残ることは許容されている。
package cover

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hitoshi/cinelog/internal/model"
)

// カバー指定のdirective値。
const (
	DirectiveLocal    = "local"
	DirectiveURL      = "url"
	DirectiveNoChange = "no_change"
)

// MaxUploadSize はアップロードの最大サイズ（2 MiB）。
// HTTP境界でhttp.MaxBytesReaderにより強制される。
const MaxUploadSize = 2 << 20

// allowedExtensions はアップロードを許可する拡張子。
// HTMLなどを画像として持ち込ませないための許可リスト。
var allowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
}

// FileStore はカバー画像ファイルの保存先インターフェース。
// storage.LocalStoreの部分集合として定義する。
type FileStore interface {
	Save(name string, r io.Reader) error
	// Delete は冪等であること。存在しないファイルの削除はエラーにしない。
	Delete(name string) error
}

// Upload はアップロードされたファイルを表す。
type Upload struct {
	Filename string
	Content  io.Reader
}

// Manager はカバー画像の参照解決とファイル回収を行う。
type Manager struct {
	store FileStore
}

// NewManager はManagerを生成する。
func NewManager(store FileStore) *Manager {
	return &Manager{store: store}
}

// Resolve はdirectiveをカバー参照に解決する。
//   - "local": uploadが必須。拡張子検証とファイル名のサニタイズを行った上で
//     保存し、('local', サニタイズ済みファイル名)を返す。ファイル未添付や
//     許可外拡張子はINVALID_UPLOADエラーになる（静かに受理しない）。
//   - "url": (url, 与えられたURL文字列そのまま)を返す。存在確認は行わない。
//   - その他: 空のsourceとデフォルトプレースホルダーを返す。
func (m *Manager) Resolve(directive, urlValue string, upload *Upload) (model.CoverSource, string, error) {
	switch directive {
	case DirectiveLocal:
		return m.resolveLocal(upload)
	case DirectiveURL:
		return model.CoverSourceURL, urlValue, nil
	default:
		return model.CoverSourceNone, model.DefaultCoverImage, nil
	}
}

// Replace は既存カバーを新しいdirectiveで差し替える。
// 以前のカバーがローカルファイルの場合は、新しい参照を計算する前に
// ベストエフォートで削除する。削除時にファイルが存在しなくてもエラーにしない。
func (m *Manager) Replace(oldSource model.CoverSource, oldReference, directive, urlValue string, upload *Upload) (model.CoverSource, string, error) {
	m.Cleanup(oldSource, oldReference)
	return m.Resolve(directive, urlValue, upload)
}

// Cleanup はローカルカバーのファイルをベストエフォートで削除する。
// 失敗はログに記録するだけで上位へは伝播させない。
func (m *Manager) Cleanup(source model.CoverSource, reference string) {
	if source != model.CoverSourceLocal || reference == "" {
		return
	}
	if err := m.store.Delete(reference); err != nil {
		slog.Warn("failed to delete cover file",
			slog.String("file", reference),
			slog.String("error", err.Error()),
		)
	}
}

// resolveLocal はアップロードファイルを検証・保存する。
func (m *Manager) resolveLocal(upload *Upload) (model.CoverSource, string, error) {
	if upload == nil || upload.Filename == "" || upload.Content == nil {
		return "", "", model.NewInvalidUploadError("ファイルが添付されていません")
	}
	if !extensionAllowed(upload.Filename) {
		return "", "", model.NewInvalidUploadError(
			fmt.Sprintf("許可されていない拡張子です: %s", upload.Filename))
	}

	filename := SanitizeFilename(upload.Filename)
	if filename == "" {
		return "", "", model.NewInvalidUploadError("ファイル名が不正です")
	}

	if err := m.store.Save(filename, upload.Content); err != nil {
		return "", "", fmt.Errorf("failed to save cover file: %w", err)
	}

	return model.CoverSourceLocal, filename, nil
}

// extensionAllowed は末尾の拡張子が許可リストに含まれるかを判定する。
// 比較は大文字小文字を区別しない。
func extensionAllowed(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return false
	}
	ext := strings.ToLower(filename[idx+1:])
	_, ok := allowedExtensions[ext]
	return ok
}

// SanitizeFilename はファイル名からパス要素と危険な文字を取り除く。
// 空白はアンダースコアに変換し、英数字と「_」「.」「-」以外の文字は除去する。
// 隠しファイル化を防ぐため先頭のドットも取り除く。
func SanitizeFilename(filename string) string {
	// パス要素の除去（/ と \ の両方を区切りとして扱う)
	if idx := strings.LastIndexAny(filename, `/\`); idx >= 0 {
		filename = filename[idx+1:]
	}

	var b strings.Builder
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '.' || r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}

	return strings.TrimLeft(b.String(), ".")
}
