// Package storage はカバー画像ファイルの保存先を提供する。
// 設定されたアップロードルート配下のローカルファイルシステムに限定して
// 読み書きする。
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore はアップロードルート配下に限定したローカルファイルストア。
type LocalStore struct {
	root string
}

// NewLocalStore はLocalStoreを生成する。
// アップロードルートが存在しない場合は作成する。
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("upload root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Save はファイルをアップロードルート配下に保存する。
// nameにパス要素が含まれる場合はエラーを返す（ルート外への書き込み防止）。
func (s *LocalStore) Save(name string, r io.Reader) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Delete はファイルを削除する。存在しないファイルの削除はエラーにならない（冪等）。
func (s *LocalStore) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// resolve はファイル名をルート配下の絶対パスに解決する。
// パス区切りや親ディレクトリ参照を含む名前は拒否する。
func (s *LocalStore) resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name: %s", name)
	}
	return filepath.Join(s.root, name), nil
}
