// Package files хранит бинарные файлы (книги, обложки) под корневым каталогом
// и выдаёт их по локатору вида "books/<uuid>_name.pdf".
package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — файл по локатору отсутствует. Совместима с fs.ErrNotExist.
	ErrNotFound = fmt.Errorf("files: not found: %w", fs.ErrNotExist)
	// ErrBadLocator — локатор пустой или выходит за пределы корня.
	ErrBadLocator = errors.New("files: bad locator")
)

// Dir — файловое хранилище на диске.
type Dir struct {
	root string
}

// NewDir создаёт хранилище с корнем root (каталог создаётся при необходимости).
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Dir{root: abs}, nil
}

// Root возвращает абсолютный путь корня хранилища.
func (d *Dir) Root() string { return d.root }

// Save записывает содержимое r под новым уникальным именем в подкаталоге subdir
// и возвращает локатор. Имя получает uuid-префикс, чтобы загрузки не затирали
// друг друга.
func (d *Dir) Save(subdir, filename string, r io.Reader) (string, error) {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", ErrBadLocator
	}
	locator := filepath.ToSlash(filepath.Join(subdir, fmt.Sprintf("%s_%s", uuid.NewString(), base)))
	path, err := d.resolve(locator)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return locator, nil
}

// Open открывает файл по локатору для чтения.
func (d *Dir) Open(locator string) (io.ReadCloser, error) {
	path, err := d.resolve(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Remove удаляет файл по локатору; отсутствующий файл не считается ошибкой.
func (d *Dir) Remove(locator string) error {
	path, err := d.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// resolve переводит локатор в абсолютный путь и запрещает выход за корень.
func (d *Dir) resolve(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", ErrBadLocator
	}
	path := filepath.Join(d.root, filepath.FromSlash(locator))
	if path != d.root && !strings.HasPrefix(path, d.root+string(filepath.Separator)) {
		return "", ErrBadLocator
	}
	return path, nil
}
