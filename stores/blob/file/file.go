// Package file stores every blob in its own file, fanned out over
// subdirectories named after the first two characters of the key.
package file

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/ulogger"
)

type File struct {
	path   string
	logger ulogger.Logger
}

func New(logger ulogger.Logger, path string) (*File, error) {
	if path == "" {
		return nil, errors.NewConfigurationError("file store needs a path")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewStorageError("failed to resolve path %s", path, err)
	}

	if err = os.MkdirAll(absPath, 0755); err != nil {
		return nil, errors.NewStorageError("failed to create directory %s", absPath, err)
	}

	logger.Infof("[File] storing blobs in %s", absPath)

	return &File{
		path:   absPath,
		logger: logger,
	}, nil
}

func (s *File) Health(_ context.Context, _ bool) (int, string, error) {
	if _, err := os.Stat(s.path); err != nil {
		return http.StatusServiceUnavailable, "File Store: path not accessible", errors.NewStorageUnavailableError("path %s not accessible", s.path, err)
	}

	return http.StatusOK, "File Store", nil
}

func (s *File) Close(_ context.Context) error {
	return nil
}

func (s *File) fileName(key []byte) (string, error) {
	k := string(key)
	if len(k) < 2 || filepath.Base(k) != k {
		return "", errors.NewInvalidArgumentError("invalid blob key %q", k)
	}

	return filepath.Join(s.path, k[:2], k), nil
}

func (s *File) Set(_ context.Context, key []byte, value []byte) error {
	fileName, err := s.fileName(key)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(fileName), 0755); err != nil {
		return errors.NewStorageError("failed to create directory for %s", key, err)
	}

	// write to a temp file and rename so readers never see a partial blob
	tmp, err := os.CreateTemp(filepath.Dir(fileName), fmt.Sprintf(".%s-*.tmp", key))
	if err != nil {
		return errors.NewStorageError("failed to create temp file for %s", key, err)
	}

	if _, err = tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return errors.NewStorageError("failed to write %s", key, err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.NewStorageError("failed to close %s", key, err)
	}

	if err = os.Rename(tmp.Name(), fileName); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.NewStorageError("failed to rename %s", key, err)
	}

	return nil
}

func (s *File) Get(_ context.Context, key []byte) ([]byte, error) {
	fileName, err := s.fileName(key)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("blob %s not found", key)
		}

		return nil, errors.NewStorageError("failed to read %s", key, err)
	}

	return b, nil
}

func (s *File) Exists(_ context.Context, key []byte) (bool, error) {
	fileName, err := s.fileName(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fileName)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, errors.NewStorageError("failed to stat %s", key, err)
}

func (s *File) Del(_ context.Context, key []byte) error {
	fileName, err := s.fileName(key)
	if err != nil {
		return err
	}

	if err = os.Remove(fileName); err != nil && !os.IsNotExist(err) {
		return errors.NewStorageError("failed to delete %s", key, err)
	}

	return nil
}
