package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage keeps uploaded chat images on the local filesystem under a
// single root. Paths handed out are relative to that root so they can
// be served as-is by the media handler.
type Storage struct {
	rootPath string
}

func New(rootPath string) (*Storage, error) {
	// Clean to prevent path traversal like "media/../"
	p := filepath.Clean(rootPath)

	if err := os.MkdirAll(p, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage directory %s: %w", p, err)
	}

	return &Storage{rootPath: p}, nil
}

// Save writes an uploaded image, named by the owning message id plus
// the original extension, and returns the relative path.
func (s *Storage) Save(fileData io.Reader, messageID, originalExtension string) (string, error) {
	cleanExtension := filepath.Clean(originalExtension)
	relativePath := fmt.Sprintf("%s%s", messageID, cleanExtension)
	fullPath := filepath.Join(s.rootPath, relativePath)

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, fileData); err != nil {
		os.Remove(fullPath) // best effort cleanup of the partial file
		return "", fmt.Errorf("failed to copy file data: %w", err)
	}

	return relativePath, nil
}

func (s *Storage) Read(filePath string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.rootPath, filepath.Clean(filePath))

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image not found: %w", err)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes one stored image. A missing file is not an error.
func (s *Storage) Delete(filePath string) error {
	fullPath := filepath.Join(s.rootPath, filepath.Clean(filePath))

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
