package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"libraryhub_go/services"

	"github.com/google/uuid"
)

// UploadConfig controls where and what may be uploaded
type UploadConfig struct {
	MaxFileSize    int64
	AllowedFormats []string
	UploadPath     string
	// URLPrefix is where the files are served from.
	URLPrefix string
}

// DefaultUploadConfig accepts common image formats up to 5MB
func DefaultUploadConfig(dir string) *UploadConfig {
	return &UploadConfig{
		MaxFileSize:    5 * 1024 * 1024,
		AllowedFormats: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
		UploadPath:     dir,
		URLPrefix:      "/uploads",
	}
}

// UploadResult describes a stored file
type UploadResult struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// FileUploader stores image uploads on local disk
type FileUploader struct {
	config *UploadConfig
}

// NewFileUploader creates an uploader for cfg
func NewFileUploader(cfg *UploadConfig) *FileUploader {
	return &FileUploader{config: cfg}
}

// Save validates and writes one multipart file
func (fu *FileUploader) Save(file *multipart.FileHeader) (*UploadResult, error) {
	if file.Size > fu.config.MaxFileSize {
		return nil, services.Validationf("file size exceeds maximum allowed size of %d bytes", fu.config.MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !fu.isAllowedFormat(ext) {
		return nil, services.Validationf("file format %s is not allowed", ext)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		return nil, services.Validationf("file is not an image")
	}

	if err := os.MkdirAll(fu.config.UploadPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	fileName := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(fu.config.UploadPath, fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := dst.Write(head[:n]); err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	written, err := io.Copy(dst, src)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	return &UploadResult{
		URL:      fu.config.URLPrefix + "/" + fileName,
		FileName: fileName,
		FileSize: written + int64(n),
	}, nil
}

// Delete removes a file previously returned by Save. Unknown names are ignored.
func (fu *FileUploader) Delete(url string) error {
	fileName := filepath.Base(url)
	if fileName == "." || fileName == "/" || !strings.HasPrefix(url, fu.config.URLPrefix+"/") {
		return nil
	}
	if err := os.Remove(filepath.Join(fu.config.UploadPath, fileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (fu *FileUploader) isAllowedFormat(ext string) bool {
	for _, allowed := range fu.config.AllowedFormats {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}
