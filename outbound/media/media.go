// Package media talks to the external media store over its HTTP contract:
// upload(file) -> url, remove(url).
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

type Store interface {
	Upload(ctx context.Context, filename string, content io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

type HttpStore struct {
	BaseUrl string
	Client  *http.Client
}

func NewHttpStore(baseUrl string, timeout time.Duration) *HttpStore {
	return &HttpStore{
		BaseUrl: baseUrl,
		Client:  &http.Client{Timeout: timeout},
	}
}

type uploadResponse struct {
	Url string `json:"url"`
}

func (s *HttpStore) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("copy file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseUrl+"/upload", &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("upload file: unexpected status %d", resp.StatusCode)
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}

	return result.Url, nil
}

func (s *HttpStore) Remove(ctx context.Context, url string) error {
	payload, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return fmt.Errorf("marshal remove payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.BaseUrl+"/remove", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build remove request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("remove file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remove file: unexpected status %d", resp.StatusCode)
	}

	return nil
}
