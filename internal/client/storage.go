// 오브젝트 스토리지와 HTTP 통신하는 클라이언트 정의
//
// 환경변수:
//   - STORAGE_BASE_URL: 오브젝트 스토리지 베이스 URL
//
// 스트리밍 응답이기 때문에 클라이언트 전체 타임아웃은 두지 않고
// 요청 context 취소에만 의존한다.

package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/soundvault/backend/internal/config"
)

// StorageClient 구조체 정의
type StorageClient struct {
	baseURL    string
	httpClient *http.Client
}

// StorageObject - 업스트림 응답을 클라이언트로 중계하기 위한 데이터
type StorageObject struct {
	StatusCode    int
	ContentType   string
	ContentLength string
	ContentRange  string
	AcceptRanges  string
	Body          io.ReadCloser
}

func NewStorageClient(cfg config.StorageConfig) *StorageClient {
	return &StorageClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
	}
}

func (c *StorageClient) IsConfigured() bool {
	return c.baseURL != ""
}

// Fetch는 storage key로 오브젝트를 조회한다. byteRange가 비어있지 않으면
// Range 헤더를 그대로 업스트림에 전달하고 partial 응답을 반환한다.
func (c *StorageClient) Fetch(ctx context.Context, key, byteRange string) (*StorageObject, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("storage base url is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+strings.TrimLeft(key, "/"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage request: %w", err)
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from storage: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, fmt.Errorf("storage returned status: %d", resp.StatusCode)
	}

	return &StorageObject{
		StatusCode:    resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.Header.Get("Content-Length"),
		ContentRange:  resp.Header.Get("Content-Range"),
		AcceptRanges:  resp.Header.Get("Accept-Ranges"),
		Body:          resp.Body,
	}, nil
}
