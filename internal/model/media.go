// 미디어 카탈로그 모델
//
// StorageKey는 오브젝트 스토리지의 내부 참조이며 클라이언트에 절대 노출하지 않음
package model

import "time"

type Track struct {
	ID          string
	OwnerID     int64
	Title       string
	StorageKey  string `json:"-"`
	ContentType string
	CreatedAt   time.Time
}

type CreateTrackRequest struct {
	Title       string `json:"title"`
	StorageKey  string `json:"storageKey"`
	ContentType string `json:"contentType"`
}

type TrackResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ContentType string `json:"contentType"`
}

type StreamTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

func (t *Track) Summary() TrackResponse {
	return TrackResponse{
		ID:          t.ID,
		Title:       t.Title,
		ContentType: t.ContentType,
	}
}
