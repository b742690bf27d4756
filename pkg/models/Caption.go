package models

import "time"

// CaptionResult is the caption service response shown on the home page.
type CaptionResult struct {
	Caption string `json:"caption"`
	Index   int    `json:"index"`
}

type SelectedImage struct {
	Filename    string
	ContentType string
	Content     []byte
	SelectedAt  time.Time
}

func (i *SelectedImage) Size() int {
	if i == nil {
		return 0
	}

	return len(i.Content)
}

type StoredImage struct {
	Key          string
	FileName     string
	URL          string
	ThumbnailURL string
}
