package viewmodels

import "github.com/adampresley/imagecaptioning/pkg/models"

type HomePage struct {
	BaseViewModel

	UserName     string
	HasImage     bool
	FileName     string
	FileSizeKB   int
	UploadCount  int
	Caption      string
	CaptionIndex int
	AutoCycle    bool
	InFlight     bool
	Phase        string
	StoredImages []models.StoredImage
}
