package home

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/imagecaptioning/cmd/website/internal/viewmodels"
	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/adampresley/imagecaptioning/pkg/services"
)

type HomeHandlers interface {
	HomePage(w http.ResponseWriter, r *http.Request)
	SelectImage(w http.ResponseWriter, r *http.Request)
	RemoveImage(w http.ResponseWriter, r *http.Request)
	Preview(w http.ResponseWriter, r *http.Request)
	GenerateCaption(w http.ResponseWriter, r *http.Request)
	NextCaption(w http.ResponseWriter, r *http.Request)
	ToggleAutoCycle(w http.ResponseWriter, r *http.Request)
	DownloadImages(w http.ResponseWriter, r *http.Request)
}

type StateStore interface {
	Get(userID uint) *models.HomeState
}

type StoredImageLister interface {
	List() ([]models.StoredImage, error)
}

type HomeControllerConfig struct {
	ArchiveService  services.ArchiveServicer
	MaxUploadBytes  int64
	PreviewService  services.PreviewServicer
	Renderer        rendering.TemplateRenderer
	StateStore      StateStore
	StoredImages    StoredImageLister
	WorkflowService services.CaptionWorkflowServicer
}

type HomeController struct {
	archiveService  services.ArchiveServicer
	maxUploadBytes  int64
	previewService  services.PreviewServicer
	renderer        rendering.TemplateRenderer
	stateStore      StateStore
	storedImages    StoredImageLister
	workflowService services.CaptionWorkflowServicer
}

func NewHomeController(config HomeControllerConfig) HomeController {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 10 << 20
	}

	return HomeController{
		archiveService:  config.ArchiveService,
		maxUploadBytes:  config.MaxUploadBytes,
		previewService:  config.PreviewService,
		renderer:        config.Renderer,
		stateStore:      config.StateStore,
		storedImages:    config.StoredImages,
		workflowService: config.WorkflowService,
	}
}

/*
GET /home
*/
func (c HomeController) HomePage(w http.ResponseWriter, r *http.Request) {
	session := viewmodels.GetAuthSessionFromContext(r)
	state := c.stateStore.Get(session.UserID)

	c.renderHome(w, r, state, viewmodels.BaseViewModel{})
}

/*
POST /home/image
*/
func (c HomeController) SelectImage(w http.ResponseWriter, r *http.Request) {
	var (
		err     error
		content []byte
	)

	session := viewmodels.GetAuthSessionFromContext(r)
	state := c.stateStore.Get(session.UserID)

	r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadBytes+(1<<20))

	file, header, err := r.FormFile("image")

	if err != nil {
		slog.Info("no image in selection", "userID", session.UserID, "error", err)
		c.renderHome(w, r, state, selectionMessage(err, c.maxUploadBytes))
		return
	}

	defer file.Close()

	if _, err = services.ImageKey("", header.Filename); err != nil {
		slog.Info("rejected image filename", "userID", session.UserID, "filename", header.Filename)
		c.renderHome(w, r, state, selectionMessage(err, c.maxUploadBytes))
		return
	}

	if content, err = io.ReadAll(io.LimitReader(file, c.maxUploadBytes+1)); err != nil {
		slog.Error("error reading selected image", "userID", session.UserID, "error", err)
		c.renderHome(w, r, state, viewmodels.BaseViewModel{IsError: true, Message: "There was a problem reading that image."})
		return
	}

	if int64(len(content)) > c.maxUploadBytes {
		c.renderHome(w, r, state, selectionMessage(&http.MaxBytesError{Limit: c.maxUploadBytes}, c.maxUploadBytes))
		return
	}

	contentType := header.Header.Get("Content-Type")

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}

	state.SelectImage(&models.SelectedImage{
		Filename:    header.Filename,
		ContentType: contentType,
		Content:     content,
		SelectedAt:  time.Now(),
	})

	slog.Info("image selected", "userID", session.UserID, "filename", header.Filename, "size", len(content))
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

/*
POST /home/image/remove
*/
func (c HomeController) RemoveImage(w http.ResponseWriter, r *http.Request) {
	session := viewmodels.GetAuthSessionFromContext(r)
	c.stateStore.Get(session.UserID).RemoveImage()

	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

/*
GET /home/image/preview
*/
func (c HomeController) Preview(w http.ResponseWriter, r *http.Request) {
	session := viewmodels.GetAuthSessionFromContext(r)
	snapshot := c.stateStore.Get(session.UserID).Snapshot()

	if snapshot.Image == nil {
		httphelpers.WriteText(w, http.StatusNotFound, "no image selected")
		return
	}

	thumbnail, err := c.previewService.Thumbnail(snapshot.Image)

	if err != nil {
		slog.Warn("unable to render preview. sending original", "filename", snapshot.Image.Filename, "error", err)
		w.Header().Set("Content-Type", snapshot.Image.ContentType)
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(snapshot.Image.Content)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(thumbnail)
}

/*
POST /home/caption
*/
func (c HomeController) GenerateCaption(w http.ResponseWriter, r *http.Request) {
	var (
		storageErr *services.StorageError
	)

	session := viewmodels.GetAuthSessionFromContext(r)
	state := c.stateStore.Get(session.UserID)

	result, err := c.workflowService.Run(r.Context(), state)

	if err != nil {
		base := viewmodels.BaseViewModel{IsError: true, Message: workflowMessage(err)}

		if errors.Is(err, models.ErrNoImageSelected) || errors.Is(err, models.ErrSubmissionInFlight) {
			base.IsError = false
			base.IsWarning = true
		}

		if errors.As(err, &storageErr) {
			base.IsError = false
			base.IsWarning = true
		}

		c.renderHome(w, r, state, base)
		return
	}

	if !result.Applied {
		c.renderHome(w, r, state, viewmodels.BaseViewModel{
			IsWarning: true,
			Message:   "The image changed while the caption was being generated. Please try again.",
		})
		return
	}

	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

/*
POST /home/caption/next
*/
func (c HomeController) NextCaption(w http.ResponseWriter, r *http.Request) {
	session := viewmodels.GetAuthSessionFromContext(r)
	state := c.stateStore.Get(session.UserID)

	if _, err := c.workflowService.NextCaption(r.Context(), state); err != nil {
		slog.Info("unable to cycle caption", "userID", session.UserID, "error", err)
		c.renderHome(w, r, state, viewmodels.BaseViewModel{IsWarning: true, Message: workflowMessage(err)})
		return
	}

	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

/*
POST /home/caption/autocycle
*/
func (c HomeController) ToggleAutoCycle(w http.ResponseWriter, r *http.Request) {
	session := viewmodels.GetAuthSessionFromContext(r)
	state := c.stateStore.Get(session.UserID)

	state.SetAutoCycle(httphelpers.GetFromRequest[string](r, "enabled") == "true")
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

/*
GET /home/images/download
*/
func (c HomeController) DownloadImages(w http.ResponseWriter, r *http.Request) {
	session := viewmodels.GetAuthSessionFromContext(r)

	if c.archiveService == nil {
		httphelpers.WriteText(w, http.StatusNotFound, "downloads are not available")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="captioned-images-%s.zip"`, time.Now().Format("20060102")))

	added, err := c.archiveService.WriteArchive(r.Context(), w)

	if err != nil {
		slog.Error("error writing image archive", "userID", session.UserID, "error", err)
		return
	}

	slog.Info("image archive downloaded", "userID", session.UserID, "images", added)
}

func (c HomeController) renderHome(w http.ResponseWriter, r *http.Request, state *models.HomeState, base viewmodels.BaseViewModel) {
	session := viewmodels.GetAuthSessionFromContext(r)
	snapshot := state.Snapshot()

	base.IsHtmx = httphelpers.IsHtmx(r)
	base.JavascriptIncludes = []rendering.JavascriptInclude{
		{Type: "module", Src: "/static/js/pages/home.js"},
	}

	viewData := viewmodels.HomePage{
		BaseViewModel: base,
		UserName:      session.Name(),
		UploadCount:   snapshot.UploadCount,
		CaptionIndex:  snapshot.CaptionIndex,
		AutoCycle:     snapshot.AutoCycle,
		InFlight:      snapshot.InFlight,
		Phase:         string(snapshot.Phase),
		StoredImages:  []models.StoredImage{},
	}

	if snapshot.Image != nil {
		viewData.HasImage = true
		viewData.FileName = snapshot.Image.Filename
		viewData.FileSizeKB = (snapshot.Image.Size() + 1023) / 1024
	}

	if snapshot.Caption != nil {
		viewData.Caption = snapshot.Caption.Caption
	}

	if c.storedImages != nil {
		stored, err := c.storedImages.List()

		if err != nil {
			slog.Error("error listing stored images", "error", err)
		} else {
			viewData.StoredImages = stored
		}
	}

	c.renderer.Render("pages/home", viewData, w)
}

// selectionMessage explains why an image selection was refused.
func selectionMessage(err error, maxUploadBytes int64) viewmodels.BaseViewModel {
	var (
		tooLarge *http.MaxBytesError
	)

	result := viewmodels.BaseViewModel{IsWarning: true, Message: "Please select an image."}

	switch {
	case errors.As(err, &tooLarge):
		result.Message = fmt.Sprintf("That image is too large. The limit is %d MB.", maxUploadBytes>>20)
	case errors.Is(err, services.ErrInvalidImageName):
		result.Message = "That filename can't be used. Please rename the image and try again."
	}

	return result
}

func workflowMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrNoImageSelected):
		return "Please select an image."
	case errors.Is(err, models.ErrSubmissionInFlight):
		return "A caption is already being generated. Please wait."
	default:
		return err.Error()
	}
}
