package httpapi

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

type loadResponse struct {
	Source    string `json:"source"`
	Pages     int    `json:"pages"`
	TextLayer bool   `json:"text_layer"`
}

type statusResponse struct {
	redaction.Status
	ByCategory map[redaction.Category]int `json:"by_category"`
}

type settingsPayload struct {
	Categories     []string `json:"categories"`
	CustomKeywords []string `json:"custom_keywords"`
}

type settingsResponse struct {
	Categories     []redaction.Category `json:"categories"`
	CustomKeywords []string             `json:"custom_keywords"`
	Available      []redaction.Category `json:"available"`
}

type marksResponse struct {
	Marks      []redaction.MarkView       `json:"marks"`
	ByCategory map[redaction.Category]int `json:"by_category"`
}

// UploadDocument loads the multipart "file" field as the session document
func (a *API) UploadDocument(c echo.Context) error {
	_, header, err := c.Request().FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	if a.maxFileSize > 0 && header.Size > a.maxFileSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file too large: %d bytes (max: %d bytes)", header.Size, a.maxFileSize))
	}

	file, err := header.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read upload")
	}

	pages, err := a.session.Load(c.Request().Context(), header.Filename, data)
	if err != nil {
		return a.fail(c, err)
	}
	st := a.session.Status()
	return c.JSON(http.StatusOK, loadResponse{Source: st.Source, Pages: pages, TextLayer: st.TextLayer})
}

// GetPage serves one rendered page as JPEG
func (a *API) GetPage(c echo.Context) error {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "page must be a positive number")
	}
	page, ok := a.session.Page(n)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("page %d not loaded", n))
	}
	c.Response().Header().Set("X-Page-Width", strconv.Itoa(page.PixelWidth))
	c.Response().Header().Set("X-Page-Height", strconv.Itoa(page.PixelHeight))
	return c.Blob(http.StatusOK, "image/jpeg", page.ImageData)
}

// GetStatus reports the session state and mark counts
func (a *API) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:     a.session.Status(),
		ByCategory: redaction.CategoryCounts(a.session.Marks(0, nil)),
	})
}

// GetSettings returns the detection settings for the next run
func (a *API) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, a.settings())
}

// PutSettings replaces categories and keywords
func (a *API) PutSettings(c echo.Context) error {
	var payload settingsPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid settings payload")
	}

	categories := make([]redaction.Category, 0, len(payload.Categories))
	for _, label := range payload.Categories {
		cat, ok := redaction.ParseCategory(label)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown category: %s", label))
		}
		categories = append(categories, cat)
	}

	settings := a.session.Settings()
	settings.SetCategories(categories)
	settings.SetKeywords(payload.CustomKeywords)
	return c.JSON(http.StatusOK, a.settings())
}

func (a *API) settings() settingsResponse {
	snap := a.session.Settings().Snapshot()
	keywords := snap.CustomKeywords
	if keywords == nil {
		keywords = []string{}
	}
	return settingsResponse{
		Categories:     snap.Categories,
		CustomKeywords: keywords,
		Available:      redaction.AllCategories,
	}
}

// StartRun runs detection over every page and waits for the result.
// Dropping the request aborts the run.
func (a *API) StartRun(c echo.Context) error {
	res, err := a.session.Run(c.Request().Context())
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// AbortRun cancels an in-flight run
func (a *API) AbortRun(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"aborted": a.session.Abort()})
}

// ListMarks lists marks filtered by page and category
func (a *API) ListMarks(c echo.Context) error {
	page := 0
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "page must be a positive number")
		}
		page = n
	}

	filter := map[redaction.Category]bool{}
	for _, raw := range c.QueryParams()["category"] {
		for _, label := range strings.Split(raw, ",") {
			if strings.TrimSpace(label) == "" {
				continue
			}
			cat, ok := redaction.ParseCategory(label)
			if !ok {
				return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown category: %s", label))
			}
			filter[cat] = true
		}
	}

	reveal, _ := strconv.ParseBool(c.QueryParam("reveal"))
	views := a.session.MarkViews(page, filter, reveal)

	marks := make([]redaction.Mark, len(views))
	for i, v := range views {
		marks[i] = v.Mark
	}
	return c.JSON(http.StatusOK, marksResponse{Marks: views, ByCategory: redaction.CategoryCounts(marks)})
}

// DeleteMark removes one mark. Deleting an id that is already gone also
// succeeds, so a double click or a retried request is harmless.
func (a *API) DeleteMark(c echo.Context) error {
	id := c.Param("id")
	if !a.session.RemoveMark(id) {
		a.logger.WithField("mark_id", id).Debug("Mark already removed")
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearMarks removes every mark
func (a *API) ClearMarks(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{"removed": a.session.ClearMarks()})
}

// Export streams the redacted PDF as a download
func (a *API) Export(c echo.Context) error {
	res, err := a.session.Export(c.Request().Context())
	if err != nil {
		return a.fail(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	return c.Blob(http.StatusOK, "application/pdf", res.Data)
}
