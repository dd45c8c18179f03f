package echoapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/application"
	"github.com/keemdrivingschool/keem/core/export"
	"github.com/keemdrivingschool/keem/core/settings"
)

const photoField = "profile_photo"

type applicationApi struct {
	svc      *application.Service
	settings *settings.Service
	photos   PhotoOpener
	metrics  *Metrics
}

func registerApplicationAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := applicationApi{
		svc:      deps.ApplicationSvc,
		settings: deps.SettingsSvc,
		photos:   deps.Photos,
		metrics:  deps.Metrics,
	}

	// public endpoints
	g.POST("/applications", api.submit)
	g.GET("/applications/status", api.lookup)

	ag := g.Group("/admin/applications", authed...)
	ag.GET("", api.query)
	ag.GET("/stats", api.stats)
	ag.GET("/export/pdf", api.exportPDF)
	ag.GET("/export/excel", api.exportExcel)
	ag.GET("/:id", api.retrieve)
	ag.GET("/:id/pdf", api.retrievePDF)
	ag.GET("/:id/photo", api.photo)
	ag.POST("/:id/transition", api.transition)
	ag.POST("/:id/notes", api.annotate)
}

// Handlers

// submit accepts JSON, or a multipart form carrying the optional profile photo.
func (api *applicationApi) submit(ctx echo.Context) error {
	var data application.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}

	var photo io.Reader
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := ctx.FormFile(photoField)
		if err != nil && err != http.ErrMissingFile {
			return core.NewFieldError(photoField, "invalid file")
		}
		if fh != nil {
			f, err := fh.Open()
			if err != nil {
				return errors.Wrap(err, "opening uploaded photo")
			}
			defer func() { _ = f.Close() }()
			photo = f
		}
	}

	app, err := api.svc.Submit(ctx.Request().Context(), data, photo)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, SubmitResponse{
		ID:                app.ID,
		ApplicationNumber: app.ApplicationNumber,
		Status:            app.Status,
	})
}

func (api *applicationApi) lookup(ctx echo.Context) error {
	view, err := api.svc.Lookup(ctx.Request().Context(), ctx.QueryParam("reference"), ctx.QueryParam("email"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *applicationApi) filter(ctx echo.Context) ([]application.Application, application.QueryFilter, error) {
	var filter application.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return nil, filter, errors.Wrap(err, "binding to QueryFilter")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	apps, err := api.svc.Filter(ctx.Request().Context(), getPrincipal(ctx), filter, ordering.Orderings...)
	if err != nil {
		return nil, filter, err
	}
	if apps == nil {
		apps = []application.Application{}
	}
	return apps, filter, nil
}

func (api *applicationApi) query(ctx echo.Context) error {
	apps, _, err := api.filter(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *applicationApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), getPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *applicationApi) exportPDF(ctx echo.Context) error {
	apps, filter, err := api.filter(ctx)
	if err != nil {
		return err
	}
	snap, err := api.settings.Snapshot(ctx.Request().Context())
	if err != nil {
		return err
	}
	p := getPrincipal(ctx)
	data, err := export.ApplicationsPDF(apps, export.Meta{
		Filters:     describeFilter(filter),
		GeneratedBy: p.Name,
		Settings:    snap,
	})
	if err != nil {
		return errors.Wrap(err, "exporting applications to pdf")
	}
	return attachment(ctx, mimePDF, exportFilename("applications", "pdf"), data)
}

func (api *applicationApi) exportExcel(ctx echo.Context) error {
	apps, _, err := api.filter(ctx)
	if err != nil {
		return err
	}
	data, err := export.ApplicationsExcel(apps)
	if err != nil {
		return errors.Wrap(err, "exporting applications to excel")
	}
	return attachment(ctx, mimeXLSX, exportFilename("applications", "xlsx"), data)
}

func (api *applicationApi) get(ctx echo.Context) (application.Application, error) {
	id, err := paramID(ctx, "id")
	if err != nil {
		return application.Application{}, err
	}
	return api.svc.Get(ctx.Request().Context(), getPrincipal(ctx), id)
}

func (api *applicationApi) retrieve(ctx echo.Context) error {
	app, err := api.get(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) retrievePDF(ctx echo.Context) error {
	app, err := api.get(ctx)
	if err != nil {
		return err
	}
	snap, err := api.settings.Snapshot(ctx.Request().Context())
	if err != nil {
		return err
	}
	data, err := export.ApplicationPDF(app, snap)
	if err != nil {
		return errors.Wrap(err, "exporting application to pdf")
	}
	return attachment(ctx, mimePDF, fmt.Sprintf("application-%s.pdf", app.ApplicationNumber), data)
}

func (api *applicationApi) photo(ctx echo.Context) error {
	app, err := api.get(ctx)
	if err != nil {
		return err
	}
	if app.ProfilePhoto == "" || api.photos == nil {
		return core.NewNotFoundError("photo")
	}
	f, err := api.photos.Open(app.ProfilePhoto)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return ctx.Stream(http.StatusOK, "image/jpeg", f)
}

func (api *applicationApi) transition(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data StatusRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusRequest")
	}

	res, err := api.svc.Transition(ctx.Request().Context(), getPrincipal(ctx), id, data.Status, data.Notes)
	if err != nil {
		return err
	}
	api.metrics.ObserveTransition(res)

	warns := res.Warnings()
	if warns == nil {
		warns = []string{}
	}
	return ctx.JSON(http.StatusOK, TransitionResponse{TransitionResult: res, Warnings: warns})
}

func (api *applicationApi) annotate(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data NotesRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NotesRequest")
	}
	app, err := api.svc.Annotate(ctx.Request().Context(), getPrincipal(ctx), id, data.Notes)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

// describeFilter renders the filters of an export for its header.
func describeFilter(f application.QueryFilter) string {
	var parts []string
	add := func(name, val string) {
		if val != "" {
			parts = append(parts, name+"="+val)
		}
	}
	add("status", f.Status)
	add("branch", f.Branch)
	add("course", f.Course)
	add("from", f.DateFrom)
	add("to", f.DateTo)
	add("search", f.Search)
	return strings.Join(parts, ", ")
}

func exportFilename(name, ext string) string {
	return fmt.Sprintf("%s-%s.%s", name, time.Now().UTC().Format("20060102-150405"), ext)
}

type (
	SubmitResponse struct {
		ID                int                `json:"id"`
		ApplicationNumber string             `json:"application_number"`
		Status            application.Status `json:"status"`
	}

	TransitionResponse struct {
		application.TransitionResult
		Warnings []string `json:"warnings"`
	}
)
