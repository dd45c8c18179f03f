package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/contact"
	"github.com/keemdrivingschool/keem/core/news"
	"github.com/keemdrivingschool/keem/core/settings"
)

const defaultNewsLimit = 10

type siteApi struct {
	contact  *contact.Service
	news     *news.Service
	settings *settings.Service
}

// registerSiteAPI registers the endpoints backing the public website: contact form, news and settings.
func registerSiteAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := siteApi{
		contact:  deps.ContactSvc,
		news:     deps.NewsSvc,
		settings: deps.SettingsSvc,
	}

	// public endpoints
	g.POST("/contact", api.submitContact)
	g.GET("/news", api.activeNews)

	ag := g.Group("/admin", authed...)
	ag.GET("/contact-messages", api.queryContact)
	ag.PUT("/contact-messages/:id/status", api.setContactStatus)
	ag.GET("/news", api.allNews)
	ag.POST("/news", api.createNews)
	ag.DELETE("/news/:id", api.deactivateNews)
	ag.GET("/settings", api.listSettings)
	ag.PUT("/settings/:key", api.updateSetting)
}

// Handlers

func (api *siteApi) submitContact(ctx echo.Context) error {
	var data contact.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	m, err := api.contact.Submit(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"id": m.ID})
}

func (api *siteApi) queryContact(ctx echo.Context) error {
	var filter contact.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	msgs, err := api.contact.Filter(ctx.Request().Context(), getPrincipal(ctx), filter)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []contact.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *siteApi) setContactStatus(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data StatusRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusRequest")
	}
	m, err := api.contact.SetStatus(ctx.Request().Context(), getPrincipal(ctx), id, data.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *siteApi) activeNews(ctx echo.Context) error {
	limit := defaultNewsLimit
	if v := ctx.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return core.NewFieldError("limit", "must be a positive number")
		}
		limit = n
	}
	items, err := api.news.Active(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "listing news")
	}
	if items == nil {
		items = []news.News{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *siteApi) allNews(ctx echo.Context) error {
	items, err := api.news.All(ctx.Request().Context(), getPrincipal(ctx))
	if err != nil {
		return err
	}
	if items == nil {
		items = []news.News{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *siteApi) createNews(ctx echo.Context) error {
	var data news.NewNews
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNews")
	}
	n, err := api.news.Create(ctx.Request().Context(), getPrincipal(ctx), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *siteApi) deactivateNews(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.news.Deactivate(ctx.Request().Context(), getPrincipal(ctx), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *siteApi) listSettings(ctx echo.Context) error {
	list, err := api.settings.List(ctx.Request().Context(), getPrincipal(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *siteApi) updateSetting(ctx echo.Context) error {
	var data SettingRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SettingRequest")
	}
	s, err := api.settings.Update(ctx.Request().Context(), getPrincipal(ctx), ctx.Param("key"), data.Value)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

type SettingRequest struct {
	Value string `json:"value"`
}
