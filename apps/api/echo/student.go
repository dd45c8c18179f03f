package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core/export"
	"github.com/keemdrivingschool/keem/core/settings"
	"github.com/keemdrivingschool/keem/core/student"
)

type studentApi struct {
	svc      *student.Service
	settings *settings.Service
}

func registerStudentAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{
		svc:      deps.StudentSvc,
		settings: deps.SettingsSvc,
	}

	sg := g.Group("/admin/students", authed...)
	sg.GET("", api.query)
	sg.GET("/export/excel", api.exportExcel)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update)
	sg.GET("/:id/payments", api.payments)
	sg.POST("/:id/payments", api.recordPayment)
	sg.GET("/:id/lessons", api.lessons)
	sg.POST("/:id/lessons", api.scheduleLesson)

	pg := g.Group("/admin/payments", authed...)
	pg.GET("", api.queryPayments)
	pg.GET("/export/excel", api.exportPayments)
	pg.GET("/:id/receipt", api.receipt)
	pg.POST("/:id/reverse", api.reversePayment)

	lg := g.Group("/admin/lessons", authed...)
	lg.PUT("/:id/status", api.setLessonStatus)
}

// Handlers

func (api *studentApi) filter(ctx echo.Context) ([]student.Student, error) {
	var filter student.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return nil, errors.Wrap(err, "binding to QueryFilter")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Filter(ctx.Request().Context(), getPrincipal(ctx), filter, ordering.Orderings...)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []student.Student{}
	}
	return students, nil
}

func (api *studentApi) query(ctx echo.Context) error {
	students, err := api.filter(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) exportExcel(ctx echo.Context) error {
	students, err := api.filter(ctx)
	if err != nil {
		return err
	}
	data, err := export.StudentsExcel(students)
	if err != nil {
		return errors.Wrap(err, "exporting students to excel")
	}
	return attachment(ctx, mimeXLSX, exportFilename("students", "xlsx"), data)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	st, err := api.svc.Get(ctx.Request().Context(), getPrincipal(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) update(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data student.UpdateEnrollment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEnrollment")
	}
	st, err := api.svc.UpdateEnrollment(ctx.Request().Context(), getPrincipal(ctx), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) payments(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	p := getPrincipal(ctx)
	st, err := api.svc.Get(ctx.Request().Context(), p, id)
	if err != nil {
		return err
	}
	payments, err := api.svc.Payments(ctx.Request().Context(), p, student.PaymentFilter{StudentID: st.ID})
	if err != nil {
		return err
	}
	if payments == nil {
		payments = []student.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *studentApi) recordPayment(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data student.NewPayment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	pay, st, err := api.svc.RecordPayment(ctx.Request().Context(), getPrincipal(ctx), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, PaymentResponse{Payment: pay, Student: st})
}

func (api *studentApi) filterPayments(ctx echo.Context) ([]student.Payment, error) {
	var filter student.PaymentFilter
	if err := ctx.Bind(&filter); err != nil {
		return nil, errors.Wrap(err, "binding to PaymentFilter")
	}
	payments, err := api.svc.Payments(ctx.Request().Context(), getPrincipal(ctx), filter)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []student.Payment{}
	}
	return payments, nil
}

func (api *studentApi) queryPayments(ctx echo.Context) error {
	payments, err := api.filterPayments(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *studentApi) exportPayments(ctx echo.Context) error {
	payments, err := api.filterPayments(ctx)
	if err != nil {
		return err
	}
	data, err := export.PaymentsExcel(payments)
	if err != nil {
		return errors.Wrap(err, "exporting payments to excel")
	}
	return attachment(ctx, mimeXLSX, exportFilename("payments", "xlsx"), data)
}

func (api *studentApi) receipt(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	pay, st, err := api.svc.Payment(ctx.Request().Context(), getPrincipal(ctx), id)
	if err != nil {
		return err
	}
	snap, err := api.settings.Snapshot(ctx.Request().Context())
	if err != nil {
		return err
	}
	data, err := export.ReceiptPDF(pay, st, snap)
	if err != nil {
		return errors.Wrap(err, "rendering receipt")
	}
	return attachment(ctx, mimePDF, fmt.Sprintf("receipt-%s.pdf", pay.PaymentNumber), data)
}

func (api *studentApi) reversePayment(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data ReverseRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReverseRequest")
	}
	pay, st, err := api.svc.ReversePayment(ctx.Request().Context(), getPrincipal(ctx), id, data.Reason)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, PaymentResponse{Payment: pay, Student: st})
}

func (api *studentApi) lessons(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	lessons, err := api.svc.Lessons(ctx.Request().Context(), getPrincipal(ctx), id)
	if err != nil {
		return err
	}
	if lessons == nil {
		lessons = []student.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *studentApi) scheduleLesson(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data student.NewLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	l, err := api.svc.ScheduleLesson(ctx.Request().Context(), getPrincipal(ctx), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *studentApi) setLessonStatus(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data StatusRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusRequest")
	}
	l, err := api.svc.SetLessonStatus(ctx.Request().Context(), getPrincipal(ctx), id, data.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, l)
}

type (
	PaymentResponse struct {
		Payment student.Payment `json:"payment"`
		Student student.Student `json:"student"`
	}

	ReverseRequest struct {
		Reason string `json:"reason"`
	}
)
