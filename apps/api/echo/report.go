package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/messengermaksym/diploma-project/core/report"
	"github.com/messengermaksym/diploma-project/core/school"
)

type reportApi struct {
	svc       report.ServiceInterface
	schoolSvc school.ServiceInterface
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := reportApi{
		svc:       deps.ReportSvc,
		schoolSvc: deps.SchoolSvc,
	}

	g.GET("/courses/:id/analytics", api.retrieve, jwt, courseTeacherMiddleware(deps.SchoolSvc, deps.UserSvc))
}

// retrieve aggregates the course's grading stats and renders them with
// chart images as data URIs.
func (api *reportApi) retrieve(ctx echo.Context) error {
	crs, err := api.schoolSvc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}

	rpt, err := api.svc.Render(ctx.Request().Context(), crs)
	if err != nil {
		return errors.Wrap(err, "rendering course report")
	}
	return ctx.JSON(http.StatusOK, rpt)
}
