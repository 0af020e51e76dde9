package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/messengermaksym/diploma-project/core/school"
	"github.com/messengermaksym/diploma-project/core/user"
)

type schoolApi struct {
	svc      school.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := schoolApi{
		svc:      deps.SchoolSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	gg := g.Group("/groups", jwt)
	gg.GET("", api.queryGroups)
	gg.POST("", api.createGroup, adminMiddleware())
	gg.DELETE("", api.destroyGroups, adminMiddleware())
	gg.GET("/:id", api.retrieveGroup)
	gg.PUT("/:id", api.updateGroup, adminMiddleware())
	gg.DELETE("/:id", api.destroyGroup, adminMiddleware())

	cg := g.Group("/courses", jwt)
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse, teacherMiddleware())
	cg.GET("/:id", api.retrieveCourse)
	cg.PUT("/:id", api.updateCourse, courseTeacherMiddleware(api.svc, api.usrSvc))
	cg.DELETE("/:id", api.destroyCourse, courseTeacherMiddleware(api.svc, api.usrSvc))
	cg.GET("/:id/tests", api.queryCourseTests)
	cg.GET("/:id/schedule", api.queryCourseSchedule)
	cg.POST("/:id/schedule", api.createSchedule, courseTeacherMiddleware(api.svc, api.usrSvc))

	tg := g.Group("/tests", jwt)
	tg.POST("", api.createTest, teacherMiddleware())
	tg.GET("/:id", api.retrieveTest)
	tg.DELETE("/:id", api.destroyTest, teacherMiddleware())

	ag := g.Group("/attendance", jwt)
	ag.POST("", api.openAttendance)
	ag.PUT("/:id/close", api.closeAttendance)
	ag.GET("", api.queryAttendance)

	rg := g.Group("/reviews", jwt)
	rg.POST("", api.createReview)
	g.GET("/users/:id/reviews", api.queryUserReviews, jwt)
}

// Group handlers

func (api *schoolApi) queryGroups(ctx echo.Context) error {
	groups, err := api.svc.QueryGroups(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []school.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *schoolApi) createGroup(ctx echo.Context) error {
	var data school.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.CreateGroup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *schoolApi) retrieveGroup(ctx echo.Context) error {
	grp, err := api.svc.GetGroup(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *schoolApi) updateGroup(ctx echo.Context) error {
	var data school.UpdateGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.UpdateGroup(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *schoolApi) destroyGroup(ctx echo.Context) error {
	if err := api.svc.DeleteGroups(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) destroyGroups(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.DeleteGroups(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting groups")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Course handlers

// queryCourses returns the courses visible to the caller. Visibility is
// role-driven: teachers see the courses they teach, students the courses
// of their groups. Admins manage courses but attend none.
func (api *schoolApi) queryCourses(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	courses, err := api.svc.VisibleCourses(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "querying visible courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *schoolApi) createCourse(ctx echo.Context) error {
	var data school.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// a teacher creating a course always teaches it
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsTeacher() && !containsStr(data.TeacherIDs, ctxUsr.ID) {
		data.TeacherIDs = append(data.TeacherIDs, ctxUsr.ID)
	}

	crs, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *schoolApi) retrieveCourse(ctx echo.Context) error {
	crs, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !canSeeCourse(crs, ctxUsr) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *schoolApi) updateCourse(ctx echo.Context) error {
	var data school.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.UpdateCourse(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *schoolApi) destroyCourse(ctx echo.Context) error {
	if err := api.svc.DeleteCourses(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Test handlers

func (api *schoolApi) createTest(ctx echo.Context) error {
	var data school.NewTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tst, err := api.svc.CreateTest(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating test")
	}
	return ctx.JSON(http.StatusCreated, tst)
}

func (api *schoolApi) retrieveTest(ctx echo.Context) error {
	tst, err := api.svc.GetTest(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting test")
	}
	return ctx.JSON(http.StatusOK, tst)
}

func (api *schoolApi) destroyTest(ctx echo.Context) error {
	if err := api.svc.DeleteTests(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting test")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) queryCourseTests(ctx echo.Context) error {
	tests, err := api.svc.QueryTestsByCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying course tests")
	}
	if tests == nil {
		tests = []school.Test{}
	}
	return ctx.JSON(http.StatusOK, tests)
}

// Schedule & attendance handlers

func (api *schoolApi) queryCourseSchedule(ctx echo.Context) error {
	entries, err := api.svc.QueryScheduleByCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying schedule")
	}
	if entries == nil {
		entries = []school.Schedule{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *schoolApi) createSchedule(ctx echo.Context) error {
	var data school.NewSchedule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchedule")
	}
	data.CourseID = ctx.Param("id")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	entry, err := api.svc.CreateSchedule(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating schedule entry")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *schoolApi) openAttendance(ctx echo.Context) error {
	var data AttendanceRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttendanceRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	att, err := api.svc.RecordAttendance(ctx.Request().Context(), ctxUsr.ID, data.CourseID)
	if err != nil {
		return errors.Wrap(err, "recording attendance")
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *schoolApi) closeAttendance(ctx echo.Context) error {
	att, err := api.svc.CloseAttendance(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "closing attendance")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *schoolApi) queryAttendance(ctx echo.Context) error {
	var query AttendanceFilter
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to AttendanceFilter")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// students only see their own attendance
	if !(ctxUsr.IsTeacher() || ctxUsr.IsAdmin()) {
		query.UserID = ctxUsr.ID
	}

	entries, err := api.svc.QueryAttendance(ctx.Request().Context(), query.UserID, query.CourseID)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if entries == nil {
		entries = []school.Attendance{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

// Review handlers

func (api *schoolApi) createReview(ctx echo.Context) error {
	var data school.NewReview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReview")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rev, err := api.svc.CreateReview(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating review")
	}
	return ctx.JSON(http.StatusCreated, rev)
}

func (api *schoolApi) queryUserReviews(ctx echo.Context) error {
	reviews, err := api.svc.QueryReviewsForUser(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying reviews")
	}
	if reviews == nil {
		reviews = []school.Review{}
	}
	return ctx.JSON(http.StatusOK, reviews)
}

// courseTeacherMiddleware restricts a /courses/:id route to the course's
// teachers and admins.
func courseTeacherMiddleware(svc school.ServiceInterface, usrSvc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if ctxUsr.IsAdmin() {
				return next(ctx)
			}

			crs, err := svc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "getting course")
			}
			if crs.HasTeacher(ctxUsr.ID) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func canSeeCourse(crs school.Course, usr user.User) bool {
	if usr.IsAdmin() || crs.HasTeacher(usr.ID) {
		return true
	}
	for _, gid := range usr.GroupIDs {
		if crs.HasGroup(gid) {
			return true
		}
	}
	return false
}

func containsStr(vals []string, val string) bool {
	for _, v := range vals {
		if v == val {
			return true
		}
	}
	return false
}

type (
	AttendanceRequest struct {
		CourseID string `json:"course_id" validate:"required"`
	}

	AttendanceFilter struct {
		UserID   string `query:"user_id"`
		CourseID string `query:"course_id"`
	}
)
