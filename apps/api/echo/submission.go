package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/messengermaksym/diploma-project/core/school"
	"github.com/messengermaksym/diploma-project/core/submission"
	"github.com/messengermaksym/diploma-project/core/user"
)

type submissionApi struct {
	svc       submission.ServiceInterface
	schoolSvc school.ServiceInterface
	usrSvc    user.ServiceInterface
	validate  *validator.Validate
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := submissionApi{
		svc:       deps.SubmissionSvc,
		schoolSvc: deps.SchoolSvc,
		usrSvc:    deps.UserSvc,
		validate:  deps.Validate,
	}

	// a student's own hand-in for a practical work
	pg := g.Group("/practicals/:id/submission", jwt, roleMiddleware(user.RoleStudent))
	pg.GET("", api.retrieveOwn)
	pg.PUT("", api.attachFile)

	// grading surface for course teachers
	cg := g.Group("/courses/:id/practicals/:workID/submissions", jwt, courseTeacherMiddleware(deps.SchoolSvc, deps.UserSvc))
	cg.GET("", api.queryForWork)
	cg.PUT("", api.setGrades)

	// standalone grade records
	gg := g.Group("/grades", jwt)
	gg.GET("", api.queryGrades)
	gg.POST("", api.recordGrade, teacherMiddleware())
}

// retrieveOwn returns the caller's submission for the practical work,
// creating an empty one on first access.
func (api *submissionApi) retrieveOwn(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.GetOrCreate(ctx.Request().Context(), ctx.Param("id"), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) attachFile(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.GetOrCreate(ctx.Request().Context(), ctx.Param("id"), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer src.Close()

	sub, err = api.svc.AttachFile(ctx.Request().Context(), sub.ID, ctxUsr, fh.Filename, src)
	if err != nil {
		return errors.Wrap(err, "attaching file")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// queryForWork returns the work's submissions grouped by student group.
// An optional `group_id` query narrows the response to one group.
func (api *submissionApi) queryForWork(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	crs, err := api.schoolSvc.GetCourse(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}

	workID := ctx.Param("workID")
	groupID := ctx.QueryParam("group_id")

	grouped := make([]GroupSubmissions, 0, len(crs.GroupIDs))
	for _, gid := range crs.GroupIDs {
		if groupID != "" && gid != groupID {
			continue
		}
		grp, err := api.schoolSvc.GetGroup(reqCtx, gid)
		if err != nil {
			return errors.Wrap(err, "getting group")
		}

		subs, err := api.svc.ForPracticalWork(reqCtx, workID, grp.ID)
		if err != nil {
			return errors.Wrap(err, "querying submissions")
		}
		byStudent := make(map[string]submission.Submission, len(subs))
		for _, sub := range subs {
			byStudent[sub.StudentID] = sub
		}

		students, err := api.usrSvc.Query(reqCtx, &user.QueryFilter{GroupID: grp.ID, Role: user.RoleStudent}, nil)
		if err != nil {
			return errors.Wrap(err, "querying group students")
		}

		gs := GroupSubmissions{GroupID: grp.ID, Name: grp.Name, Submissions: make([]StudentSubmission, 0, len(students))}
		for _, std := range students {
			ss := StudentSubmission{Student: std}
			if sub, ok := byStudent[std.ID]; ok {
				ss.Submission = &sub
			}
			gs.Submissions = append(gs.Submissions, ss)
		}
		grouped = append(grouped, gs)
	}

	return ctx.JSON(http.StatusOK, grouped)
}

// setGrades applies a batch of grading instructions. A null score clears
// the grade, grade date and grader in one go.
func (api *submissionApi) setGrades(ctx echo.Context) error {
	var data []submission.GradeInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeInput list")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	graded := make([]submission.Submission, 0, len(data))
	for i := range data {
		if err := data[i].Validate(api.validate); err != nil {
			return err
		}
		sub, err := api.svc.SetGrade(ctx.Request().Context(), data[i].SubmissionID, data[i].Score, ctxUsr)
		if err != nil {
			return errors.Wrap(err, "setting grade")
		}
		graded = append(graded, sub)
	}
	return ctx.JSON(http.StatusOK, graded)
}

func (api *submissionApi) queryGrades(ctx echo.Context) error {
	var query GradeFilter
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to GradeFilter")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// students only see their own grades
	if ctxUsr.IsStudent() {
		query.StudentID = ctxUsr.ID
	}

	grades, err := api.svc.QueryGrades(ctx.Request().Context(), query.StudentID, query.CourseID)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []submission.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *submissionApi) recordGrade(ctx echo.Context) error {
	var data submission.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grd, err := api.svc.RecordGrade(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording grade")
	}
	return ctx.JSON(http.StatusCreated, grd)
}

type (
	GroupSubmissions struct {
		GroupID     string              `json:"group_id"`
		Name        string              `json:"name"`
		Submissions []StudentSubmission `json:"submissions"`
	}

	StudentSubmission struct {
		Student    user.User              `json:"student"`
		Submission *submission.Submission `json:"submission"`
	}

	GradeFilter struct {
		StudentID string `query:"student_id"`
		CourseID  string `query:"course_id"`
	}
)
