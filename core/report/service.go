package report

import (
	"context"

	"github.com/pkg/errors"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/school"
)

type (
	// Repository runs the aggregate queries. Implementations push the math
	// into storage (AVG/COUNT over the submission table) instead of paging
	// rows through the app.
	Repository interface {
		CourseAvgGrade(ctx context.Context, courseID string, exec ...core.DBExecutor) (float64, bool, error)
		// CourseTotalStudents counts distinct members of the course's
		// enrolled groups.
		CourseTotalStudents(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error)
		// CourseStudentsGraded counts distinct students holding at least
		// one graded submission in the course.
		CourseStudentsGraded(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error)
		QueryPracticalStats(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]PracticalStats, error)
		QueryGroupStats(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]GroupStats, error)
	}

	// ChartRenderer turns a series into an inline image. Empty series yield
	// an empty string, not an error.
	ChartRenderer interface {
		BarChart(title string, series []LabeledValue) (string, error)
	}

	ServiceInterface interface {
		Aggregate(ctx context.Context, courseID string) (CourseStats, error)
		Render(ctx context.Context, crs school.Course) (Report, error)
	}

	service struct {
		db    core.DB
		repo  Repository
		chart ChartRenderer
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository, chart ChartRenderer) *service {
	return &service{db: db, repo: repo, chart: chart}
}

// Aggregate computes fresh stats for the course. Sparse data is not an
// error: a course with no groups, no practicals or no grades aggregates to
// zero counts and null averages.
func (svc *service) Aggregate(ctx context.Context, courseID string) (CourseStats, error) {
	stats := CourseStats{CourseID: courseID}

	avg, ok, err := svc.repo.CourseAvgGrade(ctx, courseID)
	if err != nil {
		return CourseStats{}, errors.Wrap(err, "aggregating course average")
	}
	if ok {
		stats.AvgGrade.SetValid(avg)
	}

	if stats.TotalStudents, err = svc.repo.CourseTotalStudents(ctx, courseID); err != nil {
		return CourseStats{}, errors.Wrap(err, "counting course students")
	}
	if stats.StudentsPassedAll, err = svc.repo.CourseStudentsGraded(ctx, courseID); err != nil {
		return CourseStats{}, errors.Wrap(err, "counting graded students")
	}

	if stats.Practicals, err = svc.repo.QueryPracticalStats(ctx, courseID); err != nil {
		return CourseStats{}, errors.Wrap(err, "aggregating practical stats")
	}
	if stats.Practicals == nil {
		stats.Practicals = []PracticalStats{}
	}
	if stats.Groups, err = svc.repo.QueryGroupStats(ctx, courseID); err != nil {
		return CourseStats{}, errors.Wrap(err, "aggregating group stats")
	}
	if stats.Groups == nil {
		stats.Groups = []GroupStats{}
	}
	return stats, nil
}

// Render aggregates the course and attaches bar charts for the practical
// and group series.
func (svc *service) Render(ctx context.Context, crs school.Course) (Report, error) {
	stats, err := svc.Aggregate(ctx, crs.ID)
	if err != nil {
		return Report{}, err
	}

	rpt := Report{
		CourseID:          crs.ID,
		CourseTitle:       crs.Title,
		AvgGrade:          stats.AvgGrade,
		TotalStudents:     stats.TotalStudents,
		StudentsPassedAll: stats.StudentsPassedAll,
		Practicals:        stats.Practicals,
		Groups:            stats.Groups,
	}

	if rpt.PracticalChart, err = svc.chart.BarChart(crs.Title+" - practical works", stats.PracticalSeries()); err != nil {
		return Report{}, errors.Wrap(err, "rendering practical chart")
	}
	if rpt.GroupChart, err = svc.chart.BarChart(crs.Title+" - groups", stats.GroupSeries()); err != nil {
		return Report{}, errors.Wrap(err, "rendering group chart")
	}
	return rpt, nil
}
