package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/report"
	"github.com/messengermaksym/diploma-project/storage/database"
)

type reportRepository struct {
	db *database.DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *database.DB) *reportRepository {
	return &reportRepository{db: db}
}

// CourseAvgGrade averages every graded submission in the course. The false
// return distinguishes "no grades" from an average of zero.
func (repo reportRepository) CourseAvgGrade(ctx context.Context, courseID string, exec ...core.DBExecutor) (float64, bool, error) {
	q := `
		SELECT AVG(s.grade)
		FROM practical_work_submission s
		JOIN practical_work w ON w.id = s.practical_work_id
		WHERE w.course_id = $1 AND s.grade IS NOT NULL`
	var avg null.Float64
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &avg, q, courseID); err != nil {
		return 0, false, errors.Wrap(err, "averaging course grades")
	}
	return avg.Float64, avg.Valid, nil
}

func (repo reportRepository) CourseTotalStudents(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error) {
	q := `
		SELECT COUNT(DISTINCT ug.user_id)
		FROM course_group cg
		JOIN user_group ug ON ug.group_id = cg.group_id
		WHERE cg.course_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &count, q, courseID); err != nil {
		return 0, errors.Wrap(err, "counting course students")
	}
	return count, nil
}

func (repo reportRepository) CourseStudentsGraded(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error) {
	q := `
		SELECT COUNT(DISTINCT s.student_id)
		FROM practical_work_submission s
		JOIN practical_work w ON w.id = s.practical_work_id
		WHERE w.course_id = $1 AND s.grade IS NOT NULL`
	var count int
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &count, q, courseID); err != nil {
		return 0, errors.Wrap(err, "counting graded students")
	}
	return count, nil
}

func (repo reportRepository) QueryPracticalStats(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]report.PracticalStats, error) {
	q := `
		SELECT w.id AS practical_work_id, w.title,
			AVG(s.grade) AS avg_grade,
			COUNT(s.grade) AS graded_count
		FROM practical_work w
		LEFT JOIN practical_work_submission s ON s.practical_work_id = w.id
		WHERE w.course_id = $1
		GROUP BY w.id, w.title
		ORDER BY w.title`
	var stats []report.PracticalStats
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &stats, q, courseID); err != nil {
		return nil, errors.Wrap(err, "aggregating practical stats")
	}
	return stats, nil
}

func (repo reportRepository) QueryGroupStats(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]report.GroupStats, error) {
	q := `
		SELECT g.id AS group_id, g.name,
			AVG(s.grade) AS avg_grade
		FROM course_group cg
		JOIN student_group g ON g.id = cg.group_id
		LEFT JOIN user_group ug ON ug.group_id = g.id
		LEFT JOIN practical_work w ON w.course_id = cg.course_id
		LEFT JOIN practical_work_submission s
			ON s.practical_work_id = w.id AND s.student_id = ug.user_id
		WHERE cg.course_id = $1
		GROUP BY g.id, g.name
		ORDER BY g.name`
	var stats []report.GroupStats
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &stats, q, courseID); err != nil {
		return nil, errors.Wrap(err, "aggregating group stats")
	}
	return stats, nil
}
