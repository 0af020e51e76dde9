package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/submission"
	"github.com/messengermaksym/diploma-project/storage/database"
)

const submissionColumns = `id, practical_work_id, student_id, file, submitted_at, grade, grade_date, teacher_id`

type submissionRepository struct {
	db *database.DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *database.DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo submissionRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return submission.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// GetOrCreateSubmission inserts the row; when the unique (practical work,
// student) constraint fires the racing winner's row is fetched instead, so
// concurrent first accesses converge on one submission.
func (repo submissionRepository) GetOrCreateSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	e := ext(repo.db, exec)

	existing, err := repo.getByPair(ctx, e, sub.PracticalWorkID, sub.StudentID)
	if err == nil {
		return existing, nil
	}
	if errors.Cause(err) != submission.ErrNotFound {
		return submission.Submission{}, err
	}

	sub.ID = uuid.New().String()
	q := `
		INSERT INTO practical_work_submission (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = e.ExecContext(
		ctx, q,
		sub.ID, sub.PracticalWorkID, sub.StudentID, sub.File, sub.SubmittedAt.UTC(),
		sub.Grade, sub.GradeDate, sub.TeacherID,
	)
	if err != nil {
		if isUniqueViolation(errors.Cause(err)) {
			return repo.getByPair(ctx, e, sub.PracticalWorkID, sub.StudentID)
		}
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo submissionRepository) getByPair(ctx context.Context, e sqlx.ExtContext, practicalWorkID, studentID string) (submission.Submission, error) {
	var sub submission.Submission
	q := `SELECT ` + submissionColumns + ` FROM practical_work_submission WHERE practical_work_id = $1 AND student_id = $2`
	if err := sqlx.GetContext(ctx, e, &sub, q, practicalWorkID, studentID); err != nil {
		return submission.Submission{}, repo.trapNoRowsErr(err, "getting submission by pair")
	}
	return sub, nil
}

func (repo submissionRepository) GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (submission.Submission, error) {
	var sub submission.Submission
	q := `SELECT ` + submissionColumns + ` FROM practical_work_submission WHERE id = $1`
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &sub, q, id); err != nil {
		return submission.Submission{}, repo.trapNoRowsErr(err, "getting submission")
	}
	return sub, nil
}

func (repo submissionRepository) QuerySubmissions(ctx context.Context, practicalWorkID, groupID string, exec ...core.DBExecutor) ([]submission.Submission, error) {
	q := `SELECT s.id, s.practical_work_id, s.student_id, s.file, s.submitted_at, s.grade, s.grade_date, s.teacher_id
		FROM practical_work_submission s`
	args := []interface{}{practicalWorkID}
	if groupID != "" {
		q += ` JOIN user_group ug ON ug.user_id = s.student_id AND ug.group_id = $2`
		args = append(args, groupID)
	}
	q += ` WHERE s.practical_work_id = $1 ORDER BY s.submitted_at`

	var subs []submission.Submission
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &subs, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return subs, nil
}

func (repo submissionRepository) QuerySubmissionsByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]submission.Submission, error) {
	q := `SELECT s.id, s.practical_work_id, s.student_id, s.file, s.submitted_at, s.grade, s.grade_date, s.teacher_id
		FROM practical_work_submission s
		JOIN practical_work w ON w.id = s.practical_work_id
		WHERE w.course_id = $1
		ORDER BY s.submitted_at`
	var subs []submission.Submission
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &subs, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying course submissions")
	}
	return subs, nil
}

func (repo submissionRepository) UpdateSubmissionFile(ctx context.Context, id string, file null.String, exec ...core.DBExecutor) (submission.Submission, error) {
	var sub submission.Submission
	q := `UPDATE practical_work_submission SET file = $1 WHERE id = $2 RETURNING ` + submissionColumns
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &sub, q, file, id); err != nil {
		return submission.Submission{}, repo.trapNoRowsErr(err, "updating submission file")
	}
	return sub, nil
}

// SetSubmissionGrade writes the grade trio in one statement so readers never
// observe a half-graded row.
func (repo submissionRepository) SetSubmissionGrade(ctx context.Context, id string, grade null.Int, gradeDate null.Time, teacherID null.String, exec ...core.DBExecutor) (submission.Submission, error) {
	var sub submission.Submission
	q := `
		UPDATE practical_work_submission
		SET grade = $1, grade_date = $2, teacher_id = $3
		WHERE id = $4
		RETURNING ` + submissionColumns
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &sub, q, grade, gradeDate, teacherID, id); err != nil {
		return submission.Submission{}, repo.trapNoRowsErr(err, "setting submission grade")
	}
	return sub, nil
}

// Grade records

func (repo submissionRepository) CreateGrade(ctx context.Context, grd submission.Grade, exec ...core.DBExecutor) (submission.Grade, error) {
	grd.ID = uuid.New().String()
	q := `
		INSERT INTO grade (id, student_id, course_id, practical_work_id, test_id, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := ext(repo.db, exec).ExecContext(
		ctx, q,
		grd.ID, grd.StudentID, grd.CourseID, grd.PracticalWorkID, grd.TestID, grd.Score, grd.CreatedAt.UTC(),
	)
	if err != nil {
		return submission.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return grd, nil
}

func (repo submissionRepository) QueryGrades(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) ([]submission.Grade, error) {
	q := `SELECT id, student_id, course_id, practical_work_id, test_id, score, created_at FROM grade`
	var (
		conds []string
		args  []interface{}
	)
	if studentID != "" {
		args = append(args, studentID)
		conds = append(conds, "student_id = $1")
	}
	if courseID != "" {
		args = append(args, courseID)
		if len(args) == 1 {
			conds = append(conds, "course_id = $1")
		} else {
			conds = append(conds, "course_id = $2")
		}
	}
	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	q += ` ORDER BY created_at DESC`

	var grades []submission.Grade
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &grades, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	return grades, nil
}

func (repo submissionRepository) DeleteGradesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := ext(repo.db, exec).ExecContext(ctx, `DELETE FROM grade WHERE id = ANY($1)`, pqStrArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting grades")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
