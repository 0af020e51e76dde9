package submission

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/school"
	"github.com/messengermaksym/diploma-project/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("submission not found")
	ErrGradeNotFound = errors.New("grade not found")
)

type (
	Repository interface {
		// GetOrCreateSubmission inserts sub and returns it; when the
		// (practical work, student) pair already exists it returns the
		// existing row instead. The conflict never escapes.
		GetOrCreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		// QuerySubmissions lists submissions for a practical work; groupID
		// narrows it to students of that group.
		QuerySubmissions(ctx context.Context, practicalWorkID, groupID string, exec ...core.DBExecutor) ([]Submission, error)
		QuerySubmissionsByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Submission, error)
		UpdateSubmissionFile(ctx context.Context, id string, file null.String, exec ...core.DBExecutor) (Submission, error)
		// SetSubmissionGrade writes grade, grade date and teacher in a
		// single statement, all set or all null.
		SetSubmissionGrade(ctx context.Context, id string, grade null.Int, gradeDate null.Time, teacherID null.String, exec ...core.DBExecutor) (Submission, error)

		CreateGrade(ctx context.Context, grd Grade, exec ...core.DBExecutor) (Grade, error)
		QueryGrades(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) ([]Grade, error)
		DeleteGradesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	// CourseDirectory is the slice of the school service needed to resolve
	// a submission back to its course.
	CourseDirectory interface {
		GetPracticalWork(ctx context.Context, id string) (school.PracticalWork, error)
		GetCourse(ctx context.Context, id string) (school.Course, error)
	}

	ServiceInterface interface {
		GetOrCreate(ctx context.Context, practicalWorkID string, student user.User) (Submission, error)
		Get(ctx context.Context, id string) (Submission, error)
		AttachFile(ctx context.Context, id string, caller user.User, filename string, blob io.Reader) (Submission, error)
		SetGrade(ctx context.Context, id string, score null.Int, grader user.User) (Submission, error)
		ForPracticalWork(ctx context.Context, practicalWorkID string, groupID ...string) ([]Submission, error)

		RecordGrade(ctx context.Context, ng NewGrade) (Grade, error)
		QueryGrades(ctx context.Context, studentID, courseID string) ([]Grade, error)
		DeleteGrades(ctx context.Context, ids ...string) error
	}

	service struct {
		db      core.DB
		repo    Repository
		courses CourseDirectory
		files   core.FileStorage
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository, courses CourseDirectory, files core.FileStorage) *service {
	return &service{db: db, repo: repo, courses: courses, files: files}
}

// GetOrCreate returns the student's submission for the practical work,
// creating an empty one on first access. Concurrent first accesses collapse
// onto the same row at the storage layer.
func (svc *service) GetOrCreate(ctx context.Context, practicalWorkID string, student user.User) (Submission, error) {
	if _, err := svc.courses.GetPracticalWork(ctx, practicalWorkID); err != nil {
		return Submission{}, err
	}
	sub := Submission{
		PracticalWorkID: practicalWorkID,
		StudentID:       student.ID,
		SubmittedAt:     time.Now().UTC(),
	}
	sub, err := svc.repo.GetOrCreateSubmission(ctx, sub)
	if err != nil {
		return Submission{}, errors.Wrap(err, "getting or creating submission")
	}
	return sub, nil
}

func (svc *service) Get(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, id)
}

// AttachFile stores the blob and points the submission's file ref at it.
// Grade fields are left untouched; re-uploading after grading does not clear
// the grade.
func (svc *service) AttachFile(ctx context.Context, id string, caller user.User, filename string, blob io.Reader) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.StudentID != caller.ID {
		return Submission{}, core.NewPermissionError("only the submitting student may attach a file")
	}

	key := path.Join("submissions", sub.ID, fmt.Sprintf("%d-%s", time.Now().UTC().Unix(), filename))
	if err = svc.files.Save(ctx, key, blob); err != nil {
		return Submission{}, errors.Wrap(err, "saving submission file")
	}
	return svc.repo.UpdateSubmissionFile(ctx, sub.ID, null.StringFrom(key))
}

// SetGrade sets or clears the grade. The three grading fields move together:
// a valid score stamps {grade, grade date, teacher}, a null score blanks all
// three. Re-grading overwrites, last write wins.
func (svc *service) SetGrade(ctx context.Context, id string, score null.Int, grader user.User) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if err = svc.checkGrader(ctx, sub, grader); err != nil {
		return Submission{}, err
	}

	if !score.Valid {
		return svc.repo.SetSubmissionGrade(ctx, sub.ID, null.Int{}, null.Time{}, null.String{})
	}
	return svc.repo.SetSubmissionGrade(
		ctx, sub.ID,
		score,
		null.TimeFrom(time.Now().UTC()),
		null.StringFrom(grader.ID),
	)
}

func (svc *service) checkGrader(ctx context.Context, sub Submission, grader user.User) error {
	work, err := svc.courses.GetPracticalWork(ctx, sub.PracticalWorkID)
	if err != nil {
		return err
	}
	if !work.CourseID.Valid {
		return core.NewPermissionError("practical work is not attached to a course")
	}
	crs, err := svc.courses.GetCourse(ctx, work.CourseID.String)
	if err != nil {
		return err
	}
	if !crs.HasTeacher(grader.ID) {
		return core.NewPermissionError("only teachers of the course may grade submissions")
	}
	return nil
}

func (svc *service) ForPracticalWork(ctx context.Context, practicalWorkID string, groupID ...string) ([]Submission, error) {
	var grp string
	if len(groupID) > 0 {
		grp = groupID[0]
	}
	subs, err := svc.repo.QuerySubmissions(ctx, practicalWorkID, grp)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []Submission{}
	}
	return subs, nil
}

// Grade records

func (svc *service) RecordGrade(ctx context.Context, ng NewGrade) (Grade, error) {
	grd := Grade{
		StudentID: ng.StudentID,
		CourseID:  ng.CourseID,
		Score:     ng.Score,
		CreatedAt: time.Now().UTC(),
	}
	if ng.PracticalWorkID != "" {
		grd.PracticalWorkID = null.StringFrom(ng.PracticalWorkID)
	}
	if ng.TestID != "" {
		grd.TestID = null.StringFrom(ng.TestID)
	}
	return svc.repo.CreateGrade(ctx, grd)
}

func (svc *service) QueryGrades(ctx context.Context, studentID, courseID string) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, studentID, courseID)
}

func (svc *service) DeleteGrades(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteGradesByID(ctx, ids)
	return err
}
