package submission

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
)

type (
	// Submission is a student's hand-in for a practical work. At most one
	// exists per (practical work, student) pair; storage enforces it.
	//
	// Grade, GradeDate and TeacherID travel together: either all three are
	// set (graded) or all three are null (ungraded). They are only ever
	// written by SetGrade.
	Submission struct {
		ID              string      `db:"id" json:"id"`
		PracticalWorkID string      `db:"practical_work_id" json:"practical_work_id"`
		StudentID       string      `db:"student_id" json:"student_id"`
		File            null.String `db:"file" json:"file"` // opaque blob ref
		SubmittedAt     time.Time   `db:"submitted_at" json:"submitted_at"`
		Grade           null.Int    `db:"grade" json:"grade"`
		GradeDate       null.Time   `db:"grade_date" json:"grade_date"`
		TeacherID       null.String `db:"teacher_id" json:"teacher_id"`
	}

	// Grade is a standalone score record kept outside the submission
	// workflow (oral defenses, test results entered by hand).
	Grade struct {
		ID              string      `db:"id" json:"id"`
		StudentID       string      `db:"student_id" json:"student_id"`
		CourseID        string      `db:"course_id" json:"course_id"`
		PracticalWorkID null.String `db:"practical_work_id" json:"practical_work_id"`
		TestID          null.String `db:"test_id" json:"test_id"`
		Score           int         `db:"score" json:"score"`
		CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	}
)

func (s *Submission) IsGraded() bool { return s.Grade.Valid }

type NewGrade struct {
	StudentID       string `json:"student_id" validate:"required"`
	CourseID        string `json:"course_id" validate:"required"`
	PracticalWorkID string `json:"practical_work_id"`
	TestID          string `json:"test_id"`
	Score           int    `json:"score" validate:"gradescale"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	return validate.Struct(ng)
}

// GradeInput carries one grading instruction for a submission. A null score
// clears the grade.
type GradeInput struct {
	SubmissionID string   `json:"submission_id" validate:"required"`
	Score        null.Int `json:"score" validate:"omitempty,gradescale"`
}

func (gi *GradeInput) Validate(validate *validator.Validate) error {
	return validate.Struct(gi)
}
