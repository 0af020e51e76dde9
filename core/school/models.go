package school

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/messengermaksym/diploma-project/core"
)

// DefaultMaxScore is the grading ceiling a practical work gets unless overridden.
const DefaultMaxScore = 10.0

type (
	// Group is a named collection of users; enrollment into courses happens
	// per group, never per student.
	Group struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CourseIDs []string  `json:"course_ids"`
		CreatedAt time.Time `json:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at"` // UTC
	}

	Course struct {
		ID          string            `json:"id"`
		Title       string            `json:"title"`
		Description string            `json:"description,omitempty"`
		TeacherIDs  []string          `json:"teacher_ids"`
		GroupIDs    []string          `json:"group_ids"`
		Modules     []Module          `json:"modules,omitempty"`
		Materials   []LectureMaterial `json:"materials,omitempty"`
		Practicals  []PracticalWork   `json:"practicals,omitempty"`
		Tests       []Test            `json:"tests,omitempty"`
		CreatedAt   time.Time         `json:"created_at"` // UTC
		UpdatedAt   time.Time         `json:"updated_at"` // UTC
	}

	Module struct {
		ID       string `db:"id" json:"id"`
		CourseID string `db:"course_id" json:"course_id"`
		Title    string `db:"title" json:"title"`
		Content  string `db:"content" json:"content"`
		Position int    `db:"position" json:"position"`
	}

	LectureMaterial struct {
		ID       string `db:"id" json:"id"`
		CourseID string `db:"course_id" json:"course_id"`
		Title    string `db:"title" json:"title"`
		File     string `db:"file" json:"file,omitempty"` // opaque blob ref
	}

	// PracticalWork is an assignment; CourseID is nullable so a work can be
	// detached from a deleted course draft without losing submissions history
	// until the cascade fires.
	PracticalWork struct {
		ID       string      `db:"id" json:"id"`
		CourseID null.String `db:"course_id" json:"course_id"`
		Title    string      `db:"title" json:"title"`
		Content  string      `db:"content" json:"content,omitempty"`
		File     string      `db:"file" json:"file,omitempty"` // assignment prompt blob ref
		Deadline null.Time   `db:"deadline" json:"deadline"`
		MaxScore float64     `db:"max_score" json:"max_score"`
	}

	Test struct {
		ID        string         `json:"id"`
		CourseID  null.String    `json:"course_id"`
		Title     string         `json:"title"`
		Questions []TestQuestion `json:"questions,omitempty"`
	}

	TestQuestion struct {
		ID               string           `db:"id" json:"id"`
		TestID           string           `db:"test_id" json:"test_id"`
		Content          string           `db:"content" json:"content"`
		IsMultipleChoice null.Bool        `db:"is_multiple_choice" json:"is_multiple_choice"`
		Options          []QuestionOption `db:"-" json:"options,omitempty"`
	}

	QuestionOption struct {
		ID         string    `db:"id" json:"id"`
		QuestionID string    `db:"question_id" json:"question_id"`
		Content    string    `db:"content" json:"content"`
		IsCorrect  null.Bool `db:"is_correct" json:"is_correct"`
	}

	Schedule struct {
		ID        string      `db:"id" json:"id"`
		CourseID  null.String `db:"course_id" json:"course_id"`
		StartTime null.Time   `db:"start_time" json:"start_time"`
		EndTime   null.Time   `db:"end_time" json:"end_time"`
		Location  string      `db:"location" json:"location,omitempty"`
	}

	Attendance struct {
		ID         string      `db:"id" json:"id"`
		UserID     null.String `db:"user_id" json:"user_id"`
		CourseID   null.String `db:"course_id" json:"course_id"`
		LoginTime  null.Time   `db:"login_time" json:"login_time"`
		LogoutTime null.Time   `db:"logout_time" json:"logout_time"`
	}

	Review struct {
		ID         string      `db:"id" json:"id"`
		ReviewerID null.String `db:"reviewer_id" json:"reviewer_id"`
		RevieweeID null.String `db:"reviewee_id" json:"reviewee_id"`
		Rating     null.Int    `db:"rating" json:"rating"`
		Comment    string      `db:"comment" json:"comment,omitempty"`
	}
)

// HasTeacher reports whether the given user teaches this course.
func (c *Course) HasTeacher(userID string) bool {
	for _, id := range c.TeacherIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Course) HasGroup(groupID string) bool {
	for _, id := range c.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// Inputs

type NewGroup struct {
	Name      string   `json:"name" validate:"required,max=150"`
	CourseIDs []string `json:"course_ids"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	return validate.Struct(ng)
}

type UpdateGroup struct {
	Name      string   `json:"name" validate:"omitempty,max=150"`
	CourseIDs []string `json:"course_ids"`
}

func (ug *UpdateGroup) Validate(validate *validator.Validate) error {
	ug.Name = core.CleanString(ug.Name)
	return validate.Struct(ug)
}

type NewCourse struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description"`
	TeacherIDs  []string `json:"teacher_ids"`
	GroupIDs    []string `json:"group_ids"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateCourse carries the course attributes plus the full nested content
// lists; nested entries without an ID are created, the rest are updated,
// and persisted entries missing from the lists are removed.
type UpdateCourse struct {
	Title       string              `json:"title" validate:"omitempty,max=255"`
	Description string              `json:"description"`
	TeacherIDs  []string            `json:"teacher_ids"`
	GroupIDs    []string            `json:"group_ids"`
	Modules     []UpdateModule      `json:"modules"`
	Materials   []UpdateMaterial    `json:"materials"`
	Practicals  []UpdatePracticalWk `json:"practicals"`
}

type UpdateModule struct {
	ID      string `json:"id"`
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content"`
}

type UpdateMaterial struct {
	ID    string `json:"id"`
	Title string `json:"title" validate:"required,max=255"`
	File  string `json:"file"`
}

type UpdatePracticalWk struct {
	ID       string    `json:"id"`
	Title    string    `json:"title" validate:"required,max=255"`
	Content  string    `json:"content"`
	File     string    `json:"file"`
	Deadline null.Time `json:"deadline"`
	MaxScore float64   `json:"max_score" validate:"omitempty,gt=0"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	uc.Description = core.CleanString(uc.Description)
	return validate.Struct(uc)
}

type NewTest struct {
	CourseID  string        `json:"course_id" validate:"required"`
	Title     string        `json:"title" validate:"required,max=255"`
	Questions []NewQuestion `json:"questions" validate:"dive"`
}

type NewQuestion struct {
	Content          string      `json:"content" validate:"required"`
	IsMultipleChoice bool        `json:"is_multiple_choice"`
	Options          []NewOption `json:"options" validate:"dive"`
}

type NewOption struct {
	Content   string `json:"content" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

func (nt *NewTest) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	return validate.Struct(nt)
}

type NewSchedule struct {
	CourseID  string    `json:"course_id" validate:"required"`
	StartTime null.Time `json:"start_time"`
	EndTime   null.Time `json:"end_time"`
	Location  string    `json:"location" validate:"omitempty,max=255"`
}

func (ns *NewSchedule) Validate(validate *validator.Validate) error {
	ns.Location = core.CleanString(ns.Location)
	return validate.Struct(ns)
}

type NewReview struct {
	RevieweeID string `json:"reviewee_id" validate:"required"`
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
	Comment    string `json:"comment"`
}

func (nr *NewReview) Validate(validate *validator.Validate) error {
	nr.Comment = core.CleanString(nr.Comment)
	return validate.Struct(nr)
}

type QueryFilter struct {
	Search  string `query:"search"`
	Teacher string `query:"teacher"`
	Group   string `query:"group"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
