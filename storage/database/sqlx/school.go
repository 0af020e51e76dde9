package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/school"
	"github.com/messengermaksym/diploma-project/storage/database"
)

type schoolRepository struct {
	db *database.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *database.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo schoolRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// Groups

func (repo schoolRepository) CheckGroupNameUniqueness(ctx context.Context, name string, excludedGroups []school.Group, exec ...core.DBExecutor) error {
	q := `SELECT EXISTS (SELECT 1 FROM student_group WHERE name = $1`
	args := []interface{}{name}
	if len(excludedGroups) > 0 {
		ids := make([]string, 0, len(excludedGroups))
		for _, g := range excludedGroups {
			ids = append(ids, g.ID)
		}
		q += ` AND id != ALL($2)`
		args = append(args, pqStrArray(ids))
	}
	q += `)`

	var exists bool
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &exists, q, args...); err != nil {
		return errors.Wrap(err, "checking group name uniqueness")
	}
	if exists {
		return school.ErrGroupNameExists
	}
	return nil
}

func (repo schoolRepository) CreateGroup(ctx context.Context, grp school.Group, exec ...core.DBExecutor) (school.Group, error) {
	grp.ID = uuid.New().String()
	e := ext(repo.db, exec)
	q := `INSERT INTO student_group (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`
	if _, err := e.ExecContext(ctx, q, grp.ID, grp.Name, grp.CreatedAt.UTC(), grp.UpdatedAt.UTC()); err != nil {
		return school.Group{}, errors.Wrap(err, "inserting group")
	}
	if len(grp.CourseIDs) > 0 {
		if err := repo.SetGroupCourses(ctx, grp.ID, grp.CourseIDs, exec...); err != nil {
			return school.Group{}, err
		}
	}
	return grp, nil
}

type groupRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (repo schoolRepository) GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (school.Group, error) {
	var row groupRow
	q := `SELECT id, name, created_at, updated_at FROM student_group WHERE id = $1`
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &row, q, id); err != nil {
		return school.Group{}, repo.trapNoRowsErr(err, school.ErrGroupNotFound, "getting group")
	}
	grp := school.Group{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}

	var courseIDs []string
	q = `SELECT course_id FROM course_group WHERE group_id = $1`
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &courseIDs, q, id); err != nil {
		return school.Group{}, errors.Wrap(err, "loading group courses")
	}
	grp.CourseIDs = courseIDs
	return grp, nil
}

func (repo schoolRepository) QueryGroups(ctx context.Context, exec ...core.DBExecutor) ([]school.Group, error) {
	var rows []groupRow
	q := `SELECT id, name, created_at, updated_at FROM student_group ORDER BY name`
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}

	var links []struct {
		GroupID  string `db:"group_id"`
		CourseID string `db:"course_id"`
	}
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &links, `SELECT group_id, course_id FROM course_group`); err != nil {
		return nil, errors.Wrap(err, "loading group courses")
	}
	byGroup := make(map[string][]string, len(links))
	for _, l := range links {
		byGroup[l.GroupID] = append(byGroup[l.GroupID], l.CourseID)
	}

	groups := make([]school.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, school.Group{
			ID: row.ID, Name: row.Name, CourseIDs: byGroup[row.ID],
			CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
		})
	}
	return groups, nil
}

func (repo schoolRepository) UpdateGroup(ctx context.Context, grp school.Group, exec ...core.DBExecutor) (school.Group, error) {
	q := `UPDATE student_group SET name = $1, updated_at = $2 WHERE id = $3`
	res, err := ext(repo.db, exec).ExecContext(ctx, q, grp.Name, grp.UpdatedAt.UTC(), grp.ID)
	if err != nil {
		return school.Group{}, errors.Wrap(err, "updating group")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Group{}, school.ErrGroupNotFound
	}
	return grp, nil
}

func (repo schoolRepository) SetGroupCourses(ctx context.Context, groupID string, courseIDs []string, exec ...core.DBExecutor) error {
	e := ext(repo.db, exec)
	if _, err := e.ExecContext(ctx, `DELETE FROM course_group WHERE group_id = $1`, groupID); err != nil {
		return errors.Wrap(err, "clearing group courses")
	}
	for _, cid := range courseIDs {
		if _, err := e.ExecContext(ctx, `INSERT INTO course_group (course_id, group_id) VALUES ($1, $2)`, cid, groupID); err != nil {
			return errors.Wrap(err, "adding group course")
		}
	}
	return nil
}

func (repo schoolRepository) DeleteGroupsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := ext(repo.db, exec).ExecContext(ctx, `DELETE FROM student_group WHERE id = ANY($1)`, pqStrArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting groups")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Courses

type courseRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (repo schoolRepository) CreateCourse(ctx context.Context, crs school.Course, exec ...core.DBExecutor) (school.Course, error) {
	crs.ID = uuid.New().String()
	q := `INSERT INTO course (id, title, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := ext(repo.db, exec).ExecContext(ctx, q, crs.ID, crs.Title, crs.Description, crs.CreatedAt.UTC(), crs.UpdatedAt.UTC())
	if err != nil {
		return school.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo schoolRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (school.Course, error) {
	var row courseRow
	q := `SELECT id, title, description, created_at, updated_at FROM course WHERE id = $1`
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &row, q, id); err != nil {
		return school.Course{}, repo.trapNoRowsErr(err, school.ErrCourseNotFound, "getting course")
	}
	crs := school.Course{
		ID: row.ID, Title: row.Title, Description: row.Description,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
	courses := []school.Course{crs}
	if err := repo.hydrateCourses(ctx, exec, courses); err != nil {
		return school.Course{}, err
	}
	return courses[0], nil
}

// hydrateCourses loads teachers, groups, modules, materials, practicals and
// tests onto the given courses.
func (repo schoolRepository) hydrateCourses(ctx context.Context, exec []core.DBExecutor, courses []school.Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, 0, len(courses))
	idx := make(map[string]int, len(courses))
	for i, crs := range courses {
		ids = append(ids, crs.ID)
		idx[crs.ID] = i
	}
	e := ext(repo.db, exec)
	arr := pqStrArray(ids)

	var teachers []struct {
		CourseID string `db:"course_id"`
		UserID   string `db:"user_id"`
	}
	if err := sqlx.SelectContext(ctx, e, &teachers, `SELECT course_id, user_id FROM course_teacher WHERE course_id = ANY($1)`, arr); err != nil {
		return errors.Wrap(err, "loading course teachers")
	}
	for _, t := range teachers {
		i := idx[t.CourseID]
		courses[i].TeacherIDs = append(courses[i].TeacherIDs, t.UserID)
	}

	var groups []struct {
		CourseID string `db:"course_id"`
		GroupID  string `db:"group_id"`
	}
	if err := sqlx.SelectContext(ctx, e, &groups, `SELECT course_id, group_id FROM course_group WHERE course_id = ANY($1)`, arr); err != nil {
		return errors.Wrap(err, "loading course groups")
	}
	for _, g := range groups {
		i := idx[g.CourseID]
		courses[i].GroupIDs = append(courses[i].GroupIDs, g.GroupID)
	}

	var mods []school.Module
	q := `SELECT id, course_id, title, content, position FROM course_module WHERE course_id = ANY($1) ORDER BY position`
	if err := sqlx.SelectContext(ctx, e, &mods, q, arr); err != nil {
		return errors.Wrap(err, "loading course modules")
	}
	for _, m := range mods {
		i := idx[m.CourseID]
		courses[i].Modules = append(courses[i].Modules, m)
	}

	var mats []school.LectureMaterial
	q = `SELECT id, course_id, title, file FROM lecture_material WHERE course_id = ANY($1)`
	if err := sqlx.SelectContext(ctx, e, &mats, q, arr); err != nil {
		return errors.Wrap(err, "loading lecture materials")
	}
	for _, m := range mats {
		i := idx[m.CourseID]
		courses[i].Materials = append(courses[i].Materials, m)
	}

	var works []school.PracticalWork
	q = `SELECT id, course_id, title, content, file, deadline, max_score FROM practical_work WHERE course_id = ANY($1)`
	if err := sqlx.SelectContext(ctx, e, &works, q, arr); err != nil {
		return errors.Wrap(err, "loading practical works")
	}
	for _, w := range works {
		i := idx[w.CourseID.String]
		courses[i].Practicals = append(courses[i].Practicals, w)
	}

	tests, err := repo.queryTests(ctx, exec, `WHERE t.course_id = ANY($1)`, arr)
	if err != nil {
		return err
	}
	for _, t := range tests {
		i := idx[t.CourseID.String]
		courses[i].Tests = append(courses[i].Tests, t)
	}
	return nil
}

func (repo schoolRepository) queryCourses(ctx context.Context, exec []core.DBExecutor, q string, args ...interface{}) ([]school.Course, error) {
	var rows []courseRow
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]school.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, school.Course{
			ID: row.ID, Title: row.Title, Description: row.Description,
			CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
		})
	}
	if err := repo.hydrateCourses(ctx, exec, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (repo schoolRepository) QueryCourses(ctx context.Context, filter *school.QueryFilter, exec ...core.DBExecutor) ([]school.Course, error) {
	q := `SELECT DISTINCT c.id, c.title, c.description, c.created_at, c.updated_at FROM course c`
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Teacher != "" {
			q += ` JOIN course_teacher ct ON ct.course_id = c.id`
			args = append(args, filter.Teacher)
			conds = append(conds, "ct.user_id = $1")
		}
		if filter.Group != "" {
			q += ` JOIN course_group cg ON cg.course_id = c.id`
			args = append(args, filter.Group)
			conds = append(conds, fmt.Sprintf("cg.group_id = $%d", len(args)))
		}
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			conds = append(conds, fmt.Sprintf("(c.title ILIKE $%d OR c.description ILIKE $%d)", len(args), len(args)))
		}
	}
	if len(conds) > 0 {
		q += " WHERE "
		for i, c := range conds {
			if i > 0 {
				q += " AND "
			}
			q += c
		}
	}
	q += ` ORDER BY c.title`
	return repo.queryCourses(ctx, exec, q, args...)
}

func (repo schoolRepository) QueryCoursesByTeacher(ctx context.Context, teacherID string, exec ...core.DBExecutor) ([]school.Course, error) {
	q := `
		SELECT c.id, c.title, c.description, c.created_at, c.updated_at
		FROM course c
		JOIN course_teacher ct ON ct.course_id = c.id
		WHERE ct.user_id = $1
		ORDER BY c.title`
	return repo.queryCourses(ctx, exec, q, teacherID)
}

func (repo schoolRepository) QueryCoursesByGroups(ctx context.Context, groupIDs []string, exec ...core.DBExecutor) ([]school.Course, error) {
	// DISTINCT: a course enrolled by several of the user's groups shows once
	q := `
		SELECT DISTINCT c.id, c.title, c.description, c.created_at, c.updated_at
		FROM course c
		JOIN course_group cg ON cg.course_id = c.id
		WHERE cg.group_id = ANY($1)
		ORDER BY c.title`
	return repo.queryCourses(ctx, exec, q, pqStrArray(groupIDs))
}

func (repo schoolRepository) UpdateCourse(ctx context.Context, crs school.Course, exec ...core.DBExecutor) (school.Course, error) {
	q := `UPDATE course SET title = $1, description = $2, updated_at = $3 WHERE id = $4`
	res, err := ext(repo.db, exec).ExecContext(ctx, q, crs.Title, crs.Description, crs.UpdatedAt.UTC(), crs.ID)
	if err != nil {
		return school.Course{}, errors.Wrap(err, "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.Course{}, school.ErrCourseNotFound
	}
	return crs, nil
}

func (repo schoolRepository) SetCourseTeachers(ctx context.Context, courseID string, teacherIDs []string, exec ...core.DBExecutor) error {
	e := ext(repo.db, exec)
	if _, err := e.ExecContext(ctx, `DELETE FROM course_teacher WHERE course_id = $1`, courseID); err != nil {
		return errors.Wrap(err, "clearing course teachers")
	}
	for _, tid := range teacherIDs {
		if _, err := e.ExecContext(ctx, `INSERT INTO course_teacher (course_id, user_id) VALUES ($1, $2)`, courseID, tid); err != nil {
			return errors.Wrap(err, "adding course teacher")
		}
	}
	return nil
}

func (repo schoolRepository) SetCourseGroups(ctx context.Context, courseID string, groupIDs []string, exec ...core.DBExecutor) error {
	e := ext(repo.db, exec)
	if _, err := e.ExecContext(ctx, `DELETE FROM course_group WHERE course_id = $1`, courseID); err != nil {
		return errors.Wrap(err, "clearing course groups")
	}
	for _, gid := range groupIDs {
		if _, err := e.ExecContext(ctx, `INSERT INTO course_group (course_id, group_id) VALUES ($1, $2)`, courseID, gid); err != nil {
			return errors.Wrap(err, "adding course group")
		}
	}
	return nil
}

func (repo schoolRepository) DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := ext(repo.db, exec).ExecContext(ctx, `DELETE FROM course WHERE id = ANY($1)`, pqStrArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting courses")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Nested course content

func (repo schoolRepository) UpsertModule(ctx context.Context, mod school.Module, exec ...core.DBExecutor) (school.Module, error) {
	e := ext(repo.db, exec)
	if mod.ID == "" {
		mod.ID = uuid.New().String()
		q := `INSERT INTO course_module (id, course_id, title, content, position) VALUES ($1, $2, $3, $4, $5)`
		if _, err := e.ExecContext(ctx, q, mod.ID, mod.CourseID, mod.Title, mod.Content, mod.Position); err != nil {
			return school.Module{}, errors.Wrap(err, "inserting module")
		}
		return mod, nil
	}
	q := `UPDATE course_module SET title = $1, content = $2, position = $3 WHERE id = $4 AND course_id = $5`
	if _, err := e.ExecContext(ctx, q, mod.Title, mod.Content, mod.Position, mod.ID, mod.CourseID); err != nil {
		return school.Module{}, errors.Wrap(err, "updating module")
	}
	return mod, nil
}

func (repo schoolRepository) DeleteModulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := ext(repo.db, exec).ExecContext(ctx, `DELETE FROM course_module WHERE id = ANY($1)`, pqStrArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting modules")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo schoolRepository) UpsertMaterial(ctx context.Context, mat school.LectureMaterial, exec ...core.DBExecutor) (school.LectureMaterial, error) {
	e := ext(repo.db, exec)
	if mat.ID == "" {
		mat.ID = uuid.New().String()
		q := `INSERT INTO lecture_material (id, course_id, title, file) VALUES ($1, $2, $3, $4)`
		if _, err := e.ExecContext(ctx, q, mat.ID, mat.CourseID, mat.Title, mat.File); err != nil {
			return school.LectureMaterial{}, errors.Wrap(err, "inserting material")
		}
		return mat, nil
	}
	q := `UPDATE lecture_material SET title = $1, file = $2 WHERE id = $3 AND course_id = $4`
	if _, err := e.ExecContext(ctx, q, mat.Title, mat.File, mat.ID, mat.CourseID); err != nil {
		return school.LectureMaterial{}, errors.Wrap(err, "updating material")
	}
	return mat, nil
}

func (repo schoolRepository) DeleteMaterialsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := ext(repo.db, exec).ExecContext(ctx, `DELETE FROM lecture_material WHERE id = ANY($1)`, pqStrArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting materials")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo schoolRepository) GetPracticalWork(ctx context.Context, id string, exec ...core.DBExecutor) (school.PracticalWork, error) {
	var work school.PracticalWork
	q := `SELECT id, course_id, title, content, file, deadline, max_score FROM practical_work WHERE id = $1`
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &work, q, id); err != nil {
		return school.PracticalWork{}, repo.trapNoRowsErr(err, school.ErrWorkNotFound, "getting practical work")
	}
	return work, nil
}

func (repo schoolRepository) QueryPracticalWorks(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]school.PracticalWork, error) {
	var works []school.PracticalWork
	q := `SELECT id, course_id, title, content, file, deadline, max_score FROM practical_work WHERE course_id = $1`
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &works, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying practical works")
	}
	return works, nil
}

func (repo schoolRepository) UpsertPracticalWork(ctx context.Context, work school.PracticalWork, exec ...core.DBExecutor) (school.PracticalWork, error) {
	e := ext(repo.db, exec)
	if work.ID == "" {
		work.ID = uuid.New().String()
		q := `INSERT INTO practical_work (id, course_id, title, content, file, deadline, max_score) VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := e.ExecContext(ctx, q, work.ID, work.CourseID, work.Title, work.Content, work.File, work.Deadline, work.MaxScore); err != nil {
			return school.PracticalWork{}, errors.Wrap(err, "inserting practical work")
		}
		return work, nil
	}
	q := `UPDATE practical_work SET title = $1, content = $2, file = $3, deadline = $4, max_score = $5 WHERE id = $6`
	if _, err := e.ExecContext(ctx, q, work.Title, work.Content, work.File, work.Deadline, work.MaxScore, work.ID); err != nil {
		return school.PracticalWork{}, errors.Wrap(err, "updating practical work")
	}
	return work, nil
}

func (repo schoolRepository) DeletePracticalWorksByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := ext(repo.db, exec).ExecContext(ctx, `DELETE FROM practical_work WHERE id = ANY($1)`, pqStrArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting practical works")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Tests

func (repo schoolRepository) CreateTest(ctx context.Context, tst school.Test, exec ...core.DBExecutor) (school.Test, error) {
	e := ext(repo.db, exec)
	tst.ID = uuid.New().String()
	q := `INSERT INTO test (id, course_id, title) VALUES ($1, $2, $3)`
	if _, err := e.ExecContext(ctx, q, tst.ID, tst.CourseID, tst.Title); err != nil {
		return school.Test{}, errors.Wrap(err, "inserting test")
	}
	for qi := range tst.Questions {
		tst.Questions[qi].ID = uuid.New().String()
		tst.Questions[qi].TestID = tst.ID
		tq := tst.Questions[qi]
		q = `INSERT INTO test_question (id, test_id, content, is_multiple_choice) VALUES ($1, $2, $3, $4)`
		if _, err := e.ExecContext(ctx, q, tq.ID, tq.TestID, tq.Content, tq.IsMultipleChoice); err != nil {
			return school.Test{}, errors.Wrap(err, "inserting test question")
		}
		for oi := range tq.Options {
			tst.Questions[qi].Options[oi].ID = uuid.New().String()
			tst.Questions[qi].Options[oi].QuestionID = tq.ID
			opt := tst.Questions[qi].Options[oi]
			q = `INSERT INTO question_option (id, question_id, content, is_correct) VALUES ($1, $2, $3, $4)`
			if _, err := e.ExecContext(ctx, q, opt.ID, opt.QuestionID, opt.Content, opt.IsCorrect); err != nil {
				return school.Test{}, errors.Wrap(err, "inserting question option")
			}
		}
	}
	return tst, nil
}

type testRow struct {
	ID       string      `db:"id"`
	CourseID null.String `db:"course_id"`
	Title    string      `db:"title"`
}

func (repo schoolRepository) queryTests(ctx context.Context, exec []core.DBExecutor, where string, args ...interface{}) ([]school.Test, error) {
	e := ext(repo.db, exec)

	var rows []testRow
	q := `SELECT t.id, t.course_id, t.title FROM test t ` + where
	if err := sqlx.SelectContext(ctx, e, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying tests")
	}
	if len(rows) == 0 {
		return []school.Test{}, nil
	}

	tests := make([]school.Test, 0, len(rows))
	testIdx := make(map[string]int, len(rows))
	ids := make([]string, 0, len(rows))
	for i, row := range rows {
		tests = append(tests, school.Test{ID: row.ID, CourseID: row.CourseID, Title: row.Title})
		testIdx[row.ID] = i
		ids = append(ids, row.ID)
	}

	var questions []school.TestQuestion
	q = `SELECT id, test_id, content, is_multiple_choice FROM test_question WHERE test_id = ANY($1)`
	if err := sqlx.SelectContext(ctx, e, &questions, q, pqStrArray(ids)); err != nil {
		return nil, errors.Wrap(err, "loading test questions")
	}
	qIdx := make(map[string]struct{ ti, qi int }, len(questions))
	qIDs := make([]string, 0, len(questions))
	for _, tq := range questions {
		ti := testIdx[tq.TestID]
		tests[ti].Questions = append(tests[ti].Questions, tq)
		qIdx[tq.ID] = struct{ ti, qi int }{ti, len(tests[ti].Questions) - 1}
		qIDs = append(qIDs, tq.ID)
	}

	if len(qIDs) > 0 {
		var options []school.QuestionOption
		q = `SELECT id, question_id, content, is_correct FROM question_option WHERE question_id = ANY($1)`
		if err := sqlx.SelectContext(ctx, e, &options, q, pqStrArray(qIDs)); err != nil {
			return nil, errors.Wrap(err, "loading question options")
		}
		for _, opt := range options {
			pos := qIdx[opt.QuestionID]
			tests[pos.ti].Questions[pos.qi].Options = append(tests[pos.ti].Questions[pos.qi].Options, opt)
		}
	}
	return tests, nil
}

func (repo schoolRepository) GetTest(ctx context.Context, id string, exec ...core.DBExecutor) (school.Test, error) {
	tests, err := repo.queryTests(ctx, exec, `WHERE t.id = $1`, id)
	if err != nil {
		return school.Test{}, err
	}
	if len(tests) == 0 {
		return school.Test{}, school.ErrTestNotFound
	}
	return tests[0], nil
}

func (repo schoolRepository) QueryTestsByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]school.Test, error) {
	return repo.queryTests(ctx, exec, `WHERE t.course_id = $1`, courseID)
}

func (repo schoolRepository) DeleteTestsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := ext(repo.db, exec).ExecContext(ctx, `DELETE FROM test WHERE id = ANY($1)`, pqStrArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting tests")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Campus records

func (repo schoolRepository) CreateSchedule(ctx context.Context, sch school.Schedule, exec ...core.DBExecutor) (school.Schedule, error) {
	sch.ID = uuid.New().String()
	q := `INSERT INTO schedule (id, course_id, start_time, end_time, location) VALUES ($1, $2, $3, $4, $5)`
	if _, err := ext(repo.db, exec).ExecContext(ctx, q, sch.ID, sch.CourseID, sch.StartTime, sch.EndTime, sch.Location); err != nil {
		return school.Schedule{}, errors.Wrap(err, "inserting schedule")
	}
	return sch, nil
}

func (repo schoolRepository) QueryScheduleByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]school.Schedule, error) {
	var entries []school.Schedule
	q := `SELECT id, course_id, start_time, end_time, location FROM schedule WHERE course_id = $1 ORDER BY start_time`
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &entries, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying schedule")
	}
	return entries, nil
}

func (repo schoolRepository) DeleteSchedulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := ext(repo.db, exec).ExecContext(ctx, `DELETE FROM schedule WHERE id = ANY($1)`, pqStrArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting schedules")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo schoolRepository) CreateAttendance(ctx context.Context, att school.Attendance, exec ...core.DBExecutor) (school.Attendance, error) {
	att.ID = uuid.New().String()
	q := `INSERT INTO attendance (id, user_id, course_id, login_time, logout_time) VALUES ($1, $2, $3, $4, $5)`
	if _, err := ext(repo.db, exec).ExecContext(ctx, q, att.ID, att.UserID, att.CourseID, att.LoginTime, att.LogoutTime); err != nil {
		return school.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	return att, nil
}

func (repo schoolRepository) CloseAttendance(ctx context.Context, id string, logout time.Time, exec ...core.DBExecutor) (school.Attendance, error) {
	var att school.Attendance
	q := `UPDATE attendance SET logout_time = $1 WHERE id = $2 RETURNING id, user_id, course_id, login_time, logout_time`
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &att, q, logout.UTC(), id); err != nil {
		return school.Attendance{}, repo.trapNoRowsErr(err, school.ErrScheduleNotFound, "closing attendance")
	}
	return att, nil
}

func (repo schoolRepository) QueryAttendance(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) ([]school.Attendance, error) {
	q := `SELECT id, user_id, course_id, login_time, logout_time FROM attendance`
	var (
		conds []string
		args  []interface{}
	)
	if userID != "" {
		args = append(args, userID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if courseID != "" {
		args = append(args, courseID)
		conds = append(conds, fmt.Sprintf("course_id = $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	q += ` ORDER BY login_time DESC`

	var entries []school.Attendance
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &entries, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	return entries, nil
}

func (repo schoolRepository) CreateReview(ctx context.Context, rev school.Review, exec ...core.DBExecutor) (school.Review, error) {
	rev.ID = uuid.New().String()
	q := `INSERT INTO review (id, reviewer_id, reviewee_id, rating, comment) VALUES ($1, $2, $3, $4, $5)`
	if _, err := ext(repo.db, exec).ExecContext(ctx, q, rev.ID, rev.ReviewerID, rev.RevieweeID, rev.Rating, rev.Comment); err != nil {
		return school.Review{}, errors.Wrap(err, "inserting review")
	}
	return rev, nil
}

func (repo schoolRepository) QueryReviewsForUser(ctx context.Context, revieweeID string, exec ...core.DBExecutor) ([]school.Review, error) {
	var reviews []school.Review
	q := `SELECT id, reviewer_id, reviewee_id, rating, comment FROM review WHERE reviewee_id = $1`
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec), &reviews, q, revieweeID); err != nil {
		return nil, errors.Wrap(err, "querying reviews")
	}
	return reviews, nil
}
