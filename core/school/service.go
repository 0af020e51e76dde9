package school

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/user"
)

var (
	// errors
	ErrCourseNotFound   = errors.New("course not found")
	ErrGroupNotFound    = errors.New("group not found")
	ErrTestNotFound     = errors.New("test not found")
	ErrWorkNotFound     = errors.New("practical work not found")
	ErrGroupNameExists  = errors.New("a group with this name already exists")
	ErrScheduleNotFound = errors.New("schedule entry not found")
)

type (
	Repository interface {
		// groups
		CheckGroupNameUniqueness(ctx context.Context, name string, excludedGroups []Group, exec ...core.DBExecutor) error
		CreateGroup(ctx context.Context, grp Group, exec ...core.DBExecutor) (Group, error)
		GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (Group, error)
		QueryGroups(ctx context.Context, exec ...core.DBExecutor) ([]Group, error)
		UpdateGroup(ctx context.Context, grp Group, exec ...core.DBExecutor) (Group, error)
		SetGroupCourses(ctx context.Context, groupID string, courseIDs []string, exec ...core.DBExecutor) error
		DeleteGroupsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		// courses
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		// GetCourse returns the course hydrated with its modules, materials,
		// practical works and tests.
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Course, error)
		QueryCoursesByTeacher(ctx context.Context, teacherID string, exec ...core.DBExecutor) ([]Course, error)
		// QueryCoursesByGroups returns courses enrolled by any of the given
		// groups, deduplicated.
		QueryCoursesByGroups(ctx context.Context, groupIDs []string, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		SetCourseTeachers(ctx context.Context, courseID string, teacherIDs []string, exec ...core.DBExecutor) error
		SetCourseGroups(ctx context.Context, courseID string, groupIDs []string, exec ...core.DBExecutor) error
		DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		// nested course content
		UpsertModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		DeleteModulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
		UpsertMaterial(ctx context.Context, mat LectureMaterial, exec ...core.DBExecutor) (LectureMaterial, error)
		DeleteMaterialsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
		GetPracticalWork(ctx context.Context, id string, exec ...core.DBExecutor) (PracticalWork, error)
		QueryPracticalWorks(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]PracticalWork, error)
		UpsertPracticalWork(ctx context.Context, work PracticalWork, exec ...core.DBExecutor) (PracticalWork, error)
		DeletePracticalWorksByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		// tests
		CreateTest(ctx context.Context, tst Test, exec ...core.DBExecutor) (Test, error)
		GetTest(ctx context.Context, id string, exec ...core.DBExecutor) (Test, error)
		QueryTestsByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Test, error)
		DeleteTestsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		// campus records
		CreateSchedule(ctx context.Context, sch Schedule, exec ...core.DBExecutor) (Schedule, error)
		QueryScheduleByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Schedule, error)
		DeleteSchedulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
		CreateAttendance(ctx context.Context, att Attendance, exec ...core.DBExecutor) (Attendance, error)
		CloseAttendance(ctx context.Context, id string, logout time.Time, exec ...core.DBExecutor) (Attendance, error)
		QueryAttendance(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) ([]Attendance, error)
		CreateReview(ctx context.Context, rev Review, exec ...core.DBExecutor) (Review, error)
		QueryReviewsForUser(ctx context.Context, revieweeID string, exec ...core.DBExecutor) ([]Review, error)
	}

	ServiceInterface interface {
		VisibleCourses(ctx context.Context, usr user.User) ([]Course, error)

		CreateGroup(ctx context.Context, ng NewGroup) (Group, error)
		GetGroup(ctx context.Context, id string) (Group, error)
		QueryGroups(ctx context.Context) ([]Group, error)
		UpdateGroup(ctx context.Context, id string, ug UpdateGroup) (Group, error)
		DeleteGroups(ctx context.Context, ids ...string) error

		CreateCourse(ctx context.Context, nc NewCourse) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter) ([]Course, error)
		UpdateCourse(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		DeleteCourses(ctx context.Context, ids ...string) error

		GetPracticalWork(ctx context.Context, id string) (PracticalWork, error)

		CreateTest(ctx context.Context, nt NewTest) (Test, error)
		GetTest(ctx context.Context, id string) (Test, error)
		QueryTestsByCourse(ctx context.Context, courseID string) ([]Test, error)
		DeleteTests(ctx context.Context, ids ...string) error

		CreateSchedule(ctx context.Context, ns NewSchedule) (Schedule, error)
		QueryScheduleByCourse(ctx context.Context, courseID string) ([]Schedule, error)
		RecordAttendance(ctx context.Context, userID, courseID string) (Attendance, error)
		CloseAttendance(ctx context.Context, id string) (Attendance, error)
		QueryAttendance(ctx context.Context, userID, courseID string) ([]Attendance, error)
		CreateReview(ctx context.Context, reviewer user.User, nr NewReview) (Review, error)
		QueryReviewsForUser(ctx context.Context, revieweeID string) ([]Review, error)
	}

	service struct {
		db   core.DB
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository) *service {
	return &service{db: db, repo: repo}
}

// Course visibility.
//
// Resolution is a strategy keyed by role tag so new roles plug in without
// touching the resolver itself. Roles without a registered strategy see no
// courses; that includes admin and superadmin, matching the long-standing portal
// behavior.
type VisibilityFunc func(ctx context.Context, repo Repository, usr user.User) ([]Course, error)

var (
	visibilityMu         sync.RWMutex
	visibilityStrategies = map[string]VisibilityFunc{
		user.RoleTeacher: teacherVisibility,
		user.RoleStudent: studentVisibility,
	}
)

// RegisterVisibility installs the course-visibility strategy for a role tag.
// Safe to call concurrently with course resolution.
func RegisterVisibility(role string, fn VisibilityFunc) {
	visibilityMu.Lock()
	defer visibilityMu.Unlock()
	visibilityStrategies[role] = fn
}

func visibilityStrategy(role string) (VisibilityFunc, bool) {
	visibilityMu.RLock()
	defer visibilityMu.RUnlock()
	strategy, ok := visibilityStrategies[role]
	return strategy, ok
}

func teacherVisibility(ctx context.Context, repo Repository, usr user.User) ([]Course, error) {
	return repo.QueryCoursesByTeacher(ctx, usr.ID)
}

func studentVisibility(ctx context.Context, repo Repository, usr user.User) ([]Course, error) {
	if len(usr.GroupIDs) == 0 {
		return []Course{}, nil
	}
	return repo.QueryCoursesByGroups(ctx, usr.GroupIDs)
}

func (svc *service) VisibleCourses(ctx context.Context, usr user.User) ([]Course, error) {
	strategy, ok := visibilityStrategy(usr.Role)
	if !ok {
		return []Course{}, nil
	}
	courses, err := strategy(ctx, svc.repo, usr)
	if err != nil {
		return nil, errors.Wrap(err, "resolving visible courses")
	}
	if courses == nil {
		courses = []Course{}
	}
	return courses, nil
}

// Groups

func (svc *service) CreateGroup(ctx context.Context, ng NewGroup) (Group, error) {
	if err := svc.checkGroupName(ctx, ng.Name); err != nil {
		return Group{}, err
	}
	now := time.Now().UTC()
	grp := Group{
		Name:      ng.Name,
		CourseIDs: ng.CourseIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateGroup(ctx, grp)
}

func (svc *service) checkGroupName(ctx context.Context, name string, excl ...Group) error {
	if err := svc.repo.CheckGroupNameUniqueness(ctx, name, excl); err != nil {
		if errors.Cause(err) == ErrGroupNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) GetGroup(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

func (svc *service) QueryGroups(ctx context.Context) ([]Group, error) {
	return svc.repo.QueryGroups(ctx)
}

func (svc *service) UpdateGroup(ctx context.Context, id string, ug UpdateGroup) (Group, error) {
	grp, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if ug.Name != "" && ug.Name != grp.Name {
		if err = svc.checkGroupName(ctx, ug.Name, grp); err != nil {
			return Group{}, err
		}
		grp.Name = ug.Name
	}
	grp.UpdatedAt = time.Now().UTC()
	grp, err = svc.repo.UpdateGroup(ctx, grp)
	if err != nil {
		return Group{}, err
	}
	if ug.CourseIDs != nil {
		if err = svc.repo.SetGroupCourses(ctx, grp.ID, ug.CourseIDs); err != nil {
			return Group{}, errors.Wrap(err, "setting group courses")
		}
		grp.CourseIDs = ug.CourseIDs
	}
	return grp, nil
}

func (svc *service) DeleteGroups(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteGroupsByID(ctx, ids)
	return err
}

// Courses

func (svc *service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		Title:       nc.Title,
		Description: nc.Description,
		TeacherIDs:  nc.TeacherIDs,
		GroupIDs:    nc.GroupIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	crs, err := svc.repo.CreateCourse(ctx, crs)
	if err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	if len(nc.TeacherIDs) > 0 {
		if err = svc.repo.SetCourseTeachers(ctx, crs.ID, nc.TeacherIDs); err != nil {
			return Course{}, errors.Wrap(err, "setting course teachers")
		}
	}
	if len(nc.GroupIDs) > 0 {
		if err = svc.repo.SetCourseGroups(ctx, crs.ID, nc.GroupIDs); err != nil {
			return Course{}, errors.Wrap(err, "setting course groups")
		}
	}
	return crs, nil
}

func (svc *service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) QueryCourses(ctx context.Context, filter *QueryFilter) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter)
}

// UpdateCourse applies attribute changes and reconciles the nested module,
// material and practical-work lists against the persisted course content.
func (svc *service) UpdateCourse(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}

	if uc.Title != "" {
		crs.Title = uc.Title
	}
	crs.Description = uc.Description
	crs.UpdatedAt = time.Now().UTC()

	// content reconciliation spans several statements; all or nothing
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Course{}, errors.Wrap(err, "beginning transaction")
	}
	if crs, err = svc.updateCourseTx(ctx, crs, uc, tx); err != nil {
		_ = tx.Rollback()
		return Course{}, err
	}
	if err = tx.Commit(); err != nil {
		return Course{}, errors.Wrap(err, "committing transaction")
	}
	return crs, nil
}

func (svc *service) updateCourseTx(ctx context.Context, crs Course, uc UpdateCourse, tx core.DBTransactor) (Course, error) {
	crs, err := svc.repo.UpdateCourse(ctx, crs, tx)
	if err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}

	if uc.TeacherIDs != nil {
		if err = svc.repo.SetCourseTeachers(ctx, crs.ID, uc.TeacherIDs, tx); err != nil {
			return Course{}, errors.Wrap(err, "setting course teachers")
		}
		crs.TeacherIDs = uc.TeacherIDs
	}
	if uc.GroupIDs != nil {
		if err = svc.repo.SetCourseGroups(ctx, crs.ID, uc.GroupIDs, tx); err != nil {
			return Course{}, errors.Wrap(err, "setting course groups")
		}
		crs.GroupIDs = uc.GroupIDs
	}

	if uc.Modules != nil {
		if err = svc.reconcileModules(ctx, &crs, uc.Modules, tx); err != nil {
			return Course{}, err
		}
	}
	if uc.Materials != nil {
		if err = svc.reconcileMaterials(ctx, &crs, uc.Materials, tx); err != nil {
			return Course{}, err
		}
	}
	if uc.Practicals != nil {
		if err = svc.reconcilePracticals(ctx, &crs, uc.Practicals, tx); err != nil {
			return Course{}, err
		}
	}
	return crs, nil
}

func (svc *service) reconcileModules(ctx context.Context, crs *Course, mods []UpdateModule, tx core.DBTransactor) error {
	keep := make(map[string]bool, len(mods))
	newMods := make([]Module, 0, len(mods))
	for i, um := range mods {
		mod := Module{ID: um.ID, CourseID: crs.ID, Title: um.Title, Content: um.Content, Position: i}
		mod, err := svc.repo.UpsertModule(ctx, mod, tx)
		if err != nil {
			return errors.Wrap(err, "upserting module")
		}
		keep[mod.ID] = true
		newMods = append(newMods, mod)
	}
	var stale []string
	for _, mod := range crs.Modules {
		if !keep[mod.ID] {
			stale = append(stale, mod.ID)
		}
	}
	if len(stale) > 0 {
		if _, err := svc.repo.DeleteModulesByID(ctx, stale, tx); err != nil {
			return errors.Wrap(err, "deleting modules")
		}
	}
	crs.Modules = newMods
	return nil
}

func (svc *service) reconcileMaterials(ctx context.Context, crs *Course, mats []UpdateMaterial, tx core.DBTransactor) error {
	keep := make(map[string]bool, len(mats))
	newMats := make([]LectureMaterial, 0, len(mats))
	for _, um := range mats {
		mat := LectureMaterial{ID: um.ID, CourseID: crs.ID, Title: um.Title, File: um.File}
		mat, err := svc.repo.UpsertMaterial(ctx, mat, tx)
		if err != nil {
			return errors.Wrap(err, "upserting material")
		}
		keep[mat.ID] = true
		newMats = append(newMats, mat)
	}
	var stale []string
	for _, mat := range crs.Materials {
		if !keep[mat.ID] {
			stale = append(stale, mat.ID)
		}
	}
	if len(stale) > 0 {
		if _, err := svc.repo.DeleteMaterialsByID(ctx, stale, tx); err != nil {
			return errors.Wrap(err, "deleting materials")
		}
	}
	crs.Materials = newMats
	return nil
}

func (svc *service) reconcilePracticals(ctx context.Context, crs *Course, works []UpdatePracticalWk, tx core.DBTransactor) error {
	keep := make(map[string]bool, len(works))
	newWorks := make([]PracticalWork, 0, len(works))
	for _, uw := range works {
		maxScore := uw.MaxScore
		if maxScore == 0 {
			maxScore = DefaultMaxScore
		}
		work := PracticalWork{
			ID:       uw.ID,
			CourseID: null.StringFrom(crs.ID),
			Title:    uw.Title,
			Content:  uw.Content,
			File:     uw.File,
			Deadline: uw.Deadline,
			MaxScore: maxScore,
		}
		work, err := svc.repo.UpsertPracticalWork(ctx, work, tx)
		if err != nil {
			return errors.Wrap(err, "upserting practical work")
		}
		keep[work.ID] = true
		newWorks = append(newWorks, work)
	}
	var stale []string
	for _, work := range crs.Practicals {
		if !keep[work.ID] {
			stale = append(stale, work.ID)
		}
	}
	if len(stale) > 0 {
		// submissions go with their practical work
		if _, err := svc.repo.DeletePracticalWorksByID(ctx, stale, tx); err != nil {
			return errors.Wrap(err, "deleting practical works")
		}
	}
	crs.Practicals = newWorks
	return nil
}

func (svc *service) DeleteCourses(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteCoursesByID(ctx, ids)
	return err
}

func (svc *service) GetPracticalWork(ctx context.Context, id string) (PracticalWork, error) {
	return svc.repo.GetPracticalWork(ctx, id)
}

// Tests

func (svc *service) CreateTest(ctx context.Context, nt NewTest) (Test, error) {
	tst := Test{
		CourseID: null.StringFrom(nt.CourseID),
		Title:    nt.Title,
	}
	for _, nq := range nt.Questions {
		q := TestQuestion{
			Content:          nq.Content,
			IsMultipleChoice: null.BoolFrom(nq.IsMultipleChoice),
		}
		for _, no := range nq.Options {
			q.Options = append(q.Options, QuestionOption{
				Content:   no.Content,
				IsCorrect: null.BoolFrom(no.IsCorrect),
			})
		}
		tst.Questions = append(tst.Questions, q)
	}
	return svc.repo.CreateTest(ctx, tst)
}

func (svc *service) GetTest(ctx context.Context, id string) (Test, error) {
	return svc.repo.GetTest(ctx, id)
}

func (svc *service) QueryTestsByCourse(ctx context.Context, courseID string) ([]Test, error) {
	return svc.repo.QueryTestsByCourse(ctx, courseID)
}

func (svc *service) DeleteTests(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteTestsByID(ctx, ids)
	return err
}

// Campus records

func (svc *service) CreateSchedule(ctx context.Context, ns NewSchedule) (Schedule, error) {
	if _, err := svc.repo.GetCourse(ctx, ns.CourseID); err != nil {
		return Schedule{}, err
	}
	sch := Schedule{
		CourseID:  null.StringFrom(ns.CourseID),
		StartTime: ns.StartTime,
		EndTime:   ns.EndTime,
		Location:  ns.Location,
	}
	return svc.repo.CreateSchedule(ctx, sch)
}

func (svc *service) QueryScheduleByCourse(ctx context.Context, courseID string) ([]Schedule, error) {
	return svc.repo.QueryScheduleByCourse(ctx, courseID)
}

func (svc *service) RecordAttendance(ctx context.Context, userID, courseID string) (Attendance, error) {
	att := Attendance{
		UserID:    null.StringFrom(userID),
		CourseID:  null.StringFrom(courseID),
		LoginTime: null.TimeFrom(time.Now().UTC()),
	}
	return svc.repo.CreateAttendance(ctx, att)
}

func (svc *service) CloseAttendance(ctx context.Context, id string) (Attendance, error) {
	return svc.repo.CloseAttendance(ctx, id, time.Now().UTC())
}

func (svc *service) QueryAttendance(ctx context.Context, userID, courseID string) ([]Attendance, error) {
	return svc.repo.QueryAttendance(ctx, userID, courseID)
}

func (svc *service) CreateReview(ctx context.Context, reviewer user.User, nr NewReview) (Review, error) {
	rev := Review{
		ReviewerID: null.StringFrom(reviewer.ID),
		RevieweeID: null.StringFrom(nr.RevieweeID),
		Rating:     null.IntFrom(nr.Rating),
		Comment:    nr.Comment,
	}
	return svc.repo.CreateReview(ctx, rev)
}

func (svc *service) QueryReviewsForUser(ctx context.Context, revieweeID string) ([]Review, error) {
	return svc.repo.QueryReviewsForUser(ctx, revieweeID)
}
