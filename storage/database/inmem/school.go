package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

// Groups

func (repo *schoolRepository) getGroup(grp *school.Group) school.Group {
	out := *grp
	out.CourseIDs = reverseLinked(repo.db.courseGroups, grp.ID)
	sort.Strings(out.CourseIDs)
	return out
}

func (repo *schoolRepository) CheckGroupNameUniqueness(ctx context.Context, name string, excludedGroups []school.Group, exec ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excluded := make(map[string]bool, len(excludedGroups))
	for _, g := range excludedGroups {
		excluded[g.ID] = true
	}
	for _, grp := range repo.db.groups {
		if grp.Name == name && !excluded[grp.ID] {
			return school.ErrGroupNameExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateGroup(ctx context.Context, grp school.Group, exec ...core.DBExecutor) (school.Group, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	grp.ID = uuid.New().String()
	stored := grp
	repo.db.groups[grp.ID] = &stored
	for _, cid := range grp.CourseIDs {
		if repo.db.courseGroups[cid] == nil {
			repo.db.courseGroups[cid] = make(map[string]bool)
		}
		repo.db.courseGroups[cid][grp.ID] = true
	}
	return repo.getGroup(&stored), nil
}

func (repo *schoolRepository) GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (school.Group, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if grp, ok := repo.db.groups[id]; ok {
		return repo.getGroup(grp), nil
	}
	return school.Group{}, school.ErrGroupNotFound
}

func (repo *schoolRepository) QueryGroups(ctx context.Context, exec ...core.DBExecutor) ([]school.Group, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	groups := make([]school.Group, 0, len(repo.db.groups))
	for _, grp := range repo.db.groups {
		groups = append(groups, repo.getGroup(grp))
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

func (repo *schoolRepository) UpdateGroup(ctx context.Context, grp school.Group, exec ...core.DBExecutor) (school.Group, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.groups[grp.ID]
	if !ok {
		return school.Group{}, school.ErrGroupNotFound
	}
	orig.Name = grp.Name
	orig.UpdatedAt = grp.UpdatedAt
	return repo.getGroup(orig), nil
}

func (repo *schoolRepository) SetGroupCourses(ctx context.Context, groupID string, courseIDs []string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, set := range repo.db.courseGroups {
		delete(set, groupID)
	}
	for _, cid := range courseIDs {
		if repo.db.courseGroups[cid] == nil {
			repo.db.courseGroups[cid] = make(map[string]bool)
		}
		repo.db.courseGroups[cid][groupID] = true
	}
	return nil
}

func (repo *schoolRepository) DeleteGroupsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.groups[id]; !ok {
			continue
		}
		delete(repo.db.groups, id)
		for _, set := range repo.db.courseGroups {
			delete(set, id)
		}
		for _, set := range repo.db.userGroups {
			delete(set, id)
		}
		n++
	}
	return n, nil
}

// Courses

func (repo *schoolRepository) getCourse(crs *school.Course) school.Course {
	out := *crs
	out.TeacherIDs = linked(repo.db.courseTeachers, crs.ID)
	sort.Strings(out.TeacherIDs)
	out.GroupIDs = linked(repo.db.courseGroups, crs.ID)
	sort.Strings(out.GroupIDs)

	out.Modules = nil
	for _, mod := range repo.db.modules {
		if mod.CourseID == crs.ID {
			out.Modules = append(out.Modules, *mod)
		}
	}
	sort.Slice(out.Modules, func(i, j int) bool { return out.Modules[i].Position < out.Modules[j].Position })

	out.Materials = nil
	for _, mat := range repo.db.materials {
		if mat.CourseID == crs.ID {
			out.Materials = append(out.Materials, *mat)
		}
	}
	sort.Slice(out.Materials, func(i, j int) bool { return out.Materials[i].Title < out.Materials[j].Title })

	out.Practicals = nil
	for _, work := range repo.db.works {
		if work.CourseID.String == crs.ID {
			out.Practicals = append(out.Practicals, *work)
		}
	}
	sort.Slice(out.Practicals, func(i, j int) bool { return out.Practicals[i].Title < out.Practicals[j].Title })

	out.Tests = nil
	for _, tst := range repo.db.tests {
		if tst.CourseID.String == crs.ID {
			out.Tests = append(out.Tests, *tst)
		}
	}
	sort.Slice(out.Tests, func(i, j int) bool { return out.Tests[i].Title < out.Tests[j].Title })
	return out
}

func (repo *schoolRepository) CreateCourse(ctx context.Context, crs school.Course, exec ...core.DBExecutor) (school.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crs.ID = uuid.New().String()
	stored := school.Course{
		ID: crs.ID, Title: crs.Title, Description: crs.Description,
		CreatedAt: crs.CreatedAt, UpdatedAt: crs.UpdatedAt,
	}
	repo.db.courses[crs.ID] = &stored
	return repo.getCourse(&stored), nil
}

func (repo *schoolRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (school.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return repo.getCourse(crs), nil
	}
	return school.Course{}, school.ErrCourseNotFound
}

func (repo *schoolRepository) QueryCourses(ctx context.Context, filter *school.QueryFilter, exec ...core.DBExecutor) ([]school.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]school.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		if filter != nil {
			if filter.Teacher != "" && !repo.db.courseTeachers[crs.ID][filter.Teacher] {
				continue
			}
			if filter.Group != "" && !repo.db.courseGroups[crs.ID][filter.Group] {
				continue
			}
			if filter.Search != "" {
				s := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(crs.Title), s) &&
					!strings.Contains(strings.ToLower(crs.Description), s) {
					continue
				}
			}
		}
		courses = append(courses, repo.getCourse(crs))
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Title < courses[j].Title })
	return courses, nil
}

func (repo *schoolRepository) QueryCoursesByTeacher(ctx context.Context, teacherID string, exec ...core.DBExecutor) ([]school.Course, error) {
	return repo.QueryCourses(ctx, &school.QueryFilter{Teacher: teacherID})
}

func (repo *schoolRepository) QueryCoursesByGroups(ctx context.Context, groupIDs []string, exec ...core.DBExecutor) ([]school.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	// each course once, however many of the groups enroll it
	seen := make(map[string]bool)
	var courses []school.Course
	for _, crs := range repo.db.courses {
		for _, gid := range groupIDs {
			if repo.db.courseGroups[crs.ID][gid] && !seen[crs.ID] {
				seen[crs.ID] = true
				courses = append(courses, repo.getCourse(crs))
			}
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Title < courses[j].Title })
	return courses, nil
}

func (repo *schoolRepository) UpdateCourse(ctx context.Context, crs school.Course, exec ...core.DBExecutor) (school.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return school.Course{}, school.ErrCourseNotFound
	}
	orig.Title = crs.Title
	orig.Description = crs.Description
	orig.UpdatedAt = crs.UpdatedAt
	return repo.getCourse(orig), nil
}

func (repo *schoolRepository) SetCourseTeachers(ctx context.Context, courseID string, teacherIDs []string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	link(repo.db.courseTeachers, courseID, teacherIDs)
	return nil
}

func (repo *schoolRepository) SetCourseGroups(ctx context.Context, courseID string, groupIDs []string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	link(repo.db.courseGroups, courseID, groupIDs)
	return nil
}

func (repo *schoolRepository) DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.courses[id]; !ok {
			continue
		}
		delete(repo.db.courses, id)
		delete(repo.db.courseTeachers, id)
		delete(repo.db.courseGroups, id)
		for mid, mod := range repo.db.modules {
			if mod.CourseID == id {
				delete(repo.db.modules, mid)
			}
		}
		for mid, mat := range repo.db.materials {
			if mat.CourseID == id {
				delete(repo.db.materials, mid)
			}
		}
		for wid, work := range repo.db.works {
			if work.CourseID.String == id {
				repo.deleteWorkLocked(wid)
			}
		}
		for tid, tst := range repo.db.tests {
			if tst.CourseID.String == id {
				delete(repo.db.tests, tid)
			}
		}
		n++
	}
	return n, nil
}

// Nested course content

func (repo *schoolRepository) UpsertModule(ctx context.Context, mod school.Module, exec ...core.DBExecutor) (school.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if mod.ID == "" {
		mod.ID = uuid.New().String()
	}
	stored := mod
	repo.db.modules[mod.ID] = &stored
	return mod, nil
}

func (repo *schoolRepository) DeleteModulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.modules[id]; ok {
			delete(repo.db.modules, id)
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) UpsertMaterial(ctx context.Context, mat school.LectureMaterial, exec ...core.DBExecutor) (school.LectureMaterial, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if mat.ID == "" {
		mat.ID = uuid.New().String()
	}
	stored := mat
	repo.db.materials[mat.ID] = &stored
	return mat, nil
}

func (repo *schoolRepository) DeleteMaterialsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.materials[id]; ok {
			delete(repo.db.materials, id)
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) GetPracticalWork(ctx context.Context, id string, exec ...core.DBExecutor) (school.PracticalWork, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if work, ok := repo.db.works[id]; ok {
		return *work, nil
	}
	return school.PracticalWork{}, school.ErrWorkNotFound
}

func (repo *schoolRepository) QueryPracticalWorks(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]school.PracticalWork, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var works []school.PracticalWork
	for _, work := range repo.db.works {
		if work.CourseID.String == courseID {
			works = append(works, *work)
		}
	}
	sort.Slice(works, func(i, j int) bool { return works[i].Title < works[j].Title })
	return works, nil
}

func (repo *schoolRepository) UpsertPracticalWork(ctx context.Context, work school.PracticalWork, exec ...core.DBExecutor) (school.PracticalWork, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if work.ID == "" {
		work.ID = uuid.New().String()
	}
	stored := work
	repo.db.works[work.ID] = &stored
	return work, nil
}

// deleteWorkLocked cascades onto submissions; callers hold the write lock.
func (repo *schoolRepository) deleteWorkLocked(id string) {
	delete(repo.db.works, id)
	for sid, sub := range repo.db.submissions {
		if sub.PracticalWorkID == id {
			delete(repo.db.submissions, sid)
		}
	}
}

func (repo *schoolRepository) DeletePracticalWorksByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.works[id]; ok {
			repo.deleteWorkLocked(id)
			n++
		}
	}
	return n, nil
}

// Tests

func (repo *schoolRepository) CreateTest(ctx context.Context, tst school.Test, exec ...core.DBExecutor) (school.Test, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	tst.ID = uuid.New().String()
	for qi := range tst.Questions {
		tst.Questions[qi].ID = uuid.New().String()
		tst.Questions[qi].TestID = tst.ID
		for oi := range tst.Questions[qi].Options {
			tst.Questions[qi].Options[oi].ID = uuid.New().String()
			tst.Questions[qi].Options[oi].QuestionID = tst.Questions[qi].ID
		}
	}
	stored := tst
	repo.db.tests[tst.ID] = &stored
	return tst, nil
}

func (repo *schoolRepository) GetTest(ctx context.Context, id string, exec ...core.DBExecutor) (school.Test, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if tst, ok := repo.db.tests[id]; ok {
		return *tst, nil
	}
	return school.Test{}, school.ErrTestNotFound
}

func (repo *schoolRepository) QueryTestsByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]school.Test, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tests := []school.Test{}
	for _, tst := range repo.db.tests {
		if tst.CourseID.String == courseID {
			tests = append(tests, *tst)
		}
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].Title < tests[j].Title })
	return tests, nil
}

func (repo *schoolRepository) DeleteTestsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.tests[id]; ok {
			delete(repo.db.tests, id)
			n++
		}
	}
	return n, nil
}

// Campus records

func (repo *schoolRepository) CreateSchedule(ctx context.Context, sch school.Schedule, exec ...core.DBExecutor) (school.Schedule, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sch.ID = uuid.New().String()
	stored := sch
	repo.db.schedules[sch.ID] = &stored
	return sch, nil
}

func (repo *schoolRepository) QueryScheduleByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]school.Schedule, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var entries []school.Schedule
	for _, sch := range repo.db.schedules {
		if sch.CourseID.String == courseID {
			entries = append(entries, *sch)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].StartTime.Time.Before(entries[j].StartTime.Time) })
	return entries, nil
}

func (repo *schoolRepository) DeleteSchedulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.schedules[id]; ok {
			delete(repo.db.schedules, id)
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) CreateAttendance(ctx context.Context, att school.Attendance, exec ...core.DBExecutor) (school.Attendance, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	att.ID = uuid.New().String()
	stored := att
	repo.db.attendances[att.ID] = &stored
	return att, nil
}

func (repo *schoolRepository) CloseAttendance(ctx context.Context, id string, logout time.Time, exec ...core.DBExecutor) (school.Attendance, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	att, ok := repo.db.attendances[id]
	if !ok {
		return school.Attendance{}, school.ErrScheduleNotFound
	}
	att.LogoutTime.SetValid(logout.UTC())
	return *att, nil
}

func (repo *schoolRepository) QueryAttendance(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) ([]school.Attendance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var entries []school.Attendance
	for _, att := range repo.db.attendances {
		if userID != "" && att.UserID.String != userID {
			continue
		}
		if courseID != "" && att.CourseID.String != courseID {
			continue
		}
		entries = append(entries, *att)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].LoginTime.Time.After(entries[j].LoginTime.Time) })
	return entries, nil
}

func (repo *schoolRepository) CreateReview(ctx context.Context, rev school.Review, exec ...core.DBExecutor) (school.Review, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	rev.ID = uuid.New().String()
	stored := rev
	repo.db.reviews[rev.ID] = &stored
	return rev, nil
}

func (repo *schoolRepository) QueryReviewsForUser(ctx context.Context, revieweeID string, exec ...core.DBExecutor) ([]school.Review, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var reviews []school.Review
	for _, rev := range repo.db.reviews {
		if rev.RevieweeID.String == revieweeID {
			reviews = append(reviews, *rev)
		}
	}
	return reviews, nil
}
