package inmemdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/school"
	"github.com/messengermaksym/diploma-project/core/submission"
	"github.com/messengermaksym/diploma-project/core/user"
)

// DB is a map-backed store for tests. One lock guards everything; relation
// tables mirror the psql m2m join tables.
type DB struct {
	mu sync.RWMutex

	users       map[string]*user.User
	groups      map[string]*school.Group
	courses     map[string]*school.Course
	modules     map[string]*school.Module
	materials   map[string]*school.LectureMaterial
	works       map[string]*school.PracticalWork
	tests       map[string]*school.Test
	schedules   map[string]*school.Schedule
	attendances map[string]*school.Attendance
	reviews     map[string]*school.Review
	submissions map[string]*submission.Submission
	grades      map[string]*submission.Grade

	userGroups     map[string]map[string]bool // user -> groups
	courseTeachers map[string]map[string]bool // course -> teachers
	courseGroups   map[string]map[string]bool // course -> groups
}

var _ core.DB = (*DB)(nil)

func Open() (*DB, error) {
	return &DB{
		users:          make(map[string]*user.User),
		groups:         make(map[string]*school.Group),
		courses:        make(map[string]*school.Course),
		modules:        make(map[string]*school.Module),
		materials:      make(map[string]*school.LectureMaterial),
		works:          make(map[string]*school.PracticalWork),
		tests:          make(map[string]*school.Test),
		schedules:      make(map[string]*school.Schedule),
		attendances:    make(map[string]*school.Attendance),
		reviews:        make(map[string]*school.Review),
		submissions:    make(map[string]*submission.Submission),
		grades:         make(map[string]*submission.Grade),
		userGroups:     make(map[string]map[string]bool),
		courseTeachers: make(map[string]map[string]bool),
		courseGroups:   make(map[string]map[string]bool),
	}, nil
}

var errRawSQL = errors.New("inmemdb: raw SQL not supported")

func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return nil, errRawSQL
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errRawSQL
}

func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errRawSQL
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errRawSQL
}

func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row { return nil }

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	return noopTx{db}, nil
}

// noopTx satisfies core.DBTransactor; the map store has no rollback.
type noopTx struct {
	*DB
}

func (tx noopTx) Commit() error   { return nil }
func (tx noopTx) Rollback() error { return nil }

func link(rel map[string]map[string]bool, from string, to []string) {
	set := make(map[string]bool, len(to))
	for _, id := range to {
		set[id] = true
	}
	rel[from] = set
}

func linked(rel map[string]map[string]bool, from string) []string {
	ids := make([]string, 0, len(rel[from]))
	for id := range rel[from] {
		ids = append(ids, id)
	}
	return ids
}

// reverseLinked collects the "from" keys whose set contains to.
func reverseLinked(rel map[string]map[string]bool, to string) []string {
	var ids []string
	for from, set := range rel {
		if set[to] {
			ids = append(ids, from)
		}
	}
	return ids
}
