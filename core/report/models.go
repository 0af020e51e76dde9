package report

import (
	"github.com/volatiletech/null/v8"
)

type (
	// CourseStats is a point-in-time aggregation over a course's graded
	// submissions. Nothing is cached; every aggregation hits storage.
	//
	// AvgGrade is null, not zero, when the course has no graded
	// submissions. An average of zero means every grade was zero.
	CourseStats struct {
		CourseID          string           `json:"course_id"`
		AvgGrade          null.Float64     `json:"avg_grade"`
		TotalStudents     int              `json:"total_students"`
		StudentsPassedAll int              `json:"students_passed_all"`
		Practicals        []PracticalStats `json:"practicals"`
		Groups            []GroupStats     `json:"groups"`
	}

	PracticalStats struct {
		PracticalWorkID string       `db:"practical_work_id" json:"practical_work_id"`
		Title           string       `db:"title" json:"title"`
		AvgGrade        null.Float64 `db:"avg_grade" json:"avg_grade"`
		GradedCount     int          `db:"graded_count" json:"graded_count"`
	}

	GroupStats struct {
		GroupID  string       `db:"group_id" json:"group_id"`
		Name     string       `db:"name" json:"name"`
		AvgGrade null.Float64 `db:"avg_grade" json:"avg_grade"`
	}

	// Report is the rendered analytics payload for one course: the stats
	// plus chart images encoded as data URIs.
	Report struct {
		CourseID          string           `json:"course_id"`
		CourseTitle       string           `json:"course_title"`
		AvgGrade          null.Float64     `json:"avg_grade"`
		TotalStudents     int              `json:"total_students"`
		StudentsPassedAll int              `json:"students_passed_all"`
		Practicals        []PracticalStats `json:"practicals"`
		Groups            []GroupStats     `json:"groups"`
		PracticalChart    string           `json:"practical_chart,omitempty"`
		GroupChart        string           `json:"group_chart,omitempty"`
	}

	// LabeledValue is one bar of a chart series.
	LabeledValue struct {
		Label string
		Value float64
	}
)

// PracticalSeries converts per-practical averages into a chart series.
// Practicals with no graded submissions are kept in the tabular stats but
// skipped here; a null average is not a zero bar.
func (cs CourseStats) PracticalSeries() []LabeledValue {
	series := make([]LabeledValue, 0, len(cs.Practicals))
	for _, ps := range cs.Practicals {
		if !ps.AvgGrade.Valid {
			continue
		}
		series = append(series, LabeledValue{Label: ps.Title, Value: ps.AvgGrade.Float64})
	}
	return series
}

// GroupSeries converts per-group averages into a chart series, skipping
// groups with no graded submissions.
func (cs CourseStats) GroupSeries() []LabeledValue {
	series := make([]LabeledValue, 0, len(cs.Groups))
	for _, gs := range cs.Groups {
		if !gs.AvgGrade.Valid {
			continue
		}
		series = append(series, LabeledValue{Label: gs.Name, Value: gs.AvgGrade.Float64})
	}
	return series
}
