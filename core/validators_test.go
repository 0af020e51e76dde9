package core

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
)

func newTestValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	InitValidators(validate, translator)
	return validate, translator
}

func TestInitValidators(t *testing.T) {
	validate, translator := newTestValidator()

	type gradeForm struct {
		Name  string   `json:"name" validate:"required,alphanum_"`
		Score null.Int `json:"score" validate:"omitempty,gradescale"`
	}

	tests := []struct {
		name    string
		form    gradeForm
		wantErr map[string]string // field -> translated message; nil means valid
	}{
		{name: "valid", form: gradeForm{Name: "lab_1", Score: null.IntFrom(10)}},
		{name: "null score skips the scale check", form: gradeForm{Name: "lab_1"}},
		{name: "zero is a real grade", form: gradeForm{Name: "lab_1", Score: null.IntFrom(0)}},
		{
			name:    "missing name",
			form:    gradeForm{Score: null.IntFrom(5)},
			wantErr: map[string]string{"name": "this field is required"},
		},
		{
			name:    "name with punctuation",
			form:    gradeForm{Name: "lab #1", Score: null.IntFrom(5)},
			wantErr: map[string]string{"name": "only alphanumeric characters and underscores are allowed"},
		},
		{
			name:    "score above the scale",
			form:    gradeForm{Name: "lab_1", Score: null.IntFrom(11)},
			wantErr: map[string]string{"score": "grade must be between 0 and 10"},
		},
		{
			name:    "negative score",
			form:    gradeForm{Name: "lab_1", Score: null.IntFrom(-1)},
			wantErr: map[string]string{"score": "grade must be between 0 and 10"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.form)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Struct() error = %v, want nil", err)
				}
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				t.Fatalf("Struct() error = %v, want ValidationErrors", err)
			}
			got := make(map[string]string, len(vErrs))
			for _, fe := range vErrs {
				got[fe.Field()] = fe.Translate(translator)
			}
			for field, msg := range tt.wantErr {
				if got[field] != msg {
					t.Errorf("field %q message = %q, want %q", field, got[field], msg)
				}
			}
		})
	}
}

func TestInitValidators_requiredNull(t *testing.T) {
	validate, _ := newTestValidator()

	type form struct {
		Deadline null.Time `json:"deadline" validate:"required"`
	}

	// an invalid null unwraps to nothing, so required rejects it
	if err := validate.Struct(form{}); err == nil {
		t.Error("Struct() accepted a null required field")
	}
}
