package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/student"
	"github.com/sagenius/agency-crm/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var (
	validate   *validator.Validate
	translator ut.Translator
)

// custom validation tags
const (
	notBlankTag    = "notblank"
	countryTag     = "country"
	statusTag      = "app_status"
	docStatusTag   = "doc_status"
	nocStatusTag   = "noc_status"
	priorityTag    = "priority"
	weekdayTag     = "weekday"
	dueTimeTag     = "due_time"
	validationTags = "notblank, country, app_status, doc_status, noc_status, priority, weekday, due_time"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation(countryTag, func(fl validator.FieldLevel) bool {
		return student.Country(fl.Field().String()).IsValid()
	})
	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		_, err := student.ParseStatus(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation(docStatusTag, func(fl validator.FieldLevel) bool {
		return student.DocumentStatus(fl.Field().String()).IsValid()
	})
	_ = validate.RegisterValidation(nocStatusTag, func(fl validator.FieldLevel) bool {
		return student.NocStatus(fl.Field().String()).IsValid()
	})
	_ = validate.RegisterValidation(priorityTag, func(fl validator.FieldLevel) bool {
		return task.Priority(fl.Field().String()).IsValid()
	})
	_ = validate.RegisterValidation(weekdayTag, func(fl validator.FieldLevel) bool {
		_, err := task.ParseDay(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation(dueTimeTag, func(fl validator.FieldLevel) bool {
		return task.DueTime(fl.Field().String()).IsValid()
	})

	registerCustomTranslations(strings.Split(validationTags, ", ")...)
}

// registerCustomTranslations registers "{field} is invalid" style messages.
func registerCustomTranslations(tags ...string) {
	for _, tag := range tags {
		tag := tag
		_ = validate.RegisterTranslation(tag, translator,
			func(ut ut.Translator) error { return nil },
			func(ut ut.Translator, fe validator.FieldError) string {
				if tag == notBlankTag {
					return fe.Field() + " must not be blank"
				}
				return fmt.Sprintf("%s has an invalid value %q", fe.Field(), fmt.Sprint(fe.Value()))
			},
		)
	}
}

// bind decodes a JSON body into dst and validates it. On failure it writes
// a 400 envelope and returns false.
func bind(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "Request body must be valid JSON"
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		} else if strings.HasPrefix(err.Error(), "json: unknown field") {
			msg = strings.TrimPrefix(err.Error(), "json: ")
		}
		writeJSONError(w, http.StatusBadRequest, codeValidation, msg, nil)
		return false
	}
	return check(w, dst)
}

// check validates an already decoded struct.
func check(w http.ResponseWriter, v interface{}) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Translate(translator)
		}
		writeJSONError(w, http.StatusBadRequest, codeValidation, "Request validation failed", fields)
		return false
	}
	writeJSONError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

type createStudentRequest struct {
	Name          string `json:"name" validate:"notblank,max=120"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"omitempty,max=32"`
	TargetCountry string `json:"targetCountry" validate:"omitempty,country"`
	Notes         string `json:"notes" validate:"max=2000"`
}

type updateStudentRequest struct {
	Name          *string `json:"name" validate:"omitempty,notblank,max=120"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Phone         *string `json:"phone" validate:"omitempty,max=32"`
	TargetCountry *string `json:"targetCountry" validate:"omitempty,country"`
	Notes         *string `json:"notes" validate:"omitempty,max=2000"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,app_status"`
}

type documentStatusRequest struct {
	Document string `json:"document" validate:"notblank"`
	Status   string `json:"status" validate:"required,doc_status"`
}

type nocRequest struct {
	Status string `json:"status" validate:"required,noc_status"`
}

type dependencyRequest struct {
	BlockerID string `json:"blockerId" validate:"notblank"`
}

type commissionRequest struct {
	PartnerID string  `json:"partnerId" validate:"notblank"`
	Amount    float64 `json:"amount" validate:"gt=0"`
}

type createTaskRequest struct {
	Text      string `json:"text" validate:"notblank,max=500"`
	Priority  string `json:"priority" validate:"omitempty,priority"`
	Day       string `json:"day" validate:"omitempty,weekday"`
	DueTime   string `json:"dueTime" validate:"omitempty,due_time"`
	StudentID string `json:"studentId"`
}

type settingsRequest struct {
	AgencyName     string `json:"agencyName" validate:"notblank,max=120"`
	Currency       string `json:"currency" validate:"omitempty,len=3,uppercase"`
	DefaultCountry string `json:"defaultCountry" validate:"omitempty,country"`
	Notifications  struct {
		EmailOnVisa    bool `json:"emailOnVisa"`
		DailyReminders bool `json:"dailyReminders"`
	} `json:"notifications"`
	Templates struct {
		WhatsappUpdate   string `json:"whatsappUpdate" validate:"max=1000"`
		EmailVisaGranted string `json:"emailVisaGranted" validate:"max=5000"`
	} `json:"templates"`
}

func (r settingsRequest) toSettings() agency.Settings {
	s := agency.Settings{
		AgencyName:     strings.TrimSpace(r.AgencyName),
		Currency:       r.Currency,
		DefaultCountry: student.Country(r.DefaultCountry),
	}
	s.Notifications.EmailOnVisa = r.Notifications.EmailOnVisa
	s.Notifications.DailyReminders = r.Notifications.DailyReminders
	s.Templates.WhatsappUpdate = r.Templates.WhatsappUpdate
	s.Templates.EmailVisaGranted = r.Templates.EmailVisaGranted
	return s
}
