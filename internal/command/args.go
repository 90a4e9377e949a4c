package command

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
)

const (
	DefaultTimeoutSeconds  = 10
	DefaultLookbackMinutes = 60
)

type HealthCheckArgs struct {
	Endpoints      []string `json:"endpoints" validate:"dive,notblank"`
	TimeoutSeconds int      `json:"timeout_seconds" validate:"min=1,max=60"`
}

type DiagnoseArgs struct {
	ServiceName     string `json:"service_name" validate:"notblank,max=100"`
	LookbackMinutes int    `json:"lookback_minutes" validate:"min=5,max=1440"`
}

type AlertArgs struct {
	ServiceName string   `json:"service_name" validate:"notblank,max=100"`
	Severity    string   `json:"severity" validate:"required"`
	Message     string   `json:"message" validate:"max=2000"`
	Channels    []string `json:"channels" validate:"omitempty,dive,notblank"`
}

type StatusReportArgs struct {
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Services  []string `json:"services" validate:"omitempty,dive,notblank"`
}

var (
	strict = jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		DisallowUnknownFields:  true,
	}.Froze()

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// decode fills dst from raw JSON over the defaults already in dst, then validates it.
func decode(raw []byte, dst any) error {
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := strict.Unmarshal(raw, dst); err != nil {
			return &domain.ValidationError{Reason: fmt.Sprintf("malformed arguments: %v", err)}
		}
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return &domain.ValidationError{Reason: err.Error()}
	}
	fe := ves[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	var reason string
	switch fe.Tag() {
	case "notblank":
		reason = "must not be blank"
	case "required":
		reason = "is required"
	case "min":
		reason = "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			reason = "must be at most " + fe.Param() + " characters"
		} else {
			reason = "must be at most " + fe.Param()
		}
	default:
		reason = "failed " + fe.Tag() + " check"
	}
	return &domain.ValidationError{Field: field, Reason: reason}
}

func parseHealthCheck(raw []byte) (HealthCheckArgs, error) {
	a := HealthCheckArgs{TimeoutSeconds: DefaultTimeoutSeconds}
	return a, decode(raw, &a)
}

func parseDiagnose(raw []byte) (DiagnoseArgs, error) {
	a := DiagnoseArgs{LookbackMinutes: DefaultLookbackMinutes}
	if err := decode(raw, &a); err != nil {
		return a, err
	}
	a.ServiceName = strings.TrimSpace(a.ServiceName)
	return a, nil
}

func parseAlert(raw []byte) (domain.AlertRequest, error) {
	var a AlertArgs
	if err := decode(raw, &a); err != nil {
		return domain.AlertRequest{}, err
	}
	sev, err := domain.ParseSeverity(a.Severity)
	if err != nil {
		return domain.AlertRequest{}, &domain.ValidationError{Field: "severity", Reason: "must be one of info, warning, critical"}
	}
	return domain.AlertRequest{
		ServiceName: strings.TrimSpace(a.ServiceName),
		Severity:    sev,
		Message:     a.Message,
		Channels:    a.Channels,
	}, nil
}

func parseStatusReport(raw []byte) (domain.ReportRequest, error) {
	var a StatusReportArgs
	if err := decode(raw, &a); err != nil {
		return domain.ReportRequest{}, err
	}
	var req domain.ReportRequest
	if a.StartDate != "" {
		t, err := ParseDate(a.StartDate)
		if err != nil {
			return req, &domain.ValidationError{Field: "start_date", Reason: err.Error()}
		}
		req.Start = &t
	}
	if a.EndDate != "" {
		t, err := ParseDate(a.EndDate)
		if err != nil {
			return req, &domain.ValidationError{Field: "end_date", Reason: err.Error()}
		}
		req.End = &t
	}
	if req.Start != nil && req.End != nil && req.End.Before(*req.Start) {
		return req, &domain.ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}
	req.Services = a.Services
	return req, nil
}

// ParseDate accepts an ISO date or an RFC3339 timestamp. Bare dates are UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", s)
}
