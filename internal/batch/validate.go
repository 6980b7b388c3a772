package batch

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator.Validate caches struct metadata and is safe
// for concurrent use.
var validate *validator.Validate

var operationIndexPattern = regexp.MustCompile(`operations\[(\d+)\]`)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// validateRequest checks request shape and assigns sequence indices. It does
// not look at references; the graph builder does that.
func validateRequest(req *Request, maxOperations int) error {
	if req == nil {
		return newError(ErrCodeInvalidRequest, nil, "request is required")
	}
	if maxOperations > 0 && len(req.Operations) > maxOperations {
		return newError(ErrCodeInvalidRequest, nil,
			"batch has %d operations; the limit is %d", len(req.Operations), maxOperations)
	}

	for i := range req.Operations {
		req.Operations[i].Index = i
	}

	if err := validate.Struct(req); err != nil {
		return translateValidation(err)
	}

	var ops []int
	var problems []string
	for _, op := range req.Operations {
		if op.TempID != "" && op.Kind != KindCreate {
			ops = append(ops, op.Index)
			problems = append(problems, fmt.Sprintf("operation %d: temp_id is only allowed on create operations", op.Index))
		}
	}
	if len(problems) > 0 {
		return newError(ErrCodeInvalidRequest, ops, "%s", strings.Join(problems, "; "))
	}
	return nil
}

// translateValidation turns validator output into one INVALID_REQUEST error
// naming each offending operation.
func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newError(ErrCodeInvalidRequest, nil, "invalid request: %v", err)
	}

	seen := make(map[int]bool)
	var ops []int
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Request.")
		if m := operationIndexPattern.FindStringSubmatch(field); m != nil {
			idx, _ := strconv.Atoi(m[1])
			if !seen[idx] {
				seen[idx] = true
				ops = append(ops, idx)
			}
		}
		problems = append(problems, describeFieldError(field, fe))
	}
	sort.Ints(ops)
	return newError(ErrCodeInvalidRequest, ops, "%s", strings.Join(problems, "; "))
}

func describeFieldError(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s needs at least %s item(s)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s exceeds %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fmt.Sprint(fe.Value()))
	case "printascii":
		return fmt.Sprintf("%s must be printable ASCII", field)
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
