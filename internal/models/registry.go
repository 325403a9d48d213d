// Package models declares the Healthy City entities and validates records
// against them before they reach a store.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	EntityTeamMember       = "TeamMember"
	EntitySettings         = "Settings"
	EntityCommittee        = "Committee"
	EntityTask             = "Task"
	EntityNotification     = "Notification"
	EntityAxis             = "Axis"
	EntityStandard         = "Standard"
	EntityEvidence         = "Evidence"
	EntityKpiEvidence      = "KpiEvidence"
	EntityInitiative       = "Initiative"
	EntityInitiativeKPI    = "InitiativeKPI"
	EntityBudget           = "Budget"
	EntityBudgetAllocation = "BudgetAllocation"
	EntityTransaction      = "Transaction"
	EntityFileUpload       = "FileUpload"
	EntityFamilySurvey     = "FamilySurvey"
	EntityUserPreferences  = "UserPreferences"
	EntityVerificationCode = "VerificationCode"
)

// ErrValidation wraps every shape error reported by Validate.
var ErrValidation = errors.New("validation failed")

// ErrUnknownEntity is returned for entity names outside the registry.
var ErrUnknownEntity = errors.New("unknown entity")

var registry = map[string]func() any{
	EntityTeamMember:       func() any { return &TeamMember{} },
	EntitySettings:         func() any { return &Settings{} },
	EntityCommittee:        func() any { return &Committee{} },
	EntityTask:             func() any { return &Task{} },
	EntityNotification:     func() any { return &Notification{} },
	EntityAxis:             func() any { return &Axis{} },
	EntityStandard:         func() any { return &Standard{} },
	EntityEvidence:         func() any { return &Evidence{} },
	EntityKpiEvidence:      func() any { return &KpiEvidence{} },
	EntityInitiative:       func() any { return &Initiative{} },
	EntityInitiativeKPI:    func() any { return &InitiativeKPI{} },
	EntityBudget:           func() any { return &Budget{} },
	EntityBudgetAllocation: func() any { return &BudgetAllocation{} },
	EntityTransaction:      func() any { return &Transaction{} },
	EntityFileUpload:       func() any { return &FileUpload{} },
	EntityFamilySurvey:     func() any { return &FamilySurvey{} },
	EntityUserPreferences:  func() any { return &UserPreferences{} },
	EntityVerificationCode: func() any { return &VerificationCode{} },
}

// internal entities are never exposed through the generic entity API.
var internal = map[string]bool{
	EntityVerificationCode: true,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Known reports whether name is a registered entity.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// Internal reports whether the entity is reserved for server-side flows.
func Internal(name string) bool {
	return internal[name]
}

// Names returns every registered entity name in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that record fits the declared shape of entity.
// Unknown fields are rejected.
func Validate(entity string, record map[string]any) error {
	newFn, ok := registry[entity]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	target := newFn()
	if err := Decode(record, target); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrValidation, describe(verrs))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Decode converts a loose record into a typed entity struct.
func Decode(record map[string]any, target any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func describe(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not a valid %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
