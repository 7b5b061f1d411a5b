package notes

import (
	"encoding/json"
	"fmt"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/apperr"
)

// SchemaValidationError reports the first field that does not fit the
// note schema.
type SchemaValidationError struct {
	Field  string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s %s", e.Field, e.Reason)
}

func (e *SchemaValidationError) Kind() apperr.Kind { return apperr.KindSchemaValidation }

func schemaErr(field, reason string) *SchemaValidationError {
	return &SchemaValidationError{Field: field, Reason: reason}
}

var soapRequiredText = []string{
	"conversation_summary",
	"subjective",
	"objective",
	"assessment",
	"plan",
	"key_insights",
}

// Validate converts a coerced object into the strict variant for t.
func Validate(t NoteType, obj map[string]interface{}) (*Note, error) {
	switch t {
	case NoteTypeSOAP:
		n, err := validateSOAP(obj)
		if err != nil {
			return nil, err
		}
		return &Note{Type: t, SOAP: n}, nil
	case NoteTypePrescription:
		n, err := validatePrescription(obj)
		if err != nil {
			return nil, err
		}
		return &Note{Type: t, Prescription: n}, nil
	default:
		return nil, apperr.InvalidInput("Note type must be 'soap' or 'prescription'")
	}
}

func validateSOAP(obj map[string]interface{}) (*SOAPNote, error) {
	text := make(map[string]string, len(soapRequiredText))
	for _, f := range soapRequiredText {
		v, ok := obj[f]
		if !ok || v == nil {
			return nil, schemaErr(f, "is required")
		}
		s, ok := v.(string)
		if !ok {
			return nil, schemaErr(f, "must be a string")
		}
		text[f] = s
	}
	tasks, err := stringList(obj, "admin_tasks")
	if err != nil {
		return nil, err
	}
	return &SOAPNote{
		ConversationSummary: text["conversation_summary"],
		Subjective:          text["subjective"],
		Objective:           text["objective"],
		Assessment:          text["assessment"],
		Plan:                text["plan"],
		KeyInsights:         text["key_insights"],
		AdminTasks:          tasks,
	}, nil
}

func validatePrescription(obj map[string]interface{}) (*PrescriptionNote, error) {
	var err error
	p := &PrescriptionNote{}

	if p.PatientName, err = optionalString(obj, "patient_name"); err != nil {
		return nil, err
	}
	if p.PatientID, err = optionalString(obj, "patient_id"); err != nil {
		return nil, err
	}
	if p.ChiefComplaint, err = optionalString(obj, "chief_complaint"); err != nil {
		return nil, err
	}
	if p.Diagnosis, err = optionalString(obj, "diagnosis"); err != nil {
		return nil, err
	}
	if p.Instructions, err = optionalString(obj, "instructions"); err != nil {
		return nil, err
	}
	if p.FollowUp, err = optionalString(obj, "follow_up"); err != nil {
		return nil, err
	}
	if p.Symptoms, err = stringList(obj, "symptoms"); err != nil {
		return nil, err
	}
	if p.Warnings, err = stringList(obj, "warnings"); err != nil {
		return nil, err
	}
	if p.VitalSigns, err = vitalSigns(obj); err != nil {
		return nil, err
	}
	if p.Medications, err = medications(obj); err != nil {
		return nil, err
	}
	return p, nil
}

func optionalString(obj map[string]interface{}, field string) (string, error) {
	v, ok := obj[field]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", schemaErr(field, "must be a string")
	}
	return s, nil
}

func stringList(obj map[string]interface{}, field string) ([]string, error) {
	v, ok := obj[field]
	if !ok || v == nil {
		return []string{}, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, schemaErr(field, "must be a list of strings")
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, schemaErr(fmt.Sprintf("%s[%d]", field, i), "must be a string")
		}
		out = append(out, s)
	}
	return out, nil
}

func vitalSigns(obj map[string]interface{}) (map[string]string, error) {
	v, ok := obj["vital_signs"]
	if !ok || v == nil {
		return map[string]string{}, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, schemaErr("vital_signs", "must be an object")
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		switch x := val.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = x
		case json.Number, bool, float64:
			out[k] = textOf(x)
		default:
			return nil, schemaErr("vital_signs."+k, "must be text")
		}
	}
	return out, nil
}

var medicationRequired = []string{"name", "dose", "route", "frequency", "duration"}

func medications(obj map[string]interface{}) ([]Medication, error) {
	v, ok := obj["medications"]
	if !ok || v == nil {
		return nil, schemaErr("medications", "is required")
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, schemaErr("medications", "must be a list")
	}
	out := make([]Medication, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, schemaErr(fmt.Sprintf("medications[%d]", i), "must be an object")
		}
		vals := make(map[string]string, len(medicationRequired))
		for _, f := range medicationRequired {
			s, ok := m[f].(string)
			if !ok {
				return nil, schemaErr(fmt.Sprintf("medications[%d].%s", i, f), "is required")
			}
			vals[f] = s
		}
		instr, err := optionalString(m, "instructions")
		if err != nil {
			return nil, schemaErr(fmt.Sprintf("medications[%d].instructions", i), "must be a string")
		}
		out = append(out, Medication{
			Name:         vals["name"],
			Dose:         vals["dose"],
			Route:        vals["route"],
			Frequency:    vals["frequency"],
			Duration:     vals["duration"],
			Instructions: instr,
		})
	}
	return out, nil
}
