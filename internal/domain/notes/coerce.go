package notes

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// soapTextFields are the SOAP fields the model sometimes returns as nested
// structures despite the prompt.
var soapTextFields = []string{"subjective", "objective", "assessment", "plan"}

// Coerce normalises a freshly extracted object before validation. It never
// fails, never mutates raw, and Coerce(Coerce(x)) == Coerce(x).
//
// SOAP: nested values in the four narrative fields are replaced by their
// canonical JSON text, and patient_id, doctor_id and visit_type are filled in
// from rc when absent. Prescription: patient_name and patient_id always come
// from rc.
func Coerce(t NoteType, raw map[string]interface{}, rc RequestContext) map[string]interface{} {
	out := make(map[string]interface{}, len(raw)+3)
	for k, v := range raw {
		out[k] = v
	}

	switch t {
	case NoteTypeSOAP:
		for _, f := range soapTextFields {
			if v, ok := out[f]; ok && isNested(v) {
				out[f] = canonicalJSON(v)
			}
		}
		backfill(out, "patient_id", rc.PatientID)
		backfill(out, "doctor_id", rc.DoctorID)
		backfill(out, "visit_type", string(rc.VisitType))
	case NoteTypePrescription:
		out["patient_name"] = rc.PatientName
		out["patient_id"] = rc.PatientID
	}
	return out
}

func backfill(m map[string]interface{}, key, value string) {
	if v, ok := m[key]; !ok || v == nil {
		m[key] = value
	}
}

func isNested(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return true
	}
	return false
}

// canonicalJSON renders v with sorted object keys and no insignificant
// whitespace. encoding/json already sorts map keys.
func canonicalJSON(v interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// textOf renders a loosely typed value as display text. Nested values are
// rendered as canonical JSON and nil as "".
func textOf(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool, float64, int, int64:
		return fmt.Sprint(x)
	default:
		return canonicalJSON(x)
	}
}
