// Package render produces printable HTML documents for generated notes.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

const DefaultDoctorName = "Dr. [Your Name]"

// Context is the document metadata printed around the note.
type Context struct {
	PatientName string
	PatientID   string
	VisitType   string
	DoctorName  string
	Now         time.Time
}

// Renderer holds the parsed note templates.
type Renderer struct {
	templates map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template)}
	for _, name := range []string{"soap", "prescription"} {
		t, err := template.New(name + ".html").ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// UnknownTypeError is returned for a note type without a template.
type UnknownTypeError struct {
	NoteType string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("Unknown note type: %s", e.NoteType)
}

type page struct {
	PatientName string
	PatientID   string
	VisitType   string
	DoctorName  string
	CurrentDate string
	CurrentTime string
	Note        interface{}
}

// Render fills the template for noteType with note. Missing or mistyped
// fields render as empty text.
func (r *Renderer) Render(noteType string, note map[string]interface{}, rc Context) ([]byte, error) {
	t, ok := r.templates[noteType]
	if !ok {
		return nil, &UnknownTypeError{NoteType: noteType}
	}
	now := rc.Now
	if now.IsZero() {
		now = time.Now()
	}
	doctor := rc.DoctorName
	if doctor == "" {
		doctor = DefaultDoctorName
	}
	p := page{
		PatientName: rc.PatientName,
		PatientID:   rc.PatientID,
		VisitType:   rc.VisitType,
		DoctorName:  doctor,
		CurrentDate: now.Format("January 02, 2006"),
		CurrentTime: now.Format("03:04 PM"),
	}
	if noteType == "soap" {
		p.Note = soapViewOf(note)
	} else {
		p.Note = prescriptionViewOf(note)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render %s: %w", noteType, err)
	}
	return buf.Bytes(), nil
}

type soapView struct {
	ConversationSummary string
	Subjective          string
	Objective           string
	Assessment          string
	Plan                string
	KeyInsights         string
	AdminTasks          []string
}

func soapViewOf(m map[string]interface{}) soapView {
	return soapView{
		ConversationSummary: text(m["conversation_summary"]),
		Subjective:          text(m["subjective"]),
		Objective:           text(m["objective"]),
		Assessment:          text(m["assessment"]),
		Plan:                text(m["plan"]),
		KeyInsights:         text(m["key_insights"]),
		AdminTasks:          texts(m["admin_tasks"]),
	}
}

type medicationView struct {
	Name         string
	Dose         string
	Route        string
	Frequency    string
	Duration     string
	Instructions string
}

type vitalView struct {
	Label string
	Value string
}

type prescriptionView struct {
	ChiefComplaint string
	Symptoms       []string
	Diagnosis      string
	VitalSigns     []vitalView
	Medications    []medicationView
	Instructions   string
	Warnings       []string
	FollowUp       string
}

var vitalOrder = []string{"blood_pressure", "heart_rate", "temperature", "respiratory_rate", "oxygen_saturation", "weight"}

func prescriptionViewOf(m map[string]interface{}) prescriptionView {
	v := prescriptionView{
		ChiefComplaint: text(m["chief_complaint"]),
		Symptoms:       texts(m["symptoms"]),
		Diagnosis:      text(m["diagnosis"]),
		Instructions:   text(m["instructions"]),
		Warnings:       texts(m["warnings"]),
		FollowUp:       text(m["follow_up"]),
	}

	if vitals, ok := m["vital_signs"].(map[string]interface{}); ok {
		seen := make(map[string]bool, len(vitals))
		for _, k := range vitalOrder {
			seen[k] = true
			if s := text(vitals[k]); s != "" {
				v.VitalSigns = append(v.VitalSigns, vitalView{Label: label(k), Value: s})
			}
		}
		var extra []string
		for k := range vitals {
			if !seen[k] {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range extra {
			if s := text(vitals[k]); s != "" {
				v.VitalSigns = append(v.VitalSigns, vitalView{Label: label(k), Value: s})
			}
		}
	}

	if meds, ok := m["medications"].([]interface{}); ok {
		for _, item := range meds {
			med, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			v.Medications = append(v.Medications, medicationView{
				Name:         text(med["name"]),
				Dose:         text(med["dose"]),
				Route:        text(med["route"]),
				Frequency:    text(med["frequency"]),
				Duration:     text(med["duration"]),
				Instructions: text(med["instructions"]),
			})
		}
	}
	return v
}

func label(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

func text(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool, float64, int:
		return fmt.Sprint(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func texts(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := text(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
