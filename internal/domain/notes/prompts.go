package notes

import (
	"fmt"
	"strings"
)

const guardrailPrompt = `You are a clinical documentation assistant for transcription ONLY.

CRITICAL ANTI-HALLUCINATION RULES:

1. EXACT TRANSCRIPTION ONLY: Document ONLY what was explicitly stated in the conversation. Do NOT:
   - Infer or assume any medical information
   - Add standard medical advice not mentioned
   - Suggest diagnoses, treatments, or medications not discussed
   - Fill in missing details with "typical" or "common" information

2. MISSING INFORMATION PROTOCOL:
   - If a field has NO information in the transcript, leave it as empty string "" or empty list []
   - Do NOT use placeholder text like "Not specified", "To be determined"

3. VERBATIM EXTRACTION:
   - Copy medical terms, medication names, and dosages EXACTLY as stated
   - Do NOT standardize, correct, or modify medical terminology

4. OUTPUT FORMAT: You MUST respond with valid JSON only. No explanations, no markdown, just the JSON object.

Your role: Extract and structure what was said. Nothing more, nothing less.`

const soapSchemaPrompt = `Generate a SOAP note. Respond with ONLY this JSON structure:

{
  "conversation_summary": "Brief summary as a single text string",
  "subjective": "Patient-reported information as a single text string",
  "objective": "Clinical findings as a single text string (NOT a dictionary)",
  "assessment": "Diagnosis as a single text string",
  "plan": "Treatment plan as a single text string (NOT a list)",
  "key_insights": "Critical insights as a single text string",
  "admin_tasks": ["task1", "task2"]
}

CRITICAL RULES:
- subjective, objective, assessment, plan, key_insights MUST be text strings
- Do NOT use nested objects or dictionaries for these fields
- Only admin_tasks should be an array
- All other fields are plain text strings

Example of CORRECT format:
{
  "subjective": "Patient has headache for 2 days",
  "objective": "BP 120/80, HR 72, no fever",
  "assessment": "Tension headache",
  "plan": "Ibuprofen 400mg as needed, rest, follow up in 1 week"
}

Example of WRONG format (do NOT do this):
{
  "objective": {"vital_signs": {"bp": "120/80"}},
  "plan": ["Ibuprofen", "Rest"]
}

Remember: Use simple text strings, not nested structures.`

const prescriptionSchemaTemplate = `Generate a detailed medical prescription based on the consultation transcript. %s

Respond with ONLY this JSON structure:

{
  "chief_complaint": "Primary reason for visit (single text string)",
  "symptoms": ["symptom1", "symptom2", "symptom3"],
  "diagnosis": "Primary medical diagnosis based on consultation",
  "vital_signs": {
    "blood_pressure": "e.g., 120/80 mmHg",
    "heart_rate": "e.g., 72 bpm",
    "temperature": "e.g., 98.6F or 37C",
    "respiratory_rate": "e.g., 16 breaths/min",
    "oxygen_saturation": "e.g., 98%%",
    "weight": "e.g., 70 kg"
  },
  "medications": [
    {
      "name": "Full medication name (brand or generic)",
      "dose": "Specific dosage with unit (e.g., 500mg, 10ml)",
      "route": "Administration route (Oral, IV, Topical, etc.)",
      "frequency": "How often (e.g., Twice daily, Every 8 hours, As needed)",
      "duration": "Treatment duration (e.g., 7 days, 2 weeks, Until symptoms resolve)",
      "instructions": "Detailed patient instructions (e.g., Take with food, Avoid alcohol, Take before bedtime)"
    }
  ],
  "instructions": "General patient care instructions and lifestyle recommendations",
  "warnings": [
    "Important side effects to watch for",
    "When to seek immediate medical attention",
    "Drug interactions or contraindications"
  ],
  "follow_up": "Follow-up timeline and what to monitor (e.g., Return in 2 weeks for re-evaluation)"
}

CRITICAL EXTRACTION RULES:
1. ONLY extract information EXPLICITLY mentioned in the transcript
2. For medications: Include ONLY drugs the doctor specifically prescribed
3. If vital signs weren't mentioned, use empty strings: ""
4. If no warnings discussed, use empty list: []
5. Dosage must include units (mg, ml, tablets, etc.)
6. Frequency must be clear (times per day, specific intervals)
7. Duration must specify time period (days, weeks, until condition improves)
8. Instructions should be patient-friendly and actionable

QUALITY STANDARDS FOR MEDICATIONS:
- Name: Use exact drug name mentioned by doctor
- Dose: Must include measurement unit (500mg, NOT just "500")
- Route: Standard medical terms (Oral, Intravenous, Subcutaneous, Topical, Inhalation)
- Frequency: Be specific (Twice daily, Every 6 hours, Before meals, At bedtime)
- Duration: Clear timeframe (7 days, 2 weeks, 1 month, As needed for up to 14 days)
- Instructions: Practical guidance (Take with full glass of water, Avoid dairy products, May cause drowsiness)

If no medications were prescribed, use empty array: []
If information is missing, use empty strings "" or empty arrays [], DO NOT invent or assume.`

const retryInstruction = "\n\nIMPORTANT: Respond with valid JSON only."

func schemaPrompt(t NoteType, soapContext map[string]interface{}) string {
	if t == NoteTypeSOAP {
		return soapSchemaPrompt
	}
	return fmt.Sprintf(prescriptionSchemaTemplate, soapContextBlock(soapContext))
}

func soapContextBlock(ctx map[string]interface{}) string {
	if len(ctx) == 0 {
		return ""
	}
	return fmt.Sprintf(`
CLINICAL CONTEXT FROM SOAP NOTE:
- Assessment: %s
- Subjective: %s
- Plan: %s
`, textOf(ctx["assessment"]), textOf(ctx["subjective"]), textOf(ctx["plan"]))
}

func buildUserPrompt(req GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nPatient: %s (ID: %s)\n", req.Context.PatientName, req.Context.PatientID)
	fmt.Fprintf(&b, "Visit Type: %s\n\n", req.Context.VisitType)
	fmt.Fprintf(&b, "Transcript:\n%s\n\n", req.Transcript)
	b.WriteString(schemaPrompt(req.NoteType, req.SOAPContext))
	return b.String()
}
