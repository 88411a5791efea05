package assistant

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mediledger/mediledger/internal/domain/identity"
	"github.com/mediledger/mediledger/internal/domain/records"
)

const systemPrompt = `You are a medical AI assistant that helps analyze patient medical records and provides general health recommendations.

IMPORTANT DISCLAIMERS:
- You are NOT a replacement for professional medical advice
- All recommendations should encourage consulting with healthcare providers
- Never provide specific diagnoses or emergency medical advice
- Focus on general wellness and follow-up suggestions

Your role is to:
1. Analyze medical records (diagnosis, treatment, medications, notes)
2. Provide simple, general recommendations for next steps
3. Suggest lifestyle improvements or follow-up care
4. Identify potential concerns that should be discussed with a doctor

Always be supportive, clear, and emphasize the importance of professional medical care.`

const dateLayout = "2006-01-02"

func orDefault(s *string, def string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return def
	}
	return *s
}

func ageAt(dob *time.Time, now time.Time) string {
	if dob == nil {
		return "Unknown"
	}
	years := now.Year() - dob.Year()
	if now.YearDay() < dob.YearDay() {
		years--
	}
	return strconv.Itoa(years)
}

func buildAnalysisPrompt(p *identity.Patient, recs []*records.Record, now time.Time) string {
	var b strings.Builder
	b.WriteString("Patient Information:\n")
	fmt.Fprintf(&b, "- Age: %s\n", ageAt(p.DateOfBirth, now))
	fmt.Fprintf(&b, "- Blood Type: %s\n", orDefault(p.BloodType, "Not specified"))
	fmt.Fprintf(&b, "- Known Allergies: %s\n", orDefault(p.Allergies, "None specified"))

	b.WriteString("\nRecent Medical Records (most recent first):\n")
	for i, r := range recs {
		fmt.Fprintf(&b, "\nRecord %d (%s):\n", i+1, r.CreatedAt.Format(dateLayout))
		fmt.Fprintf(&b, "- Title: %s\n", r.Title)
		fmt.Fprintf(&b, "- Diagnosis: %s\n", orDefault(r.Diagnosis, "Not specified"))
		fmt.Fprintf(&b, "- Treatment: %s\n", orDefault(r.Treatment, "Not specified"))
		fmt.Fprintf(&b, "- Medications: %s\n", orDefault(r.Medications, "None specified"))
		fmt.Fprintf(&b, "- Notes: %s\n", orDefault(r.Notes, "No additional notes"))
		fmt.Fprintf(&b, "- Attending Doctor: %s\n", orDefault(r.DoctorName, "Self-reported"))
	}

	b.WriteString(`
Based on this medical history, provide:
1. A brief summary of the patient's current health status
2. General recommendations for next steps
3. Lifestyle or follow-up suggestions
4. Any areas that might benefit from discussion with healthcare providers

Remember to emphasize that this is general guidance and professional medical consultation is always recommended.`)
	return b.String()
}

func buildQuestionPrompt(question, context string) string {
	return fmt.Sprintf(`Based on the patient's medical history and current health status, please answer this specific question:

Question: %s

Context: %s

Provide a helpful response while emphasizing the importance of consulting with healthcare professionals for specific medical advice.`, question, context)
}
