// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package document

import "fmt"

// MaxPromptRunes caps the document text sent to the classifier.
const MaxPromptRunes = 3000

// Prompt languages.
const (
	PromptEnglish = "en"
	PromptGerman  = "de"
)

const responseSchema = `{
    "category": "string (one of: loan_applications, account_inquiries, complaints, kyc_updates, general_correspondence)",
    "urgency": "string (high, medium, low)",
    "metadata": {
        "customer_id": "string or null",
        "account_number": "string or null",
        "email": "string or null",
        "phone": "string or null",
        "subject": "string or null"
    },
    "extracted_info": {
        "required_action": "string",
        "key_points": ["list of strings"],
        "mentioned_amounts": "string or null",
        "reference_numbers": ["list of strings"],
        "fraud_risk": "boolean"
    },
    "confidence_score": "float between 0.0 and 1.0"
}`

const englishSystemPrompt = `You are an AI assistant specialized in processing German banking documents.
Analyze the document and return structured JSON with:

1. Category classification (one of: loan_applications, account_inquiries, complaints, kyc_updates, general_correspondence)
2. Urgency level (high, medium, low)
3. Customer information (ID, account number, contact details)
4. Required actions and key points
5. A confidence score between 0 and 1

Consider German and English text. Look for keywords like:
- Kredit/Darlehen (loan)
- Konto (account)
- Beschwerde (complaint)
- Legitimation/KYC

Set "fraud_risk" to true when the text reports fraud, phishing or unauthorised transactions.
If the document fits no category clearly, use general_correspondence with a confidence of 0.6 to 0.75.

Return ONLY valid JSON in this format:
` + responseSchema

const germanSystemPrompt = `Du bist ein KI-Assistent, der auf die Verarbeitung deutscher Bankdokumente spezialisiert ist.
Analysiere das Dokument und liefere strukturierte JSON-Ausgabe. Freitextfelder bitte auf Deutsch.

KATEGORIEN (wähle genau EINE):
1. loan_applications: Kredit, Darlehen, Finanzierung, Kreditbetrag, Laufzeit
2. account_inquiries: Kontostatus, Kontoauszüge, Gebühren, Kontoeröffnung oder -schließung
3. complaints: Beschwerde, Reklamation, Unzufriedenheit, Forderung nach Entschädigung
4. kyc_updates: Legitimation, Verifizierung, Identifikation, Datenaktualisierung
5. general_correspondence: alles andere; bei Unsicherheit mit Vertrauen 0.6 bis 0.75

DRINGLICHKEIT:
- high: "sofort", "dringend", "eilig", "umgehend", Beschwerden, Betrugshinweise
- medium: zeitkritische Anfragen, KYC-Fristen
- low: Routineanfragen ohne Zeitdruck

EXTRAKTION:
- Kundennummer: "Kundennummer", "KD-", "Kunde Nr"
- Konto: "Kontonummer", "Konto-Nr", IBAN
- Kontakt: E-Mail, Telefonnummern mit +49 oder 0
- Betreff: erster Satz oder Dokumenttitel (max. 100 Zeichen)
- "fraud_risk": true bei Betrug, Phishing oder unautorisierten Buchungen

Gib NUR das JSON-Objekt in diesem Format zurück:
` + responseSchema

// SystemPrompt returns the classification system prompt for lang. Unknown
// languages get the English prompt.
func SystemPrompt(lang string) string {
	if lang == PromptGerman {
		return germanSystemPrompt
	}
	return englishSystemPrompt
}

// ClassificationPrompt builds the user prompt around text, truncated to
// MaxPromptRunes.
func ClassificationPrompt(text string) string {
	return fmt.Sprintf(`Analyze this banking document and classify it according to the instructions:

DOCUMENT TEXT:
%s

Provide the structured JSON response.`, Truncate(text, MaxPromptRunes))
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
