package vat

import (
	"encoding/xml"
	"regexp"
	"time"
)

var trnPattern = regexp.MustCompile(`^\d{15}$`)

// ValidateFTAReturn re-parses a rendered export and checks the fields the
// tax authority rejects on. Callers run this against the exact bytes that
// will be delivered, so a serialization bug can never ship a malformed
// return.
func ValidateFTAReturn(data []byte) error {
	var doc FTAReturn
	if err := xml.Unmarshal(data, &doc); err != nil {
		return &ComplianceFormatError{Element: "VATReturn", Reason: "not well-formed: " + err.Error()}
	}
	if doc.Namespace != FTANamespace {
		return &ComplianceFormatError{Element: "VATReturn", Reason: "unexpected namespace " + doc.Namespace}
	}
	if !trnPattern.MatchString(doc.Header.TRN) {
		return &ComplianceFormatError{Element: "TRN", Reason: "must be exactly 15 digits"}
	}
	if doc.Header.BusinessName == "" {
		return &ComplianceFormatError{Element: "BusinessName", Reason: "is required"}
	}
	for element, value := range map[string]string{
		"TaxPeriodStart": doc.Header.PeriodStart,
		"TaxPeriodEnd":   doc.Header.PeriodEnd,
		"SubmissionDate": doc.Header.SubmissionDate,
	} {
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return &ComplianceFormatError{Element: element, Reason: "must be a YYYY-MM-DD date"}
		}
	}
	if doc.Body.NetVATDue == "" {
		return &ComplianceFormatError{Element: "NetVATDue", Reason: "is required"}
	}
	if doc.Declaration.DeclarantName == "" {
		return &ComplianceFormatError{Element: "DeclarantName", Reason: "is required"}
	}
	return nil
}
