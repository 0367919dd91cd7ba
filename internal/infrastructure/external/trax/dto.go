package trax

// ══════════════════════════════════════════════════════════════════════════════
// DATA TRANSFER OBJECTS
// Wire shapes of the TRAX API responses. Field names follow the legacy API.
// ══════════════════════════════════════════════════════════════════════════════

// registryEntryDTO is one row of the optional program registry.
type registryEntryDTO struct {
	ID                    string `json:"optionalProgramID"`
	GraduationProgramCode string `json:"graduationProgramCode"`
	OptProgramCode        string `json:"optProgramCode"`
	Description           string `json:"description"`
}

// frenchEvidenceDTO reports whether a student has qualifying French courses.
type frenchEvidenceDTO struct {
	Pen         string `json:"pen"`
	HasEvidence bool   `json:"hasFrenchCourses"`
	CourseCount int    `json:"courseCount"`
}

// demographicsDTO is the TRAX demographic record.
type demographicsDTO struct {
	Pen              string `json:"pen"`
	LegalFirstName   string `json:"legalFirstName"`
	LegalMiddleNames string `json:"legalMiddleNames"`
	LegalLastName    string `json:"legalLastName"`
	DOB              string `json:"dob"` // yyyy-MM-dd
}
