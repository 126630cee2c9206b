package reference

// Citation is a directed edge from a paper to a work it cites.
type Citation struct {
	SubjectID int    `json:"drug_id"`
	Paper     string `json:"paper"` // DOI of the citing paper
	Ref       string `json:"ref"`   // DOI of the cited work
}
