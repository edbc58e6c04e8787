package models

// DmnDecision is a row of the DMN listing.
type DmnDecision struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Version   string `json:"version" yaml:"version"`
	Status    string `json:"status" yaml:"status"`
	StartDate string `json:"startDate" yaml:"startDate"`
	EndDate   string `json:"endDate" yaml:"endDate"`
	XML       string `json:"xml,omitempty" yaml:"xml,omitempty"`
}
