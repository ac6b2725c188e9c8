package domain

// Contract is a carrier appointment row owned by an IMO (fein).
type Contract struct {
	ID             string `json:"id"`
	FEIN           string `json:"fein"`
	ContractNumber string `json:"contractNumber"`
	NPN            string `json:"npn"`
	CarrierID      string `json:"carrierId"`
	ContractType   string `json:"contractType"`
	ContractValue  string `json:"contractValue"`
	IssueDate      string `json:"issueDate"`
	AgentFirstName string `json:"agentFirstName"`
	AgentLastName  string `json:"agentLastName"`
}

// ReassignContractsRequest moves every contract of one agent at one carrier
// from the releasing IMO to the receiving IMO.
type ReassignContractsRequest struct {
	CarrierID     string `json:"carrierId"`
	NPN           string `json:"npn"`
	ReceivingFEIN string `json:"receivingFein"`
	ReleasingFEIN string `json:"releasingFein"`
}

// MissingFields lists empty required fields in wire order.
func (r ReassignContractsRequest) MissingFields() []string {
	var missing []string
	if r.CarrierID == "" {
		missing = append(missing, "carrierId")
	}
	if r.NPN == "" {
		missing = append(missing, "npn")
	}
	if r.ReceivingFEIN == "" {
		missing = append(missing, "receivingFein")
	}
	if r.ReleasingFEIN == "" {
		missing = append(missing, "releasingFein")
	}
	return missing
}
