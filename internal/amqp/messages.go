package amqp

import (
	"encoding/json"
	"time"
)

// Message types, carried in the AMQP type property.
const (
	TypeDocumentPosted  = "document.posted"
	TypeEmployeeCreated = "employee.created"
)

// DocumentPostedMessage announces a saved transaction form. The worker
// loads the full document from storage by ID.
type DocumentPostedMessage struct {
	CompanyID  string    `json:"company_id"`
	DocumentID string    `json:"document_id"`
	Kind       string    `json:"kind"`
	Number     string    `json:"number"`
	TotalCents int64     `json:"total_cents"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewDocumentPostedMessage stamps a posted message with the current time.
func NewDocumentPostedMessage(companyID, documentID, kind, number string, totalCents int64) *DocumentPostedMessage {
	return &DocumentPostedMessage{
		CompanyID:  companyID,
		DocumentID: documentID,
		Kind:       kind,
		Number:     number,
		TotalCents: totalCents,
		Timestamp:  time.Now(),
	}
}

func (m *DocumentPostedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DocumentPostedMessageFromJSON(data []byte) (*DocumentPostedMessage, error) {
	var msg DocumentPostedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EmployeeCreatedMessage announces a submitted employee setup.
type EmployeeCreatedMessage struct {
	CompanyID  string    `json:"company_id"`
	EmployeeID string    `json:"employee_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewEmployeeCreatedMessage(companyID, employeeID string) *EmployeeCreatedMessage {
	return &EmployeeCreatedMessage{
		CompanyID:  companyID,
		EmployeeID: employeeID,
		Timestamp:  time.Now(),
	}
}

func (m *EmployeeCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EmployeeCreatedMessageFromJSON(data []byte) (*EmployeeCreatedMessage, error) {
	var msg EmployeeCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
