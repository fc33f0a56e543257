package transport

import (
	"github.com/possync/possync/internal/status"
)

// Change is one record mutation on the wire, in either direction
type Change struct {
	RecordID  string           `json:"recordId"`
	Operation status.Operation `json:"operation"`
	Fields    map[string]any   `json:"fields,omitempty"`
	// Timestamp is the server-assigned change time; set on pulled changes only
	Timestamp string `json:"timestamp,omitempty"`
}

// PullResponse is the body of GET /sync/{table}/changes
type PullResponse struct {
	Changes    []Change `json:"changes"`
	ServerTime string   `json:"serverTime,omitempty"`
}

// PushRequest is the body of POST /sync/{table}/changes
type PushRequest struct {
	EmpresaID string   `json:"empresaId"`
	Changes   []Change `json:"changes"`
}

// Rejection is a record the server refused
type Rejection struct {
	RecordID string `json:"recordId"`
	Error    string `json:"error"`
}

// PushResult is the body returned by POST /sync/{table}/changes
type PushResult struct {
	Accepted   []string    `json:"accepted"`
	Rejected   []Rejection `json:"rejected,omitempty"`
	ServerTime string      `json:"serverTime,omitempty"`
}

// ConnectionStatus is the outcome of a connectivity probe
type ConnectionStatus struct {
	Connected  bool   `json:"connected"`
	Message    string `json:"message"`
	ServerTime string `json:"serverTime,omitempty"`
}

type statusResponse struct {
	Status     string `json:"status"`
	ServerTime string `json:"serverTime,omitempty"`
}
