// Package models contains domain types for the DNS Log Viewer.
package models

// LogRecord represents a single historical DNS query as delivered by the
// history service. Records are immutable once received and are kept in
// server order (newest first) — the backend never re-sorts them.
type LogRecord struct {
	Timestamp int64  `json:"timestamp" msgpack:"timestamp"` // Unix seconds
	QueryType int    `json:"type" msgpack:"type"`
	Domain    string `json:"domain" msgpack:"domain"`
	Client    string `json:"client" msgpack:"client"`
	Status    int    `json:"status" msgpack:"status"`
	DNSSEC    int    `json:"dnssec" msgpack:"dnssec"`
	Reply     int    `json:"reply" msgpack:"reply"`
	ReplyTime int64  `json:"replyTime" msgpack:"replyTime"` // 0.1 ms units
}

// Code tables shared with the history service. The numeric meanings are a
// versioned contract with the upstream resolver: changing them server-side
// requires a synchronized change here.

// QueryTypeLabels maps 1-based query type codes to display labels.
// The table surface sends 0-based widget indices; the translator converts.
var QueryTypeLabels = []string{
	"A", "AAAA", "ANY", "SRV", "SOA", "PTR", "TXT",
}

// StatusLabels maps status codes to display labels.
var StatusLabels = []string{
	"Unknown",
	"Blocked (gravity)",
	"Allowed (forwarded)",
	"Allowed (cached)",
	"Blocked (regex)",
	"Blocked (exact)",
	"Blocked (external)",
}

// DNSSECLabels maps DNSSEC validation codes to display labels.
var DNSSECLabels = []string{
	"N/A", "Secure", "Insecure", "Bogus", "Abandoned", "Unknown",
}

// ReplyLabels maps reply type codes to display labels.
var ReplyLabels = []string{
	"N/A", "NODATA", "NXDOMAIN", "CNAME", "IP", "DOMAIN", "RRNAME",
}

// BlockedStatus reports whether a status code denotes a blocked query.
// Used by the table surface to decide which row action (allow/deny) applies.
func BlockedStatus(status int) bool {
	switch status {
	case 1, 4, 5, 6:
		return true
	default:
		return false
	}
}
