// Package query translates the table surface's filter entries into the
// flat parameter set understood by the history service.
package query

import (
	"strconv"

	"github.com/dns-log-viewer/backend/internal/models"
)

// Params is the flat parameter record sent to the history service.
// Absence of a key means the dimension is unconstrained. Keys carry
// primitive values (string, int, int64 or bool); consumers must treat
// the map as unordered.
type Params map[string]interface{}

// Translate maps an ordered filter list to history query parameters.
// Pure and total: it never fails, unknown ids are skipped, and a later
// entry for the same id overrides an earlier one.
func Translate(filters []models.FilterEntry) Params {
	params := make(Params)
	for _, f := range filters {
		translateEntry(params, f)
	}
	return params
}

func translateEntry(params Params, f models.FilterEntry) {
	switch f.ID {
	case models.FilterTime:
		// Inclusive Unix-second bounds, floored, UTC.
		params["from"] = f.Value.Start.UTC().Unix()
		params["until"] = f.Value.End.UTC().Unix()

	case models.FilterQueryType:
		if f.Value.Text == models.FilterAll {
			delete(params, "query_type")
			return
		}
		// Widget indices are 0-based, service codes are 1-based.
		idx, err := strconv.Atoi(f.Value.Text)
		if err != nil {
			// Malformed index: treat like an absent filter.
			delete(params, "query_type")
			return
		}
		params["query_type"] = idx + 1

	case models.FilterDomain:
		setOrClear(params, "domain", f.Value.Text, "")

	case models.FilterClient:
		setOrClear(params, "client", f.Value.Text, "")

	case models.FilterStatus:
		delete(params, "blocked")
		delete(params, "status")
		switch f.Value.Text {
		case models.FilterAll:
		case "allowed":
			params["blocked"] = false
		case "blocked":
			params["blocked"] = true
		default:
			// Raw status code passthrough.
			params["status"] = f.Value.Text
		}

	case models.FilterDNSSEC:
		setOrClear(params, "dnssec", f.Value.Text, models.FilterAll)

	case models.FilterReply:
		setOrClear(params, "reply", f.Value.Text, models.FilterAll)

	default:
		// Unknown filter ids are ignored so newer frontends keep working.
	}
}

func setOrClear(params Params, key, value, sentinel string) {
	if value == sentinel {
		delete(params, key)
		return
	}
	params[key] = value
}
