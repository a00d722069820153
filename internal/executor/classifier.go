package executor

import (
	"encoding/json"
	"strings"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

// Classifier is the default, allow-list-style submission result classifier:
// the presence of an order id is the only positive signal, and every
// ambiguous response defaults to failure. It sits behind the
// domain.ResultClassifier interface so a schema-based classifier can replace
// it without touching the pipeline.
type Classifier struct{}

// NewClassifier returns the heuristic response classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// clobResponse covers the fields the CLOB returns across its success and
// error shapes. Unknown fields are ignored.
type clobResponse struct {
	OrderID  string `json:"orderID"`
	OrderId  string `json:"orderId"`
	ID       string `json:"id"`
	Error    string `json:"error"`
	ErrorMsg string `json:"errorMsg"`
	Data     struct {
		OrderID string `json:"orderID"`
		OrderId string `json:"orderId"`
		Error   string `json:"error"`
	} `json:"data"`
}

// Classify turns a raw submission response (or transport error) into a
// verdict.
func (c *Classifier) Classify(raw []byte, err error) domain.SubmitVerdict {
	if err != nil {
		return domain.SubmitVerdict{OK: false, Reason: err.Error()}
	}
	if len(raw) == 0 {
		return domain.SubmitVerdict{OK: false, Reason: "empty response"}
	}

	// Known textual failure markers take priority over anything else in the
	// body; the CLOB sometimes wraps them in otherwise well-formed payloads.
	lower := strings.ToLower(string(raw))
	switch {
	case strings.Contains(lower, "not enough balance"), strings.Contains(lower, "allowance"):
		return domain.SubmitVerdict{OK: false, Reason: "not enough balance / allowance"}
	case strings.Contains(lower, `"status":400`), strings.Contains(lower, "bad request"):
		return domain.SubmitVerdict{OK: false, Reason: "http 400 bad request"}
	}

	var resp clobResponse
	if jsonErr := json.Unmarshal(raw, &resp); jsonErr != nil {
		return domain.SubmitVerdict{OK: false, Reason: "unparseable response"}
	}

	if reason := firstNonEmpty(resp.Error, resp.ErrorMsg, resp.Data.Error); reason != "" {
		return domain.SubmitVerdict{OK: false, Reason: reason}
	}

	if id := firstNonEmpty(resp.OrderID, resp.OrderId, resp.ID, resp.Data.OrderID, resp.Data.OrderId); id != "" {
		return domain.SubmitVerdict{OK: true, OrderID: id}
	}

	return domain.SubmitVerdict{OK: false, Reason: "no order id returned"}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
