package executor

import (
	"errors"
	"testing"
)

func TestClassify_OrderIDMeansSuccess(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name string
		raw  string
		id   string
	}{
		{"orderID", `{"orderID":"abc"}`, "abc"},
		{"orderId", `{"orderId":"def"}`, "def"},
		{"bare id", `{"id":"xyz"}`, "xyz"},
		{"nested data", `{"data":{"orderID":"nested"}}`, "nested"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := c.Classify([]byte(tc.raw), nil)
			if !v.OK {
				t.Fatalf("verdict not OK: %+v", v)
			}
			if v.OrderID != tc.id {
				t.Errorf("orderID = %q, want %q", v.OrderID, tc.id)
			}
		})
	}
}

func TestClassify_Failures(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name   string
		raw    string
		err    error
		reason string
	}{
		{"transport error", "", errors.New("dial tcp: timeout"), "dial tcp: timeout"},
		{"empty body", "", nil, "empty response"},
		{"balance marker", `{"error":"not enough balance"}`, nil, "not enough balance / allowance"},
		{"allowance marker", `{"message":"usdc allowance too low"}`, nil, "not enough balance / allowance"},
		{"http 400", `{"status":400,"message":"Bad Request"}`, nil, "http 400 bad request"},
		{"explicit error field", `{"error":"market closed"}`, nil, "market closed"},
		{"nested error field", `{"data":{"error":"market paused"}}`, nil, "market paused"},
		{"no order id", `{"success":true}`, nil, "no order id returned"},
		{"garbage", `<html>boom</html>`, nil, "unparseable response"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := c.Classify([]byte(tc.raw), tc.err)
			if v.OK {
				t.Fatalf("verdict OK for %q, want failure", tc.raw)
			}
			if v.Reason != tc.reason {
				t.Errorf("reason = %q, want %q", v.Reason, tc.reason)
			}
		})
	}
}

func TestClassify_ErrorFieldBeatsOrderID(t *testing.T) {
	// A body carrying both an error and an id is ambiguous; ambiguity is
	// always failure.
	v := NewClassifier().Classify([]byte(`{"orderID":"abc","error":"rejected"}`), nil)
	if v.OK {
		t.Fatal("ambiguous response classified as success")
	}
	if v.Reason != "rejected" {
		t.Errorf("reason = %q, want %q", v.Reason, "rejected")
	}
}
