package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/ecashpulse/pulse/internal/cashaddr"
	"github.com/ecashpulse/pulse/internal/payment"
	"github.com/ecashpulse/pulse/internal/platform/tests"
	"github.com/ecashpulse/pulse/internal/pulse"
)

type MockResponseWriter struct {
	header     http.Header
	StatusCode int
	buffer     bytes.Buffer
}

func (rw *MockResponseWriter) Header() http.Header {
	return rw.header
}

func (rw *MockResponseWriter) Write(b []byte) (int, error) {
	return rw.buffer.Write(b)
}

func (rw *MockResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
}

var (
	senderScript  = tests.P2PKHScript(0xbb)
	escrowScript  = tests.P2PKHScript(0xaa)
	senderAddress = "ecash:qzamhwamhwamhwamhwamhwamhwamhwamhv6nwdyqf0"
	ownerAddress  = "ecash:qqg3zyg3zyg3zyg3zyg3zyg3zyg3zyg3zyquz9y96w"
)

// setup returns a migrated test environment with a settler and authenticator reading the mock
// indexer.
func setup(t *testing.T) (*tests.Test, *pulse.Settler, *pulse.Authenticator) {
	test := tests.New()
	t.Cleanup(test.TearDown)

	dbConn := test.MasterDB.Copy()
	defer dbConn.Close()

	if err := pulse.Migrate(tests.Context(), dbConn); err != nil {
		t.Fatalf("Failed to migrate : %s", err)
	}

	escrow, err := cashaddr.AddressToScript(test.Config.Pulse.EscrowAddress)
	if err != nil {
		t.Fatalf("Failed to convert escrow : %s", err)
	}

	tolerance, err := test.Config.Pulse.ToleranceRate()
	if err != nil {
		t.Fatalf("Failed to parse tolerance : %s", err)
	}
	feeRate, err := test.Config.Pulse.FeeRate()
	if err != nil {
		t.Fatalf("Failed to parse fee rate : %s", err)
	}

	verifier := payment.NewVerifier(test.Indexer, payment.Config{
		Tolerance: tolerance,
		Policy:    payment.MatchSum,
	})

	settler := &pulse.Settler{
		Verifier: verifier,
		Ledger: pulse.Ledger{
			Tolerance: tolerance,
			FeeRate:   feeRate,
		},
		EscrowScript: escrow,
	}

	authenticator := &pulse.Authenticator{
		Verifier:        verifier,
		EscrowScript:    escrow,
		AddressPrefix:   test.Config.Pulse.AddressPrefix,
		MinimumAmount:   test.Config.Pulse.AuthMinimum,
		MaxAge:          test.Config.Pulse.AuthMaxAge,
		SessionDuration: time.Hour,
	}

	return test, settler, authenticator
}

// newRequest returns a request with v as its JSON body.
func newRequest(t *testing.T, method, url string, v interface{}) *http.Request {
	var body bytes.Buffer
	if v != nil {
		if err := json.NewEncoder(&body).Encode(v); err != nil {
			t.Fatalf("Failed to serialize request data : %s", err)
		}
	}

	request, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("Failed to create request : %s", err)
	}
	return request
}

func newResponse() *MockResponseWriter {
	return &MockResponseWriter{
		header: http.Header{},
	}
}

func decode(t *testing.T, response *MockResponseWriter, v interface{}) {
	if err := json.Unmarshal(response.buffer.Bytes(), v); err != nil {
		t.Fatalf("Failed to unmarshal response : %s : %s", err, response.buffer.String())
	}
}
