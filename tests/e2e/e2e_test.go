//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/davidahmann/txnscore/internal/api"
	"github.com/davidahmann/txnscore/internal/audit"
	"github.com/davidahmann/txnscore/internal/audit/sqlstore"
	"github.com/davidahmann/txnscore/internal/pipeline"
	"github.com/davidahmann/txnscore/internal/policy"
)

func TestE2ERunPersistVerify(t *testing.T) {
	store, err := sqlstore.OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer store.Close()

	router := api.NewRouter(&api.Handler{
		Runner: pipeline.New(pipeline.Options{Policy: policy.Default(), Seed: 42}),
		Store:  store,
		Log:    zerolog.Nop(),
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	runBatch(t, srv.URL, `{"batch_id":"e2e-1","generate":{"count":25,"anomaly_rate":0.2,"seed":11}}`, 25)

	csvBody, _ := json.Marshal(map[string]any{
		"batch_id": "e2e-csv",
		"csv":      "txn_id,amount,currency,timestamp,network,merchant_id,mcc,country\nT1,2500,INR,2026-07-15 10:30:00,VISA,MID_9,5812,IN\nT2,120,INR,2026-07-16,Mastercard,MID_9,5411,IN",
	})
	runBatch(t, srv.URL, string(csvBody), 2)

	// Every persisted decision must verify against its canonical digest.
	for _, batchID := range []string{"e2e-1", "e2e-csv"} {
		decisions, err := store.ListDecisions(batchID)
		if err != nil {
			t.Fatalf("list decisions %s: %v", batchID, err)
		}
		if len(decisions) == 0 {
			t.Fatalf("no decisions stored for %s", batchID)
		}
		for _, d := range decisions {
			ok, err := audit.Verify(d)
			if err != nil {
				t.Fatalf("verify %s/%s: %v", batchID, d.RecordID, err)
			}
			if !ok {
				t.Fatalf("decision %s/%s failed digest verification", batchID, d.RecordID)
			}
		}
	}

	batches := listBatches(t, srv.URL)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
}

func runBatch(t *testing.T, baseURL, body string, wantRecords int) {
	t.Helper()

	res, err := http.Post(baseURL+"/v1/run", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("run status: %d", res.StatusCode)
	}

	var payload struct {
		Result struct {
			TotalRecords int  `json:"total_records"`
			Success      bool `json:"success"`
		} `json:"result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.Result.Success {
		t.Fatalf("run not successful: %+v", payload.Result)
	}
	if payload.Result.TotalRecords != wantRecords {
		t.Fatalf("total_records = %d, want %d", payload.Result.TotalRecords, wantRecords)
	}
}

func listBatches(t *testing.T, baseURL string) []map[string]any {
	t.Helper()

	res, err := http.Get(baseURL + "/v1/batches")
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("list batches status: %d", res.StatusCode)
	}

	var payload struct {
		Batches []map[string]any `json:"batches"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return payload.Batches
}
