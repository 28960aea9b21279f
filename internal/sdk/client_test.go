package sdk

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shield-core/pkg/amount"
)

func testBundle() *TransferBundle {
	return &TransferBundle{
		WalletID:         "w-1",
		ChainID:          1,
		TokenAddress:     common.Address{},
		RecipientAddress: common.HexToAddress("0xAA"),
		RecipientAmount:  amount.New(1_000_000),
	}
}

func TestClientGenerateProofStreamsProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transactions/prove", r.URL.Path)
		flusher := w.(http.Flusher)
		for _, pct := range []int{10, 60, 100} {
			fmt.Fprintf(w, `{"stage":"circuit","pct":%d}`+"\n", pct)
			flusher.Flush()
		}
		fmt.Fprintln(w, `{"done":true}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)

	var seen []int
	err := c.GenerateProof(context.Background(), testBundle(), nil, false, func(ev ProgressEvent) {
		seen = append(seen, ev.Pct)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 60, 100}, seen)
}

func TestClientGenerateProofSurfacesEngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"stage":"circuit","pct":10}`)
		fmt.Fprintln(w, `{"error":"note spend failed"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	err := c.GenerateProof(context.Background(), testBundle(), nil, false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "note spend failed")
}

func TestClientGenerateProofRejectsTruncatedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"stage":"circuit","pct":50}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	err := c.GenerateProof(context.Background(), testBundle(), nil, false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without completion marker")
}

func TestClientEstimateUnprovenGas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transactions/estimate", r.URL.Path)
		fmt.Fprintln(w, `{"gas_estimate": 1400000}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	got, err := c.EstimateUnprovenGas(context.Background(), testBundle(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_400_000), got)
}

func TestClientPostDecodesEngineErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, `{"error":"unknown wallet"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	err := c.RefreshBalances(context.Background(), 1, []string{"w-404"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown wallet")
}
