package main

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solraffle/raffle-node/raffleNode/config"
)

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCmd()

	for _, path := range [][]string{
		{"start"},
		{"init"},
		{"version"},
		{"keys", "show"},
		{"keys", "generate"},
		{"sign"},
		{"query", "stats"},
		{"q", "raffles"},
		{"query", "odds"},
		{"lamports"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("home"))
}

func TestLamportsCommand(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"lamports", "1.5"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "1500000000\n", out.String())

	root = NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"lamports", "0.0000000001"})
	assert.Error(t, root.Execute())
}

func TestPrintOutputRejectsUnknownFormat(t *testing.T) {
	assert.Error(t, printOutput(map[string]int{"a": 1}, "xml"))
}

func TestGetAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/raffles/missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"raffle not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"raffle":{"id":"r1"}}`))
	}))
	defer srv.Close()

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	home := t.TempDir()
	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	cfg.NodeHome = home
	cfg.APIPort = port
	require.NoError(t, config.Save(cfg, home))

	prev := homeFlag
	homeFlag = home
	defer func() { homeFlag = prev }()

	var out map[string]interface{}
	require.NoError(t, getAPI("/api/raffles/r1", &out))
	assert.Equal(t, true, out["success"])

	err = getAPI("/api/raffles/missing", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raffle not found")
}
