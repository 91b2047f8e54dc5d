package weavetest

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/weavesync/crypto"
)

func get(t *testing.T, url, user, pass string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err)
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestServer_NodeIsUnauthenticated(t *testing.T) {
	s := New(t)

	status, body := get(t, s.URL()+"user/1.0/"+s.Username()+"/node/weave", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, s.URL(), string(body))

	status, _ = get(t, s.URL()+"user/1.0/someoneelse/node/weave", "", "")
	assert.Equal(t, http.StatusNotFound, status)

	s.SetNode("null")
	_, body = get(t, s.URL()+"user/1.0/"+s.Username()+"/node/weave", "", "")
	assert.Equal(t, "null", string(body))
}

func TestServer_Authentication(t *testing.T) {
	s := New(t)
	info := s.URL() + "1.1/" + s.Username() + "/info/collections"

	tests := []struct {
		name       string
		user, pass string
		want       int
	}{
		{"no credentials", "", "", http.StatusUnauthorized},
		{"wrong password", s.Username(), "nope", http.StatusUnauthorized},
		{"wrong user", "someoneelse", s.Password(), http.StatusUnauthorized},
		{"valid", s.Username(), s.Password(), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := get(t, info, tt.user, tt.pass)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestServer_Storage(t *testing.T) {
	s := New(t)
	require.NoError(t, s.PutObject("tabs", "t1", map[string]string{"k": "v"}))
	base := s.URL() + "1.1/" + s.Username()

	status, body := get(t, base+"/info/collections", s.Username(), s.Password())
	require.Equal(t, http.StatusOK, status)
	var info map[string]float64
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, s.CollectionModified("tabs"), info["tabs"])
	assert.Contains(t, info, "crypto")
	assert.Contains(t, info, "meta")

	status, body = get(t, base+"/storage/tabs", s.Username(), s.Password())
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `["t1"]`, string(body))

	status, body = get(t, base+"/storage/tabs?full=1", s.Username(), s.Password())
	require.Equal(t, http.StatusOK, status)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(body, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "t1", records[0]["id"])

	status, body = get(t, base+"/storage/tabs/t1", s.Username(), s.Password())
	require.Equal(t, http.StatusOK, status)
	var rec struct {
		Payload string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(body, &rec))
	env, err := crypto.ParseEnvelope([]byte(rec.Payload))
	require.NoError(t, err)
	assert.NotEmpty(t, env.Ciphertext)

	status, _ = get(t, base+"/storage/tabs/missing", s.Username(), s.Password())
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_FailAndRecord(t *testing.T) {
	s := New(t)
	path := "/1.1/" + s.Username() + "/info/collections"
	s.Fail(path, http.StatusServiceUnavailable)

	status, _ := get(t, s.URL()+path[1:], s.Username(), s.Password())
	assert.Equal(t, http.StatusServiceUnavailable, status)

	reqs := s.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, path, reqs[0].Path)
	assert.Equal(t, s.Username(), reqs[0].User)

	s.ResetRequests()
	assert.Empty(t, s.Paths())
}
