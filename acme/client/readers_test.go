package client

import (
	"context"
	"encoding/pem"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpu/acmeshell/acme/resources"
)

func TestReadJSON(t *testing.T) {
	conn, srv := newTestConnection(t, staticHandler(http.StatusOK,
		map[string]string{"Content-Type": "application/json"}, `{"status":"valid"}`))

	status, err := conn.SendRequest(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, successStream, conn.current.stream())

	result, err := conn.ReadJSON()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"status": "valid"}, result)
}

func TestReadJSONErrorStream(t *testing.T) {
	conn, srv := newTestConnection(t, staticHandler(http.StatusBadRequest,
		map[string]string{"Content-Type": "application/json"}, `{"status":"invalid"}`))

	status, err := conn.SendRequest(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errorStream, conn.current.stream())

	result, err := conn.ReadJSON()
	require.NoError(t, err)
	assert.Equal(t, "invalid", result["status"])
}

func TestReadJSONMultiline(t *testing.T) {
	body := "{\n  \"status\": \"pending\",\n  \"identifier\": {\n    \"type\": \"dns\"\n  }\n}\n"
	conn, srv := newTestConnection(t, staticHandler(http.StatusOK,
		map[string]string{"Content-Type": "application/json"}, body))

	_, err := conn.SendRequest(context.Background(), srv.URL)
	require.NoError(t, err)

	result, err := conn.ReadJSON()
	require.NoError(t, err)
	assert.Equal(t, "pending", result["status"])
	assert.Equal(t, map[string]interface{}{"type": "dns"}, result["identifier"])
}

func TestReadJSONEmpty(t *testing.T) {
	conn, srv := newTestConnection(t, staticHandler(http.StatusNoContent, nil, ""))

	_, err := conn.SendRequest(context.Background(), srv.URL)
	require.NoError(t, err)

	result, err := conn.ReadJSON()
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestReadJSONMalformed(t *testing.T) {
	conn, srv := newTestConnection(t, staticHandler(http.StatusOK,
		map[string]string{"Content-Type": "application/json"}, `{"status":`))

	_, err := conn.SendRequest(context.Background(), srv.URL)
	require.NoError(t, err)

	_, err = conn.ReadJSON()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindProtocol), "got %v", err)
}

func TestReadBodyOnce(t *testing.T) {
	conn, srv := newTestConnection(t, staticHandler(http.StatusOK,
		map[string]string{"Content-Type": "application/json"}, `{"status":"valid"}`))

	_, err := conn.SendRequest(context.Background(), srv.URL)
	require.NoError(t, err)

	_, err = conn.ReadJSON()
	require.NoError(t, err)
	_, err = conn.ReadJSON()
	assert.ErrorIs(t, err, ErrBodyConsumed)
	_, err = conn.ReadBody()
	assert.ErrorIs(t, err, ErrBodyConsumed)
}

func TestReadersNotConnected(t *testing.T) {
	conn := NewConnection(nil)

	_, err := conn.ReadJSON()
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = conn.ReadCertificate()
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = conn.ReadResourceDirectory()
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = conn.Location()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Zero(t, conn.StatusCode())
}

func TestCloseReleasesExchange(t *testing.T) {
	conn, srv := newTestConnection(t, staticHandler(http.StatusOK, nil, `{}`))

	_, err := conn.SendRequest(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	_, err = conn.ReadJSON()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestReadResourceDirectory(t *testing.T) {
	conn, srv := newTestConnection(t, staticHandler(http.StatusOK,
		map[string]string{"Content-Type": "application/json"},
		`{"new-reg":"https://example.com/acme/new-reg","unknown-key":"ignored","meta":{"terms-of-service":"https://example.com/tos"}}`))

	dir, err := conn.FetchDirectory(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, dir.Len())

	u, ok := dir.Get(resources.NEW_REG)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/acme/new-reg", u.String())

	_, ok = dir.Get(resources.NEW_CERT)
	assert.False(t, ok)
}

func TestReadResourceDirectoryErrors(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "malformed JSON", body: `{"new-reg":`},
		{name: "unparsable URL", body: `{"new-reg":"https://example.com/%zz"}`},
		{name: "non-string URL", body: `{"new-reg":5}`},
		{name: "not an object", body: `["new-reg"]`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conn, srv := newTestConnection(t, staticHandler(http.StatusOK,
				map[string]string{"Content-Type": "application/json"}, tc.body))

			_, err := conn.SendRequest(context.Background(), srv.URL)
			require.NoError(t, err)

			_, err = conn.ReadResourceDirectory()
			require.Error(t, err)
			assert.True(t, IsKind(err, KindProtocol), "got %v", err)
		})
	}
}

func TestLocation(t *testing.T) {
	testCases := []struct {
		name     string
		header   map[string]string
		expected string
		kind     Kind
	}{
		{name: "absent"},
		{
			name:     "absolute",
			header:   map[string]string{"Location": "https://example.com/acme/reg/1"},
			expected: "https://example.com/acme/reg/1",
		},
		{
			name:   "malformed",
			header: map[string]string{"Location": "https://example.com/%zz"},
			kind:   KindProtocol,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conn, srv := newTestConnection(t, staticHandler(http.StatusCreated, tc.header, ""))

			_, err := conn.SendRequest(context.Background(), srv.URL)
			require.NoError(t, err)

			loc, err := conn.Location()
			if tc.kind != "" {
				require.Error(t, err)
				assert.True(t, IsKind(err, tc.kind), "got %v", err)
				return
			}
			require.NoError(t, err)
			if tc.expected == "" {
				assert.Nil(t, loc)
				return
			}
			require.NotNil(t, loc)
			assert.Equal(t, tc.expected, loc.String())
		})
	}
}

func TestReadCertificate(t *testing.T) {
	der := selfSignedDER(t)
	pemCert := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))

	testCases := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{name: "DER", status: http.StatusOK, body: string(der)},
		{name: "PEM", status: http.StatusOK, body: pemCert},
		{name: "garbage", status: http.StatusOK, body: "not a certificate", kind: KindProtocol},
		{name: "wrong PEM block", status: http.StatusOK,
			body: "-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----\n", kind: KindProtocol},
		{name: "error status", status: http.StatusNotFound, body: string(der), kind: KindProtocol},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conn, srv := newTestConnection(t, staticHandler(tc.status,
				map[string]string{"Content-Type": "application/pkix-cert"}, tc.body))

			_, err := conn.SendRequest(context.Background(), srv.URL)
			require.NoError(t, err)

			cert, err := conn.ReadCertificate()
			if tc.kind != "" {
				require.Error(t, err)
				assert.True(t, IsKind(err, tc.kind), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "acmeshell.example.com", cert.Subject.CommonName)
		})
	}
}
