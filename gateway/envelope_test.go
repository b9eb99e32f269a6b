package gateway_test

import (
	"testing"

	"github.com/jrsteele09/club-booking-client/gateway"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/stretchr/testify/require"
)

type statusPayload struct {
	Status string `json:"status"`
}

func TestNormalizeShapes(t *testing.T) {
	tests := map[string]string{
		"bare":            `{"status":"confirmed"}`,
		"data":            `{"data":{"status":"confirmed"}}`,
		"data message":    `{"data":{"status":"confirmed"},"message":"ok"}`,
		"success":         `{"success":true,"data":{"status":"confirmed"}}`,
		"string wrapped":  `"{\"status\":\"confirmed\"}"`,
		"string envelope": `"{\"success\":true,\"data\":{\"status\":\"confirmed\"}}"`,
		"string data":     `{"data":"{\"status\":\"confirmed\"}"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			res := gateway.Normalize(200, []byte(body))
			require.True(t, res.Success)
			var p statusPayload
			require.NoError(t, res.Decode(&p))
			require.Equal(t, "confirmed", p.Status)
		})
	}
}

func TestNormalizeKeepsObjectsWithExtraKeys(t *testing.T) {
	res := gateway.Normalize(200, []byte(`{"data":[1,2],"total":2}`))
	var out map[string]interface{}
	require.NoError(t, res.Decode(&out))
	require.Contains(t, out, "total")
}

func TestNormalizeSuccessFalse(t *testing.T) {
	res := gateway.Normalize(200, []byte(`{"success":false,"message":"course is full"}`))
	require.False(t, res.Success)
	require.Equal(t, "course is full", res.Message)
}

func TestNormalizeSuccessWithoutData(t *testing.T) {
	res := gateway.Normalize(200, []byte(`{"success":true,"token":"abc","user":{"id":1}}`))
	var tok string
	found, err := res.Field("token", &tok)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "abc", tok)

	found, err = res.Field("missing", &tok)
	require.NoError(t, err)
	require.False(t, found)
}

func TestNormalizeNonJSON(t *testing.T) {
	res := gateway.Normalize(200, []byte("confirmed"))
	require.True(t, res.Success)
	var s string
	require.NoError(t, res.Decode(&s))
	require.Equal(t, "confirmed", s)

	res = gateway.Normalize(502, []byte("Bad Gateway"))
	require.False(t, res.Success)
	require.Equal(t, "Bad Gateway", res.Message)
}

func TestNormalizeEmptyBody(t *testing.T) {
	res := gateway.Normalize(204, nil)
	require.True(t, res.Success)

	var p statusPayload
	err := res.Decode(&p)
	var decodeErr *clienterrors.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecodeTypeMismatch(t *testing.T) {
	res := gateway.Normalize(200, []byte(`[1,2,3]`))
	var p statusPayload
	var decodeErr *clienterrors.DecodeError
	require.ErrorAs(t, res.Decode(&p), &decodeErr)
}
