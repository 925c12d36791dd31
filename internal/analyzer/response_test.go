package analyzer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/loopviz/internal/structure"
)

const sampleResponse = `{
  "structures": [
    {"name": "arr", "type": "array", "data": [10, 20, 30]},
    {"name": "seen", "type": "set", "data": [1, 2]},
    {"name": "d", "type": "dictionary", "data": [{"key": "a", "value": "1"}, {"key": 2, "value": 3}]},
    {"name": "x", "type": "variable", "data": "?"},
    {"name": "bad", "type": "tree", "data": []},
    {"name": "arr", "type": "array", "data": [1]},
    {"name": "oops", "type": "array", "data": 5}
  ],
  "hasLoop": true,
  "target": "arr",
  "iterator": "x",
  "loopDependencies": [{"name": "y", "formula": "x * 2"}, "z", {"name": ""}],
  "indexOperations": [{"varName": "arr", "indices": [0, 2]}],
  "output": ["start"],
  "iterationOutputs": {"0": ["10"], "2": ["30"]},
  "somethingElse": 1
}`

func TestDecode_Program(t *testing.T) {
	resp, err := Decode([]byte(sampleResponse))
	require.NoError(t, err)

	prog := resp.Program()
	assert.Len(t, prog.Skipped, 3)
	assert.Equal(t, []string{"arr", "seen", "d", "x"}, prog.Registry.Names())

	d, ok := prog.Registry.Lookup("d")
	require.True(t, ok)
	assert.Equal(t, structure.KindDictionary, d.Kind)
	assert.Equal(t, []structure.Entry{{Key: "a", Value: "1"}, {Key: "2", Value: 3.0}}, d.Entries)

	x, _ := prog.Registry.Lookup("x")
	assert.Equal(t, structure.KindScalar, x.Kind)

	assert.Equal(t, []structure.Dependency{
		{Name: "y", Formula: "x * 2", HasFormula: true},
		{Name: "z"},
	}, prog.Loop.Dependencies)
	assert.Equal(t, []structure.IndexOperation{{Structure: "arr", Indices: []int{0, 2}}}, prog.IndexOperations)
	assert.Equal(t, []string{"10"}, prog.Lines(0))
	assert.Nil(t, prog.Lines(1))
	assert.Equal(t, []string{"start"}, prog.Output)

	var se *StructureError
	require.True(t, errors.As(prog.Skipped[0], &se))
	assert.Equal(t, "bad", se.Name)
	assert.ErrorIs(t, prog.Skipped[1], structure.ErrDuplicateName)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`{"structures": [`))
	assert.ErrorIs(t, err, ErrDecode)

	resp, err := Decode([]byte(`{"hasLoop": false}`))
	require.NoError(t, err)
	assert.NotNil(t, resp.Structures)
}

func TestNeutral_Program(t *testing.T) {
	prog := Neutral().Program()
	assert.Equal(t, 0, prog.Registry.Len())
	assert.False(t, prog.Loop.HasLoop)
}

func TestClient_Parse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/parse", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL+"/", time.Second).Parse(context.Background(), "arr = [1]")
	require.NoError(t, err)
	assert.True(t, resp.HasLoop)
	assert.Equal(t, "x", resp.Iterator)
}

func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			},
			want: ErrStatus,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			want: ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Parse(context.Background(), "x = 1")
			assert.ErrorIs(t, err, tt.want)

			resp, err := NewFallback(NewClient(srv.URL, time.Second), nil).Parse(context.Background(), "x = 1")
			require.NoError(t, err)
			assert.Equal(t, Neutral(), resp)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	resp, err := NewFallback(NewClient(url, 200*time.Millisecond), nil).Parse(context.Background(), "x = 1")
	require.NoError(t, err)
	assert.Empty(t, resp.Structures)
	assert.False(t, resp.HasLoop)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","message":"Server is running"}`))
	}))
	defer srv.Close()

	assert.NoError(t, NewClient(srv.URL, time.Second).Health(context.Background()))
}
