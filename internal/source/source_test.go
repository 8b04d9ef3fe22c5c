package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanctl/chanctl/internal/logger"
	"github.com/chanctl/chanctl/pkg/types"
)

func newTestSource(t *testing.T, apiType string, handler http.Handler) Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := New(apiType, Options{
		BaseURL:  srv.URL + "/",
		Token:    "tok",
		UserID:   "1",
		PageSize: 2,
		MaxPages: 10,
	}, NewClient(0, logger.Discard()), logger.Discard())
	require.NoError(t, err)
	return s
}

func TestNewAPIFetchAllPagination(t *testing.T) {
	pages := map[string][]map[string]any{
		"0": {{"id": 1, "name": "a"}, {"id": 2, "name": "b"}},
		"1": {{"id": 3, "name": "c"}},
		"2": {},
	}

	var sawAuth, sawUser string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		sawUser = r.Header.Get("New-Api-User")
		p := r.URL.Query().Get("p")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    pages[p],
		})
	})

	s := newTestSource(t, "newapi", handler)
	records, err := s.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, records, 3)
	assert.Equal(t, 1, records[0].ID)
	assert.Equal(t, "c", records[2].Name)
	assert.Equal(t, "tok", sawAuth)
	assert.Equal(t, "1", sawUser)
}

func TestNewAPIFetchAllEnvelopeFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "unauthorized",
		})
	})

	s := newTestSource(t, "newapi", handler)
	_, err := s.FetchAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestNewAPIApplyPatch(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	s := newTestSource(t, "newapi", handler)
	err := s.ApplyPatch(context.Background(), &types.Patch{
		ID:      7,
		Changed: map[string]any{"models": "gpt-4o"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/api/channel/", gotPath)
	assert.Equal(t, float64(7), gotBody["id"])
	assert.Equal(t, "gpt-4o", gotBody["models"])
}

func TestNewAPIApplyPatchRejected(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"success":false,"message":"invalid"}`)
	})

	s := newTestSource(t, "newapi", handler)
	err := s.ApplyPatch(context.Background(), &types.Patch{ID: 7})
	assert.Error(t, err)
}

func TestNewAPIRetriesServerErrors(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": []any{}})
	})

	s := newTestSource(t, "newapi", handler)
	records, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 3, attempts)
}

func TestVoAPIFetchAllWrappedRecords(t *testing.T) {
	var sawAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		switch r.URL.Query().Get("p") {
		case "1":
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data": map[string]any{
					"records": []map[string]any{{"id": 10, "name": "x"}},
				},
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"message": "invalid page number",
			})
		}
	})

	s := newTestSource(t, "voapi", handler)
	records, err := s.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, records, 1)
	assert.Equal(t, 10, records[0].ID)
	assert.Equal(t, "Bearer tok", sawAuth)
}

func TestVoAPIFetchAllListKeyAndNullData(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("p") {
		case "1":
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data": map[string]any{
					"list": []map[string]any{{"id": 1, "name": "a"}},
				},
			})
		default:
			json.NewEncoder(w).Encode(map[string]any{"success": true, "data": nil})
		}
	})

	s := newTestSource(t, "voapi", handler)
	records, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestVoAPIFetchAllIncompatibleShape(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"total": 5},
		})
	})

	s := newTestSource(t, "voapi", handler)
	_, err := s.FetchAll(context.Background())
	assert.Error(t, err)
}

func TestFetchOneNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, apiType := range []string{"newapi", "voapi"} {
		s := newTestSource(t, apiType, handler)
		rec, err := s.FetchOne(context.Background(), 99)
		require.NoError(t, err)
		assert.Nil(t, rec)
	}
}

func TestNewAPIFetchOne(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/channel/5", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"id": 5, "name": "five", "models": "m1"},
		})
	})

	s := newTestSource(t, "newapi", handler)
	rec, err := s.FetchOne(context.Background(), 5)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "five", rec.Name)
	assert.Equal(t, "m1", rec.Get("models"))
}

func TestRecordProbePassed(t *testing.T) {
	var gotPath, gotModel, sawAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotModel = r.URL.Query().Get("model")
		sawAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "all good"})
	})

	s := newTestSource(t, "newapi", handler)
	res, err := s.TestRecord(context.Background(), 7, "gpt-4o")
	require.NoError(t, err)

	assert.True(t, res.Passed)
	assert.Equal(t, "all good", res.Message)
	assert.Empty(t, res.Failure)
	assert.Equal(t, "/api/channel/test/7", gotPath)
	assert.Equal(t, "gpt-4o", gotModel)
	assert.Equal(t, "tok", sawAuth)
}

func TestRecordProbeFailureClasses(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		failure string
	}{
		{"quota message", http.StatusOK, `{"success":false,"message":"insufficient quota"}`, FailQuota},
		{"api message", http.StatusOK, `{"success":false,"message":"model not available"}`, FailAPI},
		{"unauthorized", http.StatusUnauthorized, `{}`, FailAuth},
		{"rate limited", http.StatusTooManyRequests, `{}`, FailQuota},
		{"bad request", http.StatusBadRequest, `{"message":"no such channel"}`, FailAPI},
		{"garbage body", http.StatusOK, `not json`, FailFormat},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})

			s := newTestSource(t, "newapi", handler)
			res, err := s.TestRecord(context.Background(), 1, "gpt-4")
			require.NoError(t, err)
			assert.False(t, res.Passed)
			assert.Equal(t, tc.failure, res.Failure)
		})
	}
}

func TestVoAPIRecordProbeUsesBearerToken(t *testing.T) {
	var sawAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	s := newTestSource(t, "voapi", handler)
	res, err := s.TestRecord(context.Background(), 3, "claude-3")
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, "Bearer tok", sawAuth)
}

func TestUnknownAPIType(t *testing.T) {
	_, err := New("mystery", Options{}, NewClient(0, logger.Discard()), logger.Discard())
	assert.Error(t, err)
}

func TestVendorFormatters(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	na := newTestSource(t, "newapi", handler)
	vo := newTestSource(t, "voapi", handler)

	assert.Equal(t, "a,b", na.FormatListField("models", []string{"a", "b"}))
	assert.Equal(t, map[string]any{"k": "v"}, na.FormatMapField("model_mapping", map[string]any{"k": "v"}))
	assert.Equal(t, 5, na.FormatScalarField("priority", "5"))
	assert.Equal(t, "x", na.FormatScalarField("base_url", "x"))

	assert.Equal(t, "a,b", vo.FormatListField("models", []string{"a", "b"}))
	assert.Equal(t, `{"k":"v"}`, vo.FormatMapField("model_mapping", map[string]any{"k": "v"}))
	assert.Equal(t, "", vo.FormatMapField("model_mapping", map[string]any{}))
	assert.Equal(t, "5", vo.FormatScalarField("priority", "5"))
}
