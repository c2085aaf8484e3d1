package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "docindex/internal/adapter/weaviate"
	"docindex/internal/upload"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		handler(w, r)
	}))
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return client, ts
}

func testRecords(t *testing.T) []upload.Record {
	chunks := []upload.Chunk{
		{Text: "Fever is a temporary rise in body temperature.", Metadata: upload.Metadata{"source": upload.String("a.pdf"), "page": upload.Int(2)}},
		{Text: "Influenza is a viral infection.", Metadata: upload.Metadata{"source": upload.String("a.pdf"), "page": upload.Int(3)}},
	}
	records := make([]upload.Record, len(chunks))
	for i, c := range chunks {
		r, err := upload.NewRecord(c, []float32{0.1, 0.2, 0.3})
		require.NoError(t, err)
		records[i] = r
	}
	return records
}

func TestStore_Upsert(t *testing.T) {
	records := testRecords(t)

	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body struct {
			Objects []map[string]interface{} `json:"objects"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Objects, 2)

		obj := body.Objects[0]
		assert.Equal(t, "MedicalChatbot", obj["class"])
		assert.Equal(t, string(adapter.ObjectID(records[0].ID)), obj["id"])
		props := obj["properties"].(map[string]interface{})
		assert.Equal(t, records[0].Metadata[upload.TextKey].Any(), props["text"])
		assert.Equal(t, "a.pdf", props["source"])
		assert.Equal(t, 2.0, props["page"])
		assert.Len(t, obj["vector"], 3)

		w.WriteHeader(http.StatusOK)
		resp := make([]map[string]interface{}, len(body.Objects))
		for i, o := range body.Objects {
			resp[i] = map[string]interface{}{"id": o["id"], "class": o["class"], "result": map[string]interface{}{}}
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client, "MedicalChatbot")
	err := store.Upsert(context.Background(), records)
	assert.NoError(t, err)
}

func TestStore_Upsert_ObjectErrors(t *testing.T) {
	records := testRecords(t)

	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": string(adapter.ObjectID(records[0].ID)), "result": map[string]interface{}{}},
			{
				"id": string(adapter.ObjectID(records[1].ID)),
				"result": map[string]interface{}{
					"errors": map[string]interface{}{
						"error": []map[string]interface{}{{"message": "vector lengths don't match"}},
					},
				},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client, "MedicalChatbot")
	err := store.Upsert(context.Background(), records)
	assert.ErrorIs(t, err, adapter.ErrObjectsRejected)
	assert.Contains(t, err.Error(), "vector lengths don't match")
}

func TestStore_Upsert_TransportError(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		w.Write([]byte(`{"error":[{"message":"request body too large"}]}`))
	})
	defer ts.Close()

	store := adapter.NewStore(client, "MedicalChatbot")
	err := store.Upsert(context.Background(), testRecords(t))
	assert.Error(t, err)
}

func TestStore_Count(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		query := body["query"].(string)
		assert.Contains(t, query, "Aggregate")
		assert.Contains(t, query, "MedicalChatbot")
		assert.Contains(t, query, "count")

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"MedicalChatbot": []interface{}{
						map[string]interface{}{"meta": map[string]interface{}{"count": 120}},
					},
				},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client, "MedicalChatbot")
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, count)
}

func TestObjectID(t *testing.T) {
	id, err := upload.Identity("text", nil)
	require.NoError(t, err)

	u := adapter.ObjectID(id)
	assert.Len(t, string(u), 36)
	assert.Equal(t, u, adapter.ObjectID(id))
	assert.Equal(t, id[:8], string(u)[:8])

	// Ids that are not hex digests still map deterministically.
	assert.Equal(t, adapter.ObjectID("chunk-1"), adapter.ObjectID("chunk-1"))
	assert.NotEqual(t, adapter.ObjectID("chunk-1"), adapter.ObjectID("chunk-2"))
}
