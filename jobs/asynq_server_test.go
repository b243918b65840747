package jobs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthBody struct {
	Queues []queueHealth `json:"queues"`
}

func getHealth(t *testing.T, h *Handler) (int, healthBody) {
	t.Helper()
	r := chi.NewRouter()
	h.MountRoutes(r)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body healthBody
	if res.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	}
	return res.Code, body
}

func TestHealthListsLedgerQueuesFirst(t *testing.T) {
	code, body := getHealth(t, NewHandler(nil, nil))
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Queues, 2)
	assert.Equal(t, QueueLedger, body.Queues[0].Queue)
	assert.Equal(t, QueueReports, body.Queues[1].Queue)
}

func TestHealthWithEmptyRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })

	code, body := getHealth(t, NewHandler(inspector, nil))
	require.Equal(t, http.StatusOK, code)
	for _, q := range body.Queues {
		assert.Zero(t, q.Pending, q.Queue)
	}
}

func TestHealthReportsUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: addr})
	t.Cleanup(func() { _ = inspector.Close() })

	code, _ := getHealth(t, NewHandler(inspector, nil))
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestTasksRouteToTheirQueues(t *testing.T) {
	repair, err := NewMirrorRepairTask(MirrorRepairPayload{Days: 2})
	require.NoError(t, err)
	warm, err := NewBalancesWarmupTask(BalancesWarmupPayload{})
	require.NoError(t, err)
	assert.Equal(t, TaskMirrorRepair, repair.Type())
	assert.Equal(t, TaskBalancesWarmup, warm.Type())

	weights := Queues()
	assert.Greater(t, weights[QueueLedger], weights[QueueReports])
	assert.Len(t, weights, len(QueueNames()))
}
