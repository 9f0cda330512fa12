package routeutterance

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"viora-nlu/internal/common/config"
	"viora-nlu/internal/common/errors"
	"viora-nlu/internal/common/genai"
	"viora-nlu/internal/common/logger"
	"viora-nlu/internal/common/metrics"
	"viora-nlu/internal/common/stream"
	"viora-nlu/internal/dispatch"
	"viora-nlu/internal/models"
	"viora-nlu/internal/nlu/pipeline"
	"viora-nlu/pkg/registry"
)

// ==========================
// Mocks and fixtures
// ==========================

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, utterance string) (string, error) {
	args := m.Called(ctx, utterance)
	return args.String(0), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, env dispatch.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "viora-assistant",
		ElementId:          "Activity_RouteUtterance",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, gen pipeline.Generator, d dispatch.Dispatcher) *Handler {
	t.Helper()
	log := logger.NewTestLogger(t)
	core := pipeline.New(registry.MustDefault(), pipeline.Options{}, log)
	h, err := NewHandler(HandlerOptions{
		Config:     &Config{Timeout: 5 * time.Second},
		Core:       core,
		Generator:  gen,
		Dispatcher: d,
		Logger:     log,
	})
	require.NoError(t, err)
	h.now = func() time.Time { return time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC) }
	return h
}

// fakeGateway records the job commands the handler sends.
type fakeGateway struct {
	pb.GatewayClient

	mu        sync.Mutex
	completed []*pb.CompleteJobRequest
	failed    []*pb.FailJobRequest
	thrown    []*pb.ThrowErrorRequest
}

func (g *fakeGateway) CompleteJob(_ context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed = append(g.completed, in)
	return &pb.CompleteJobResponse{}, nil
}

func (g *fakeGateway) FailJob(_ context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed = append(g.failed, in)
	return &pb.FailJobResponse{}, nil
}

func (g *fakeGateway) ThrowError(_ context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.thrown = append(g.thrown, in)
	return &pb.ThrowErrorResponse{}, nil
}

type fakeJobClient struct {
	gateway *fakeGateway
}

func noRetry(context.Context, error) bool { return false }

func (c fakeJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.gateway, noRetry)
}

func (c fakeJobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.gateway, noRetry)
}

func (c fakeJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.gateway, noRetry)
}

func jobDurationCount(t *testing.T) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.WorkerJobDuration.WithLabelValues(TaskType).(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

// ==========================
// Construction
// ==========================

func TestNewHandler(t *testing.T) {
	_, err := NewHandler(HandlerOptions{})
	assert.Error(t, err)

	core := pipeline.New(registry.MustDefault(), pipeline.Options{}, nil)
	h, err := NewHandler(HandlerOptions{Core: core, Logger: logger.NewNoOpLogger()})
	require.NoError(t, err)
	assert.Equal(t, defaultTimeout, h.config.Timeout)
	assert.IsType(t, dispatch.Nop{}, h.dispatcher)
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, defaultTimeout, LoadConfig(nil).Timeout)

	cfg := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: true, Timeout: 1500},
	}}
	assert.Equal(t, 1500*time.Millisecond, LoadConfig(cfg).Timeout)
}

// ==========================
// Input parsing
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	tests := []struct {
		name      string
		variables map[string]interface{}
		want      *Input
		wantErr   bool
	}{
		{
			name:      "utterance only",
			variables: map[string]interface{}{"utterance": "open my notes"},
			want:      &Input{Utterance: "open my notes"},
		},
		{
			name: "raw text with request id and unrelated process variables",
			variables: map[string]interface{}{
				"rawText":   `{"intent":"unknown"}`,
				"requestId": "req-9",
				"userId":    42,
			},
			want: &Input{RawText: `{"intent":"unknown"}`, RequestID: "req-9"},
		},
		{
			name:      "neither utterance nor raw text",
			variables: map[string]interface{}{"requestId": "req-1"},
			wantErr:   true,
		},
		{
			name:      "blank utterance",
			variables: map[string]interface{}{"utterance": "   "},
			wantErr:   true,
		},
		{
			name:      "utterance of wrong type",
			variables: map[string]interface{}{"utterance": 12},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, input)
		})
	}
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_RawText(t *testing.T) {
	tests := []struct {
		name       string
		rawText    string
		wantLabel  models.DecisionLabel
		wantAction string
		wantIntent string
	}{
		{
			name:       "confident read command",
			rawText:    `{"intent":"read_document","confidence":0.93,"entities":{"reading_action":"pause"}}`,
			wantLabel:  models.LabelExecuteDirectly,
			wantAction: "READ_DOCUMENT_PAUSE",
			wantIntent: "read_document",
		},
		{
			name:       "truncated output recovered",
			rawText:    `Sure! {"intent":"open_document","confidence":0.7,"entities":{"document_name":"biology notes"}`,
			wantLabel:  models.LabelExecuteWithConfirmation,
			wantAction: "OPEN_DOCUMENT",
			wantIntent: "open_document",
		},
		{
			name:       "missing required entity",
			rawText:    `{"intent":"search_file","confidence":0.95,"entities":{}}`,
			wantLabel:  models.ClarifyMissingInfo("search_file"),
			wantAction: "SEARCH_FILE",
			wantIntent: "search_file",
		},
		{
			name:       "garbage",
			rawText:    "I could not understand that",
			wantLabel:  models.LabelClarifyAmbiguous,
			wantAction: "CLARIFICATION",
			wantIntent: models.IntentClarification,
		},
		{
			name:       "out of scope",
			rawText:    `{"intent":"unknown","confidence":0.9,"entities":{}}`,
			wantLabel:  models.LabelOutOfScope,
			wantIntent: models.IntentUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, nil, nil)

			out, err := h.Execute(context.Background(), &Input{RawText: tt.rawText, RequestID: "req-1"})
			require.NoError(t, err)
			assert.Equal(t, "req-1", out.RequestID)
			assert.Equal(t, tt.wantLabel, out.Decision)
			assert.Equal(t, tt.wantAction, out.Action)
			assert.Equal(t, tt.wantIntent, out.Intent)
		})
	}
}

func TestHandler_Execute_GeneratesRequestID(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	out, err := h.Execute(context.Background(), &Input{RawText: `{"intent":"ocr_request","confidence":0.9}`})
	require.NoError(t, err)
	_, parseErr := uuid.Parse(out.RequestID)
	assert.NoError(t, parseErr)
	assert.Equal(t, map[string]interface{}{}, out.Entities)
}

func TestHandler_Execute_Utterance(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, "make me flashcards").
		Return(`{"intent":"generate_study_aid","confidence":0.88,"entities":{"study_aid_type":"flashcards"},"needs_clarification":false}`, nil).
		Once()

	h := newTestHandler(t, gen, nil)
	out, err := h.Execute(context.Background(), &Input{Utterance: "make me flashcards"})
	require.NoError(t, err)
	assert.Equal(t, models.LabelExecuteDirectly, out.Decision)
	assert.Equal(t, "GENERATE_STUDY_AID_FLASHCARDS", out.Action)
	assert.Equal(t, map[string]interface{}{"study_aid_type": "flashcards"}, out.Entities)
	gen.AssertExpectations(t)
}

func TestHandler_Execute_RawTextWinsOverUtterance(t *testing.T) {
	gen := new(MockGenerator)
	h := newTestHandler(t, gen, nil)

	out, err := h.Execute(context.Background(), &Input{
		Utterance: "ignored",
		RawText:   `{"intent":"summarize_content","confidence":0.6}`,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LabelExecuteWithConfirmation, out.Decision)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestHandler_Execute_ModelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode errors.ErrorCode
	}{
		{name: "timeout", err: errors.NewModelTimeoutError(context.DeadlineExceeded), wantCode: errors.ErrCodeModelTimeout},
		{name: "failure", err: errors.NewGenerationFailedError(stderrors.New("503")), wantCode: errors.ErrCodeGenerationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := new(MockGenerator)
			gen.On("Generate", mock.Anything, mock.Anything).Return("", tt.err)
			d := new(MockDispatcher)

			out, err := newTestHandler(t, gen, d).Execute(context.Background(), &Input{Utterance: "hello"})
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
			d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
		})
	}
}

func TestHandler_Execute_NoModelConfigured(t *testing.T) {
	_, err := newTestHandler(t, nil, nil).Execute(context.Background(), &Input{Utterance: "hello"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestHandler_Execute_DispatchFailure(t *testing.T) {
	d := new(MockDispatcher)
	d.On("Dispatch", mock.Anything, mock.Anything).
		Return(errors.NewDispatchFailedError("stream", stderrors.New("connection refused")))

	out, err := newTestHandler(t, nil, d).Execute(context.Background(), &Input{
		RawText: `{"intent":"ocr_request","confidence":0.9}`,
	})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, errors.ErrCodeDispatchFailed, errors.CodeOf(err))
	assert.Equal(t, 3, errors.ConvertToBPMNError(errors.Normalize(err)).Retries)
}

func TestHandler_Execute_DispatchesEnvelope(t *testing.T) {
	d := new(MockDispatcher)
	d.On("Dispatch", mock.Anything, mock.MatchedBy(func(env dispatch.Envelope) bool {
		return env.RequestID == "req-7" &&
			env.Decision == models.LabelExecuteDirectly &&
			env.Action == "FOCUS_ALERT_ENABLE" &&
			env.ProcessedAt.Equal(time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC))
	})).Return(nil).Once()

	_, err := newTestHandler(t, nil, d).Execute(context.Background(), &Input{
		RequestID: "req-7",
		RawText:   `{"intent":"focus_alert_control","confidence":0.97,"entities":{"focus_status":"Enable"}}`,
	})
	require.NoError(t, err)
	d.AssertExpectations(t)
}

// ==========================
// Wired through real collaborators
// ==========================

func TestHandler_Execute_ModelServiceAndStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "go to page 12", req["input"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"generated_text": `{"intent":"navigate_document","confidence":0.9,"entities":{"page_number":12,"navigation_direction":"to"}`,
		})
	}))
	defer server.Close()

	mr := miniredis.RunT(t)
	rc := stream.NewRedis(config.RedisConfig{Address: mr.Addr()})
	defer rc.Close()

	log := logger.NewTestLogger(t)
	gen := genai.NewClient(genai.Config{BaseURL: server.URL, Timeout: 2 * time.Second}, log)
	h := newTestHandler(t, gen, dispatch.NewStreamDispatcher(rc, "nlu:decisions", 100, log))

	out, err := h.Execute(context.Background(), &Input{Utterance: "go to page 12", RequestID: "req-12"})
	require.NoError(t, err)
	assert.Equal(t, models.LabelExecuteDirectly, out.Decision)
	assert.Equal(t, "NAVIGATE_DOCUMENT", out.Action)
	assert.Equal(t, int64(12), out.Entities["page_number"])

	entries, err := mr.Stream("nlu:decisions")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Values, "req-12")
}

// ==========================
// Job lifecycle
// ==========================

func TestHandler_Handle_CompletesJob(t *testing.T) {
	gateway := &fakeGateway{}
	h := newTestHandler(t, nil, nil)
	before := jobDurationCount(t)

	h.Handle(fakeJobClient{gateway}, createMockJob(101, map[string]interface{}{
		"rawText":   `{"intent": "read_document", "confidence": 0.9, "entities": {"reading_action": "pause"}}`,
		"requestId": "req-101",
	}))

	require.Len(t, gateway.completed, 1)
	assert.Empty(t, gateway.failed)
	assert.Empty(t, gateway.thrown)
	assert.Equal(t, int64(101), gateway.completed[0].JobKey)

	var out Output
	require.NoError(t, json.Unmarshal([]byte(gateway.completed[0].Variables), &out))
	assert.Equal(t, "req-101", out.RequestID)
	assert.Equal(t, models.LabelExecuteDirectly, out.Decision)
	assert.Equal(t, "READ_DOCUMENT_PAUSE", out.Action)

	assert.Equal(t, before+1, jobDurationCount(t))
}

func TestHandler_Handle_InvalidInputThrows(t *testing.T) {
	gateway := &fakeGateway{}
	h := newTestHandler(t, nil, nil)
	before := jobDurationCount(t)

	h.Handle(fakeJobClient{gateway}, createMockJob(102, map[string]interface{}{"requestId": "req-102"}))

	assert.Empty(t, gateway.completed)
	require.Len(t, gateway.thrown, 1)
	assert.Equal(t, "NLU_INVALID_INPUT", gateway.thrown[0].ErrorCode)
	assert.Equal(t, before+1, jobDurationCount(t))
}

func TestHandler_Handle_DispatchFailureFailsWithRetries(t *testing.T) {
	gateway := &fakeGateway{}
	d := new(MockDispatcher)
	d.On("Dispatch", mock.Anything, mock.Anything).
		Return(errors.NewDispatchFailedError("stream", stderrors.New("connection refused")))
	h := newTestHandler(t, nil, d)
	before := jobDurationCount(t)

	h.Handle(fakeJobClient{gateway}, createMockJob(103, map[string]interface{}{
		"rawText": `{"intent": "ocr_request", "confidence": 0.9, "entities": {}}`,
	}))

	assert.Empty(t, gateway.completed)
	require.Len(t, gateway.failed, 1)
	assert.Equal(t, int32(3), gateway.failed[0].Retries)
	assert.Contains(t, gateway.failed[0].ErrorMessage, "NLU_DISPATCH_FAILED")
	assert.Equal(t, before+1, jobDurationCount(t))
	d.AssertExpectations(t)
}
