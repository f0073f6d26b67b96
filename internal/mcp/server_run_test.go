package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-redactor/internal/config"
	"github.com/a3tai/mcp-pdf-redactor/internal/descriptions"
	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

type fakeWebServer struct {
	mounted map[string]http.Handler
	addr    string
	err     error
}

func (w *fakeWebServer) Mount(path string, h http.Handler) {
	if w.mounted == nil {
		w.mounted = map[string]http.Handler{}
	}
	w.mounted[path] = h
}

func (w *fakeWebServer) Serve(ctx context.Context, addr string) error {
	w.addr = addr
	if w.err != nil {
		return w.err
	}
	<-ctx.Done()
	return nil
}

func TestServer_ToolsList(t *testing.T) {
	f := newFixture(t)

	resp := f.server.mcpServer.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	require.NotNil(t, resp)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Tools []struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	names := make([]string, 0, len(decoded.Result.Tools))
	for _, tool := range decoded.Result.Tools {
		names = append(names, tool.Name)
		assert.Equal(t, descriptions.GetToolDescription(tool.Name), tool.Description)
	}
	assert.ElementsMatch(t, descriptions.GetAllToolNames(), names)
}

func TestServer_ToolsCallOverJSONRPC(t *testing.T) {
	f := newFixture(t)

	resp := f.server.mcpServer.HandleMessage(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"redact_toggle_category","arguments":{"category":"ADDRESS"}}}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Category ADDRESS enabled")
	assert.Contains(t, f.server.session.Settings().Snapshot().Categories, redaction.CategoryAddress)
}

func TestServer_Run_StdioMode(t *testing.T) {
	f := newFixture(t)

	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()
	f.server.stdin = stdinReader
	f.server.stdout = stdoutWriter

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.server.Run(ctx, nil) }()

	go func() {
		_, _ = io.WriteString(stdinWriter, `{"jsonrpc":"2.0","id":7,"method":"ping"}`+"\n")
	}()

	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(stdoutReader).ReadString('\n')
		lines <- line
	}()

	select {
	case line := <-lines:
		assert.Contains(t, line, `"id":7`)
	case <-time.After(5 * time.Second):
		t.Fatal("no response on stdout")
	}

	cancel()
	_ = stdinWriter.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stdio server did not stop after cancellation")
	}
}

// stdioCall sends one tools/call over the pipe and returns the raw response line
func stdioCall(t *testing.T, in io.Writer, out *bufio.Reader, id int, tool string, args map[string]interface{}) string {
	t.Helper()
	req, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params":  map[string]interface{}{"name": tool, "arguments": args},
	})
	require.NoError(t, err)

	go func() {
		_, _ = in.Write(append(req, '\n'))
	}()

	lines := make(chan string, 1)
	go func() {
		line, _ := out.ReadString('\n')
		lines <- line
	}()
	select {
	case line := <-lines:
		return line
	case <-time.After(5 * time.Second):
		t.Fatalf("no response to %s", tool)
		return ""
	}
}

func TestServer_Run_StdioAbortDuringRun(t *testing.T) {
	f := newFixture(t)
	f.detector.block = make(chan struct{})

	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()
	f.server.stdin = stdinReader
	f.server.stdout = stdoutWriter

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Run(ctx, nil) }()
	t.Cleanup(func() {
		cancel()
		_ = stdinWriter.Close()
		<-done
	})

	out := bufio.NewReader(stdoutReader)
	assert.Contains(t, stdioCall(t, stdinWriter, out, 1, "redact_load_document", map[string]interface{}{"path": "umowa.pdf"}), "Pages: 2")
	assert.Contains(t, stdioCall(t, stdinWriter, out, 2, "redact_run", nil), "Analysis started on 2 page(s)")
	assert.Contains(t, stdioCall(t, stdinWriter, out, 3, "redact_status", nil), "State: detecting")
	assert.Contains(t, stdioCall(t, stdinWriter, out, 4, "redact_abort", nil), "Detection run aborted")

	require.Eventually(t, func() bool {
		return !f.server.session.Status().State.Busy()
	}, 2*time.Second, 5*time.Millisecond)
	st := f.server.session.Status()
	assert.Equal(t, redaction.PhaseFailed, st.State.Phase)
	assert.Equal(t, redaction.KindAborted, st.ErrorKind)
	assert.Empty(t, f.server.session.Marks(0, nil))
}

func TestServer_Run_ServerMode(t *testing.T) {
	f := newFixture(t)
	f.server.config.Mode = config.ModeServer
	f.server.config.Host = "127.0.0.1"
	f.server.config.Port = 9123

	web := &fakeWebServer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.server.Run(ctx, web))
	assert.Contains(t, web.mounted, MCPEndpoint)
	assert.Equal(t, "127.0.0.1:9123", web.addr)
}

func TestServer_Run_ServerModeErrors(t *testing.T) {
	f := newFixture(t)
	f.server.config.Mode = config.ModeServer

	err := f.server.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires an HTTP server")

	web := &fakeWebServer{err: errors.New("address in use")}
	err = f.server.Run(context.Background(), web)
	assert.EqualError(t, err, "address in use")
}
