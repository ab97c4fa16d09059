package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// frameHeader is the shallow parse of one inbound JSON-RPC frame, just
// enough to route it. The full decode stays with the MCP server.
type frameHeader struct {
	Method string          `json:"method"`
	ID     json.RawMessage `json:"id"`
	Params json.RawMessage `json:"params"`
}

// inflightCalls maps request ids to the cancel funcs of running tool
// calls, so a notifications/cancelled frame can flip the matching
// context.
type inflightCalls struct {
	mu    sync.Mutex
	calls map[string]context.CancelFunc
}

func newInflightCalls() *inflightCalls {
	return &inflightCalls{calls: make(map[string]context.CancelFunc)}
}

func (c *inflightCalls) add(id string, cancel context.CancelFunc) {
	c.mu.Lock()
	c.calls[id] = cancel
	c.mu.Unlock()
}

func (c *inflightCalls) remove(id string) {
	c.mu.Lock()
	delete(c.calls, id)
	c.mu.Unlock()
}

// cancel fires the cancel func for id, if the call is still running.
// Unknown ids are ignored: the call may have finished already.
func (c *inflightCalls) cancel(id string) {
	c.mu.Lock()
	fn := c.calls[id]
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// serveStdio reads newline-delimited JSON-RPC frames from in and writes
// responses to out. tools/call frames dispatch to goroutines so calls
// with distinct ids overlap, bounded by the worker semaphore inside the
// tool handler; every other method runs inline so the handshake stays
// ordered. The read loop therefore keeps draining stdin during long
// calls, which is what lets a cancellation frame reach a running call.
func (s *Server) serveStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	var (
		writeMu sync.Mutex
		calls   sync.WaitGroup
	)
	inflight := newInflightCalls()

	write := func(msg any) {
		if msg == nil {
			// Notifications produce no response.
			return
		}
		data, err := json.Marshal(msg)
		if err != nil {
			s.logger.Error().Err(err).Msg("marshaling response")
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := out.Write(append(data, '\n')); err != nil {
			s.logger.Error().Err(err).Msg("writing response")
		}
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		reader := bufio.NewReader(in)
		for {
			line, err := reader.ReadString('\n')
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				select {
				case lines <- trimmed:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			calls.Wait()
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				calls.Wait()
				var err error
				select {
				case err = <-readErr:
				default:
				}
				if err == nil || err == io.EOF {
					return nil
				}
				return err
			}

			raw := json.RawMessage(line)
			var frame frameHeader
			if err := json.Unmarshal(raw, &frame); err != nil {
				// Malformed JSON; the MCP server renders the parse error.
				write(s.mcp.HandleMessage(ctx, raw))
				continue
			}

			switch frame.Method {
			case "notifications/cancelled":
				var params struct {
					RequestID any `json:"requestId"`
				}
				_ = json.Unmarshal(frame.Params, &params)
				inflight.cancel(requestKey(params.RequestID))

			case "tools/call":
				id := rawRequestKey(frame.ID)
				callCtx, cancel := context.WithCancel(ctx)
				inflight.add(id, cancel)
				calls.Add(1)
				go func() {
					defer calls.Done()
					defer inflight.remove(id)
					defer cancel()
					write(s.mcp.HandleMessage(callCtx, raw))
				}()

			default:
				write(s.mcp.HandleMessage(ctx, raw))
			}
		}
	}
}

// requestKey normalizes a request id for the in-flight table. JSON
// numbers decode as float64 on both the request and the cancellation
// path, so the rendering agrees.
func requestKey(id any) string {
	return fmt.Sprintf("%v", id)
}

func rawRequestKey(raw json.RawMessage) string {
	var id any
	_ = json.Unmarshal(raw, &id)
	return requestKey(id)
}
