package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/probekit/probekit/internal/common/jsonrpc"
)

// maxLineBytes bounds a single framed request.
const maxLineBytes = 4 * 1024 * 1024

// ServeStdio runs the line-delimited transport: one JSON-RPC request per
// line on r, one response per line on w. Requests are dispatched
// concurrently; responses may complete out of order and are correlated by
// request id. Returns when r is exhausted or ctx is cancelled.
func (d *Dispatcher) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var wmu sync.Mutex
	var wg sync.WaitGroup
	write := func(resp *jsonrpc.Response) {
		if resp == nil {
			return
		}
		data, err := json.Marshal(resp)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("marshaling response")
			return
		}
		wmu.Lock()
		defer wmu.Unlock()
		w.Write(data)
		w.Write([]byte{'\n'})
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		default:
		}

		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		req, err := jsonrpc.ParseRequest(line)
		if err != nil {
			write(jsonrpc.NewErrorResponse(jsonrpc.ID{}, jsonrpc.ErrCodeParseError, err.Error(), nil))
			continue
		}

		// The handshake is processed in stream order so requests framed
		// right behind it cannot race past the state transition. Everything
		// else dispatches concurrently.
		if req.Method == jsonrpc.MethodInitialize {
			write(d.Dispatch(ctx, req))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			write(d.Dispatch(ctx, req))
		}()
	}

	wg.Wait()
	d.Close()
	return scanner.Err()
}
