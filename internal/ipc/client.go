package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, decodeError(err)
	}
	return &resp, nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Preview computes an assignment without changing counts.
func (c *Client) Preview(req AssignRequest) (*PreviewResponse, error) {
	return call[PreviewResponse](c, "Preview", req)
}

// Commit records an assignment.
func (c *Client) Commit(req AssignRequest) (*CommitResponse, error) {
	return call[CommitResponse](c, "Commit", req)
}

// Reset zeroes every slot counter.
func (c *Client) Reset() (*ResetResponse, error) {
	return call[ResetResponse](c, "Reset", ResetRequest{})
}

// Grid returns the active grid, rebuilding it first when reload is set.
func (c *Client) Grid(reload bool) (*GridResponse, error) {
	return call[GridResponse](c, "Grid", GridRequest{Reload: reload})
}

// AlphabetMap returns the letter routing table.
func (c *Client) AlphabetMap() (*AlphabetMapResponse, error) {
	return call[AlphabetMapResponse](c, "AlphabetMap", AlphabetMapRequest{})
}

// Run performs a run transition; an empty action reads status.
func (c *Client) Run(req RunRequest) (*RunResponse, error) {
	return call[RunResponse](c, "Run", req)
}

// Step processes the next pending item.
func (c *Client) Step() (*StepResponse, error) {
	return call[StepResponse](c, "Step", StepRequest{})
}

// Enqueue adds items to the pipeline.
func (c *Client) Enqueue(req EnqueueRequest) (*EnqueueResponse, error) {
	return call[EnqueueResponse](c, "Enqueue", req)
}

// Identify matches OCR text against the catalog.
func (c *Client) Identify(req IdentifyRequest) (*IdentifyResponse, error) {
	return call[IdentifyResponse](c, "Identify", req)
}

// EvaluateBatch scores recorded results.
func (c *Client) EvaluateBatch(req BatchEvaluateRequest) (*BatchEvaluateResponse, error) {
	return call[BatchEvaluateResponse](c, "EvaluateBatch", req)
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}
