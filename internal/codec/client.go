package codec

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// AskMethod is the full RPC name served by the model oracle.
const AskMethod = "/lic.oracle.v1.Oracle/Ask"

// ErrEmptyAnswer is returned when the oracle replies without text.
var ErrEmptyAnswer = errors.New("oracle returned no answer")

// #region types
// Question is what the learner asked, with enough profile to pitch the answer.
type Question struct {
	Text    string
	Subject string
	AgeTier string
}

// Answer is the oracle's reply.
type Answer struct {
	Text       string
	Confidence float64
	Model      string
}

// Invoker issues a unary RPC. *grpc.ClientConn satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, method string, args any, reply any, opts ...grpc.CallOption) error
}

// #endregion types

// #region client-struct
// OracleClient wraps the gRPC connection to the external model oracle.
type OracleClient struct {
	conn    *grpc.ClientConn
	invoker Invoker
}

// #endregion client-struct

// #region constructor
// NewOracleClient connects to the oracle gRPC server. The connection is
// established lazily on the first call.
func NewOracleClient(addr string) (*OracleClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &OracleClient{conn: conn, invoker: conn}, nil
}

// NewOracleClientWithInvoker creates an OracleClient over an injected invoker.
// Used for testing without a real gRPC connection.
func NewOracleClientWithInvoker(inv Invoker) *OracleClient {
	return &OracleClient{invoker: inv}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *OracleClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region ask
// Ask sends a learner question to the oracle.
func (c *OracleClient) Ask(ctx context.Context, q Question) (Answer, error) {
	req, err := structpb.NewStruct(map[string]any{
		"text":     q.Text,
		"subject":  q.Subject,
		"age_tier": q.AgeTier,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("ask request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.invoker.Invoke(ctx, AskMethod, req, resp); err != nil {
		return Answer{}, fmt.Errorf("ask rpc: %w", err)
	}
	return decodeAnswer(resp)
}

func decodeAnswer(resp *structpb.Struct) (Answer, error) {
	fields := resp.GetFields()
	ans := Answer{
		Text:       fields["text"].GetStringValue(),
		Confidence: fields["confidence"].GetNumberValue(),
		Model:      fields["model"].GetStringValue(),
	}
	if ans.Text == "" {
		return Answer{}, ErrEmptyAnswer
	}
	if ans.Confidence < 0 {
		ans.Confidence = 0
	}
	if ans.Confidence > 1 {
		ans.Confidence = 1
	}
	return ans, nil
}

// #endregion ask
