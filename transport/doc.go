/*
Package transport defines the capability the query engine needs from a node connection.

The main interface is Transport, which submits RPC calls and manages subscriptions:

	type Transport interface {
	    Send(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	    Subscribe(ctx context.Context, method string, params []any, notify NotifyFunc) (SubscriptionID, error)
	    Unsubscribe(ctx context.Context, id SubscriptionID) error
	}

Failures reported by the node are returned as *errors.TransportError. The engine
never retries; retry and reconnection policy belong to the implementation.

Implementations:
  - ws: JSON-RPC 2.0 over WebSocket, for live nodes
  - ddb: read-only DynamoDB snapshot of mirrored node storage
  - mock: in-memory node for testing
*/
package transport
