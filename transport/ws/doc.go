/*
Package ws implements transport.Transport as a JSON-RPC 2.0 client over WebSocket.

	conn, err := ws.Dial(ctx, "ws://127.0.0.1:9944", ws.WithLogger(logger))
	if err != nil {
	    return err
	}
	defer conn.Close()

	raw, err := conn.Send(ctx, transport.MethodGetStorage, key.Hex())

JSON-RPC error objects are returned as *errors.TransportError carrying the node's
code and message. When the connection drops, pending calls fail with a
TransportError and every subscription stops; the client does not reconnect.
*/
package ws
