package websockettest

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// DialUnresponsive connects to a spectator feed with the automatic ping and
// pong replies dropped, standing in for a viewer that has gone quiet.
func DialUnresponsive(urlStr string, header http.Header) (*websocket.Conn, *http.Response, error) {
	conn, resp, err := websocket.DefaultDialer.Dial(urlStr, header)
	if err != nil {
		return nil, resp, err
	}
	//1.- Swallow keepalive traffic so the peer looks stalled to the hub.
	conn.SetPingHandler(func(string) error { return nil })
	conn.SetPongHandler(func(string) error { return nil })
	return conn, resp, nil
}
