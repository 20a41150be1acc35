package rpc

import (
	"io"
	"log/slog"
	"net/http"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocket bridges a websocket connection to the registered jsonrpc
// service for the duration of the connection.
func WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("rpc websocket upgrade failed", slog.Any("err", err))
		return
	}

	jsonrpc.ServeConn(&wsReadWriteCloser{conn: conn})
}

// Post serves exactly one jsonrpc request carried by an HTTP POST body.
func Post(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	w.Header().Set("Content-Type", "application/json")

	codec := jsonrpc.NewServerCodec(&httpReadWriteCloser{in: r.Body, out: w})
	if err := rpc.ServeRequest(codec); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type httpReadWriteCloser struct {
	in  io.Reader
	out io.Writer
}

func (c *httpReadWriteCloser) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *httpReadWriteCloser) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *httpReadWriteCloser) Close() error                { return nil }

type wsReadWriteCloser struct {
	conn   *websocket.Conn
	reader io.Reader
}

func (c *wsReadWriteCloser) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			_, reader, err := c.conn.NextReader()
			if err != nil {
				return 0, err
			}
			c.reader = reader
		}

		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsReadWriteCloser) Write(p []byte) (int, error) {
	writer, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return 0, err
	}
	defer writer.Close()

	return writer.Write(p)
}

func (c *wsReadWriteCloser) Close() error { return c.conn.Close() }
