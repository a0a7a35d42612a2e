// Package ipc is the local control channel: a unix socket through which
// sysvox-ctl (or a hotkey binding) asks a running assistant to start a
// voice turn without touching the terminal.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

const SocketPath = "/tmp/sysvox.sock"

// ControlMessage is the single-frame JSON command sent over the socket.
type ControlMessage struct {
	Cmd string `json:"cmd"`
}

// StartServer listens on the control socket and invokes handler for each
// received message. The accept loop runs in the background; a stale socket
// file from a previous run is replaced.
func StartServer(handler func(ControlMessage)) error {
	os.Remove(SocketPath)

	ln, err := net.Listen("unix", SocketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", SocketPath, err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				continue
			}
			go handleConn(conn, handler)
		}
	}()

	return nil
}

func handleConn(conn net.Conn, handler func(ControlMessage)) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}
	handler(msg)
}

// SendCommand delivers one command to a running assistant.
func SendCommand(cmd string) error {
	conn, err := net.Dial("unix", SocketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	return json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd})
}
