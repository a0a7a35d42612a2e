package main

import (
	"fmt"

	"sysvox/internal/ipc"
)

func main() {
	if err := ipc.SendCommand("trigger"); err != nil {
		fmt.Println("sysvox not running:", err)
		return
	}
}
