package main

import (
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
)

// runWatchCmd streams invocation outcomes from the engine's live feed and
// prints one JSON record per line until interrupted.
func runWatchCmd(args []string) {
	fs := newFlagSet("watch")
	fs.ParseArgs(args)

	wsURL := "ws" + strings.TrimPrefix(strings.TrimRight(*fs.ops, "/"), "http") + "/v1/feed"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	check(err)
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		check(err)
		fmt.Println(string(data))
	}
}
