package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"
)

// WebSocketHandler upgrades GET requests on the chat endpoint, registers the
// connection, and starts the client's read/write pumps.
func (g *Gateway) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	g.accept(conn, r.RemoteAddr)
}

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status      string   `json:"status"`
	Connections int      `json:"connections"`
	Joined      []string `json:"joined"`
}

// HealthHandler reports that the server is up together with room occupancy.
func (g *Gateway) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	names := g.registry.Names()
	sort.Strings(names)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(HealthStatus{
		Status:      "ok",
		Connections: g.registry.Len(),
		Joined:      names,
	}); err != nil {
		g.log.Warn("Error writing health response", zap.Error(err))
	}
}

// TestPageHandler serves an HTML page that speaks the join/message protocol.
func (g *Gateway) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		g.log.Warn("Error writing HTML response", zap.Error(err))
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Chat Room Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; }
        .system { color: gray; font-style: italic; }
        .error { color: #721c24; }
    </style>
</head>
<body>
    <h1>Chat Room Test</h1>
    <div>
        <input type="text" id="name" placeholder="Display name">
        <button onclick="join()">Join</button>
    </div>
    <div id="messages"></div>
    <div>
        <input type="text" id="text" placeholder="Type a message..." disabled>
        <button id="send" onclick="send()" disabled>Send</button>
    </div>
    <script>
        const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(proto + location.host + '/ws');
        const messages = document.getElementById('messages');
        let name = '';

        function show(text, cls) {
            const el = document.createElement('div');
            el.className = cls || '';
            el.textContent = text;
            messages.appendChild(el);
            messages.scrollTop = messages.scrollHeight;
        }

        ws.onmessage = function(event) {
            const frame = JSON.parse(event.data);
            if (frame.event === 'message') {
                const d = frame.data;
                show(d.sender === 'system' ? d.msg : d.sender + ': ' + d.msg, d.sender === 'system' ? 'system' : '');
            } else if (frame.event === 'error') {
                show('error: ' + frame.data.message, 'error');
            }
        };
        ws.onclose = function() { show('Connection closed', 'system'); };

        function join() {
            name = document.getElementById('name').value.trim();
            ws.send(JSON.stringify({event: 'join', data: {username: name}}));
            document.getElementById('text').disabled = false;
            document.getElementById('send').disabled = false;
        }

        function send() {
            const input = document.getElementById('text');
            const msg = input.value.trim();
            if (msg) {
                ws.send(JSON.stringify({event: 'message', data: {sender: name, msg: msg}}));
                input.value = '';
            }
        }
    </script>
</body>
</html>`
