// Package server exposes HTTP handlers: the WebSocket upgrade, the health
// check and the bundled chat page.
package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler returns the handler for the chat endpoint. It accepts GET
// requests only, upgrades them and hands the connection to hub.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// The upgrader has already written the error response.
			hub.log.Info("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			return
		}

		if _, err := hub.Serve(conn, r.RemoteAddr); err != nil {
			hub.log.Info("rejected connection", zap.String("remote", r.RemoteAddr), zap.Error(err))
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "chatrelay is running!")
}

// ChatPageHandler serves a minimal browser client for the room: a message
// list, the user list and inputs for chatting and changing the username.
func ChatPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := fmt.Fprint(w, chatPage); err != nil {
		zap.L().Debug("writing chat page", zap.Error(err))
	}
}

const chatPage = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>chatrelay</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; display: flex; gap: 20px; }
        #main { flex: 1; }
        #users { width: 200px; border: 1px solid #ccc; padding: 10px; background-color: #f9f9f9; }
        #messages {
            border: 1px solid #ccc;
            height: 360px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .system { color: gray; font-style: italic; }
        .meta { color: #555; font-size: 0.85em; margin-right: 6px; }
        #me { font-weight: bold; }
    </style>
</head>
<body>
    <div id="main">
        <h1>chatrelay</h1>
        <div>Signed in as <span id="me">?</span></div>
        <div>
            <input type="text" id="usernameInput" placeholder="New username...">
            <button onclick="changeUsername()">Change username</button>
        </div>
        <div id="messages"></div>
        <div>
            <input type="text" id="messageInput" placeholder="Type a message...">
            <button onclick="sendMessage()">Send</button>
        </div>
    </div>
    <div id="users"><strong>Online</strong><ul id="userList"></ul></div>

    <script>
        const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(scheme + location.host + '/ws');
        const messagesDiv = document.getElementById('messages');
        const userList = document.getElementById('userList');
        const me = document.getElementById('me');

        function naiveUtcNow() {
            return new Date().toISOString().replace('Z', '');
        }

        function envelope(type, fields) {
            return JSON.stringify(Object.assign(
                { message_type: type, message: null, users: null, username: null }, fields));
        }

        function addLine(text, author, createdAt, system) {
            const line = document.createElement('div');
            if (system) line.className = 'system';
            if (createdAt) {
                const meta = document.createElement('span');
                meta.className = 'meta';
                meta.textContent = new Date(createdAt + 'Z').toLocaleTimeString() + (author ? ' ' + author + ':' : '');
                line.appendChild(meta);
            }
            line.appendChild(document.createTextNode(text));
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        ws.onmessage = function(event) {
            let msg;
            try {
                msg = JSON.parse(event.data);
            } catch (e) {
                addLine(event.data);
                return;
            }
            switch (msg.message_type) {
            case 'NewMessage':
                addLine(msg.message.message, msg.message.author, msg.message.created_at, false);
                break;
            case 'System':
                addLine(msg.message.message, '', msg.message.created_at, true);
                break;
            case 'UserList':
                userList.innerHTML = '';
                for (const name of msg.users) {
                    const li = document.createElement('li');
                    li.textContent = name;
                    userList.appendChild(li);
                }
                break;
            case 'UsernameChange':
                me.textContent = msg.username;
                break;
            default:
                addLine(event.data);
            }
        };
        ws.onclose = function() { addLine('Connection closed', '', '', true); };

        function sendMessage() {
            const input = document.getElementById('messageInput');
            const text = input.value.trim();
            if (!text || ws.readyState !== WebSocket.OPEN) return;
            ws.send(envelope('NewMessage', { message: { message: text, author: '', created_at: naiveUtcNow() } }));
            input.value = '';
        }

        function changeUsername() {
            const input = document.getElementById('usernameInput');
            const name = input.value.trim();
            if (!name || ws.readyState !== WebSocket.OPEN) return;
            ws.send(envelope('UsernameChange', { username: name }));
            input.value = '';
        }

        document.getElementById('messageInput').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') sendMessage();
        });
    </script>
</body>
</html>`
