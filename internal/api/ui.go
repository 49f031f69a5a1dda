package api

import (
	"net/http"
)

const consoleHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Diagram Engine - Console</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body { font-family: monospace; background: #1a1a2e; color: #eee; height: 100vh; display: flex; flex-direction: column; }
        header { background: #16213e; padding: 12px 20px; border-bottom: 1px solid #0f3460; display: flex; justify-content: space-between; align-items: center; }
        header h1 { font-size: 16px; font-weight: normal; }
        #status { padding: 4px 10px; border-radius: 4px; font-size: 12px; }
        #status.connected { background: #1b4332; color: #95d5b2; }
        #status.disconnected { background: #7f1d1d; color: #fca5a5; }
        main { flex: 1; display: grid; grid-template-columns: 1fr 1fr; gap: 10px; padding: 10px; overflow: hidden; }
        section { background: #16213e; border-radius: 4px; padding: 10px; overflow-y: auto; }
        textarea, select, button { font-family: monospace; background: #0f3460; color: #eee; border: 1px solid #1f4f8f; border-radius: 4px; padding: 6px; }
        textarea { width: 100%; height: 80px; }
        .row { margin: 8px 0; display: flex; gap: 10px; align-items: center; }
        pre { white-space: pre-wrap; font-size: 12px; margin-top: 8px; }
        .event { font-size: 12px; padding: 4px 0; border-bottom: 1px solid #0f3460; }
        .event.error { color: #fca5a5; }
        .name { color: #fcd34d; }
    </style>
</head>
<body>
    <header>
        <h1>Diagram Engine</h1>
        <span id="status" class="disconnected">disconnected</span>
    </header>
    <main>
        <section>
            <textarea id="text" placeholder="Describe the diagram, e.g. draw a network topology"></textarea>
            <div class="row">
                <select id="mode">
                    <option>auto</option><option>mermaid</option><option>graphviz</option>
                    <option>svg</option><option>preview-only</option>
                </select>
                <label><input type="checkbox" id="kg"> KG</label>
                <label><input type="checkbox" id="rag"> RAG</label>
                <button id="run">Run</button>
            </div>
            <pre id="result"></pre>
        </section>
        <section id="events"></section>
    </main>
    <script>
        const statusEl = document.getElementById('status');
        const eventsEl = document.getElementById('events');
        const resultEl = document.getElementById('result');

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            const ws = new WebSocket(proto + '//' + location.host + '/ws/events');
            ws.onopen = function() { statusEl.textContent = 'connected'; statusEl.className = 'connected'; };
            ws.onclose = function() {
                statusEl.textContent = 'disconnected'; statusEl.className = 'disconnected';
                setTimeout(connect, 2000);
            };
            ws.onmessage = function(msg) {
                const e = JSON.parse(msg.data);
                const div = document.createElement('div');
                div.className = 'event' + (e.level === 'error' ? ' error' : '');
                const name = document.createElement('span');
                name.className = 'name';
                name.textContent = e.event;
                div.append(e.ts.substring(11, 23) + ' ', name, ' ' + JSON.stringify(e.fields || {}));
                eventsEl.prepend(div);
            };
        }

        document.getElementById('run').addEventListener('click', function() {
            resultEl.textContent = 'running...';
            fetch('/api/orchestrator/run', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({
                    text: document.getElementById('text').value,
                    output_mode: document.getElementById('mode').value,
                    enable_kg: document.getElementById('kg').checked,
                    enable_rag: document.getElementById('rag').checked
                })
            })
            .then(function(r) { return r.json(); })
            .then(function(env) {
                if (!env.ok) { resultEl.textContent = 'error: ' + env.error; return; }
                resultEl.textContent = '[' + env.data.draft.dsl_type + '] ' + env.data.draft.meta.router_reason + '\n\n' + env.data.draft.code;
            })
            .catch(function() { resultEl.textContent = 'network error'; });
        });

        connect();
    </script>
</body>
</html>`

// handleUI serves the console page.
func handleUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(consoleHTML))
}
