package engine

// Минимальная чат-страница для ручной проверки пайплайна: шлёт цель в
// /api/run и рисует NDJSON-события по мере прихода чанков.
const chatHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>agent-watchdog</title>
<style>
  body { font-family: ui-monospace, monospace; max-width: 760px; margin: 2rem auto; background: #111; color: #ddd; }
  #log { white-space: pre-wrap; border: 1px solid #333; padding: 1rem; min-height: 300px; }
  .tool { color: #7aa2f7; }
  .err { color: #f7768e; }
  .dim { color: #777; }
  input { width: 70%; padding: .5rem; background: #1a1a1a; color: #ddd; border: 1px solid #333; }
  button { padding: .5rem 1rem; }
</style>
</head>
<body>
<h3>agent-watchdog</h3>
<form id="f">
  <input id="goal" placeholder="Hello, what can you do?" autofocus>
  <button>run</button>
</form>
<div id="log"></div>
<script>
const log = document.getElementById('log');
function line(cls, text) {
  const el = document.createElement('div');
  if (cls) el.className = cls;
  el.textContent = text;
  log.appendChild(el);
}
document.getElementById('f').addEventListener('submit', async (e) => {
  e.preventDefault();
  log.textContent = '';
  const goal = document.getElementById('goal').value;
  const res = await fetch('/api/run', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({goal}),
  });
  const reader = res.body.getReader();
  const dec = new TextDecoder();
  let buf = '';
  let text = null;
  for (;;) {
    const {done, value} = await reader.read();
    if (done) break;
    buf += dec.decode(value, {stream: true});
    let idx;
    while ((idx = buf.indexOf('\n')) >= 0) {
      const raw = buf.slice(0, idx);
      buf = buf.slice(idx + 1);
      if (!raw.trim()) continue;
      let ev;
      try { ev = JSON.parse(raw); } catch { continue; }
      switch (ev.type) {
        case 'text':
          if (!text) { text = document.createElement('div'); log.appendChild(text); }
          text.textContent += ev.delta;
          break;
        case 'tool_call':
          text = null;
          line('tool', '⚙ ' + ev.name + ' ' + JSON.stringify(ev.args));
          break;
        case 'tool_result':
          line('dim', '→ ' + ev.result);
          break;
        case 'error':
          line('err', '✗ ' + ev.message);
          break;
        case 'done':
          line('dim', '— done —');
          break;
      }
    }
  }
});
</script>
</body>
</html>`
